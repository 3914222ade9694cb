// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderCompleted  = "completed"
	OrderCanceled   = "cancelled"
	OrderRefunded   = "refunded"
)

// OrderItem is one line of an order or order summary.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Picture   string  `json:"picture"`
	Subtotal  float64 `json:"subtotal"`
}

func (i *OrderItem) toMap() map[string]any {
	return map[string]any{
		"product_id": i.ProductID,
		"name":       i.Name,
		"quantity":   i.Quantity,
		"price":      i.Price,
		"picture":    i.Picture,
		"subtotal":   i.Subtotal,
	}
}

func itemMaps(items []OrderItem) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = items[i].toMap()
	}
	return out
}

// OrderSummary is a priced cart awaiting confirmation. Nothing is written
// when it is prepared.
type OrderSummary struct {
	Items           []OrderItem `json:"items"`
	TotalAmount     float64     `json:"total_amount"`
	ShippingAddress string      `json:"shipping_address"`
	ItemCount       int         `json:"item_count"`
}

// ToMap is the session state form of the summary.
func (o *OrderSummary) ToMap() map[string]any {
	return map[string]any{
		"items":            itemMaps(o.Items),
		"total_amount":     o.TotalAmount,
		"shipping_address": o.ShippingAddress,
		"item_count":       o.ItemCount,
	}
}

// Order is a placed order.
type Order struct {
	OrderID         string      `json:"order_id"`
	SessionID       string      `json:"-"`
	Status          string      `json:"status"`
	Items           []OrderItem `json:"items"`
	TotalAmount     float64     `json:"total_amount"`
	ShippingAddress string      `json:"shipping_address"`
	CreatedAt       time.Time   `json:"created_at"`
}

// ToMap is the session state form of the order.
func (o *Order) ToMap() map[string]any {
	return map[string]any{
		"order_id":         o.OrderID,
		"status":           o.Status,
		"items":            itemMaps(o.Items),
		"total_amount":     o.TotalAmount,
		"shipping_address": o.ShippingAddress,
		"created_at":       o.CreatedAt.Format(time.RFC3339),
	}
}

// PrepareOrderSummary prices the cart and picks a shipping address.
func (s *Store) PrepareOrderSummary(ctx context.Context, sessionID string) (*OrderSummary, error) {
	cart, err := s.CartItems(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}
	summary := &OrderSummary{ShippingAddress: s.pickAddress(), ItemCount: len(cart)}
	summary.Items, summary.TotalAmount = orderLines(cart)
	return summary, nil
}

func orderLines(cart []*CartItem) ([]OrderItem, float64) {
	items := make([]OrderItem, 0, len(cart))
	var total float64
	for _, c := range cart {
		items = append(items, OrderItem{
			ProductID: c.ProductID,
			Name:      c.Name,
			Quantity:  c.Quantity,
			Price:     c.Price,
			Picture:   c.Picture,
			Subtotal:  c.Subtotal,
		})
		total += c.Subtotal
	}
	return items, total
}

// CreateOrder turns the cart into a completed order and empties the cart
// in one transaction. An empty address picks one.
func (s *Store) CreateOrder(ctx context.Context, sessionID, shippingAddress string) (*Order, error) {
	if shippingAddress == "" {
		shippingAddress = s.pickAddress()
	}
	order := &Order{
		OrderID:         uuid.NewString(),
		SessionID:       sessionID,
		Status:          OrderCompleted,
		ShippingAddress: shippingAddress,
		CreatedAt:       s.now(),
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cart, err := cartItems(ctx, tx, s.q, sessionID)
		if err != nil {
			return err
		}
		if len(cart) == 0 {
			return ErrEmptyCart
		}
		order.Items, order.TotalAmount = orderLines(cart)

		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO orders (order_id, session_id, total_amount, status, shipping_address, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
			order.OrderID, sessionID, order.TotalAmount, order.Status, order.ShippingAddress, order.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		for i, it := range order.Items {
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO order_items (order_item_id, order_id, product_id, quantity, price, line_no) VALUES (?, ?, ?, ?, ?, ?)`),
				uuid.NewString(), order.OrderID, it.ProductID, it.Quantity, it.Price, i); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM cart_items WHERE session_id = ?`), sessionID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder loads an order with its items.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	o := &Order{OrderID: orderID}
	var addr sql.NullString
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT session_id, total_amount, status, shipping_address, created_at FROM orders WHERE order_id = ?`), orderID).
		Scan(&o.SessionID, &o.TotalAmount, &o.Status, &addr, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	o.ShippingAddress = addr.String

	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT i.product_id, COALESCE(p.name, ''), i.quantity, i.price, p.picture, p.product_image_url
  FROM order_items i LEFT JOIN catalog_items p ON p.id = i.product_id
 WHERE i.order_id = ?
 ORDER BY i.line_no`), orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it          OrderItem
			pic, imgURL sql.NullString
		)
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &it.Price, &pic, &imgURL); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		it.Picture = (&Product{Picture: pic.String, ProductImageURL: imgURL.String}).ImageURL()
		it.Subtotal = it.Price * float64(it.Quantity)
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// CancelOrder cancels a pending or processing order and returns the amount
// to refund.
func (s *Store) CancelOrder(ctx context.Context, orderID string) (float64, error) {
	var (
		status string
		total  float64
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.q(`SELECT status, total_amount FROM orders WHERE order_id = ?`), orderID).Scan(&status, &total)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("order", orderID)
		}
		if err != nil {
			return fmt.Errorf("failed to get order %s: %w", orderID, err)
		}
		if status != OrderPending && status != OrderProcessing {
			return fmt.Errorf("%w: status is %s", ErrNotCancelable, status)
		}
		_, err = tx.ExecContext(ctx, s.q(`UPDATE orders SET status = ? WHERE order_id = ?`), OrderCanceled, orderID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) setOrderStatus(ctx context.Context, tx *sql.Tx, orderID, status string) error {
	_, err := tx.ExecContext(ctx, s.q(`UPDATE orders SET status = ? WHERE order_id = ?`), status, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	return nil
}
