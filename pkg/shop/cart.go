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

// CartItem is a cart line joined with its product.
type CartItem struct {
	CartItemID string    `json:"cart_item_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Name       string    `json:"name"`
	Picture    string    `json:"picture"`
	Price      float64   `json:"price"`
	Subtotal   float64   `json:"subtotal"`
	AddedAt    time.Time `json:"-"`
}

// ToMap is the session state form of a cart line.
func (c *CartItem) ToMap() map[string]any {
	return map[string]any{
		"cart_item_id": c.CartItemID,
		"product_id":   c.ProductID,
		"quantity":     c.Quantity,
		"name":         c.Name,
		"picture":      c.Picture,
		"price":        c.Price,
		"subtotal":     c.Subtotal,
	}
}

// CartTotals summarizes a cart.
type CartTotals struct {
	ItemCount  int     `json:"item_count"`
	TotalItems int     `json:"total_items"`
	Subtotal   float64 `json:"subtotal"`
}

// AddCartItem adds a new line for the product. Adding the same product
// twice creates two lines.
func (s *Store) AddCartItem(ctx context.Context, sessionID, productID string, quantity int) (*CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	item := &CartItem{
		CartItemID: uuid.NewString(),
		ProductID:  p.ID,
		Quantity:   quantity,
		Name:       p.Name,
		Picture:    p.ImageURL(),
		Price:      p.Price(),
		Subtotal:   p.Price() * float64(quantity),
		AddedAt:    s.now(),
	}
	_, err = s.db.ExecContext(ctx,
		s.q(`INSERT INTO cart_items (cart_item_id, session_id, product_id, quantity, added_at) VALUES (?, ?, ?, ?, ?)`),
		item.CartItemID, sessionID, item.ProductID, item.Quantity, item.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}
	return item, nil
}

// CartItems lists the session's cart, newest first.
func (s *Store) CartItems(ctx context.Context, sessionID string) ([]*CartItem, error) {
	return cartItems(ctx, s.db, s.q, sessionID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func cartItems(ctx context.Context, db querier, rebind func(string) string, sessionID string) ([]*CartItem, error) {
	rows, err := db.QueryContext(ctx, rebind(`
SELECT c.cart_item_id, c.product_id, c.quantity, c.added_at, p.name, p.picture, p.product_image_url, p.price_usd_units
  FROM cart_items c JOIN catalog_items p ON p.id = c.product_id
 WHERE c.session_id = ?
 ORDER BY c.added_at DESC, c.cart_item_id`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	defer rows.Close()

	items := []*CartItem{}
	for rows.Next() {
		var (
			it          CartItem
			pic, imgURL sql.NullString
			price       sql.NullInt64
		)
		if err := rows.Scan(&it.CartItemID, &it.ProductID, &it.Quantity, &it.AddedAt, &it.Name, &pic, &imgURL, &price); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		p := Product{Picture: pic.String, ProductImageURL: imgURL.String, PriceUSDUnits: int(price.Int64)}
		it.Picture = p.ImageURL()
		it.Price = p.Price()
		it.Subtotal = it.Price * float64(it.Quantity)
		items = append(items, &it)
	}
	return items, rows.Err()
}

// UpdateCartItem sets the quantity of a line.
func (s *Store) UpdateCartItem(ctx context.Context, cartItemID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE cart_items SET quantity = ? WHERE cart_item_id = ?`), quantity, cartItemID)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("cart item", cartItemID)
	}
	return nil
}

// RemoveCartItem deletes one line.
func (s *Store) RemoveCartItem(ctx context.Context, cartItemID string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM cart_items WHERE cart_item_id = ?`), cartItemID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("cart item", cartItemID)
	}
	return nil
}

// ClearCart empties the session's cart and returns the lines removed.
func (s *Store) ClearCart(ctx context.Context, sessionID string) (int, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM cart_items WHERE session_id = ?`), sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CartTotals computes line count, unit count and subtotal from current
// prices.
func (s *Store) CartTotals(ctx context.Context, sessionID string) (*CartTotals, error) {
	var (
		lines, units sql.NullInt64
		subtotal     sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, s.q(`
SELECT COUNT(c.cart_item_id), SUM(c.quantity), SUM(c.quantity * COALESCE(p.price_usd_units, 0))
  FROM cart_items c JOIN catalog_items p ON p.id = c.product_id
 WHERE c.session_id = ?`), sessionID).Scan(&lines, &units, &subtotal)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to compute cart totals: %w", err)
	}
	return &CartTotals{
		ItemCount:  int(lines.Int64),
		TotalItems: int(units.Int64),
		Subtotal:   subtotal.Float64,
	}, nil
}
