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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Payment and mandate statuses.
const (
	PaymentCompleted = "completed"
	PaymentRefunded  = "refunded"

	MandatePending  = "pending"
	MandateApproved = "approved"
)

// PaymentMethod is a stored method the customer can pay with.
type PaymentMethod struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	LastFour    string `json:"last_four,omitempty"`
	IsDefault   bool   `json:"is_default"`
}

// ToMap is the session state form of the method.
func (m *PaymentMethod) ToMap() map[string]any {
	return map[string]any{
		"id":           m.ID,
		"type":         m.Type,
		"display_name": m.DisplayName,
		"last_four":    m.LastFour,
		"is_default":   m.IsDefault,
	}
}

// SamplePaymentMethods stand in for a customer wallet.
var SamplePaymentMethods = []PaymentMethod{
	{ID: "pm_visa_4242", Type: "credit_card", DisplayName: "Visa ending in 4242", LastFour: "4242", IsDefault: true},
	{ID: "pm_mc_5555", Type: "credit_card", DisplayName: "Mastercard ending in 5555", LastFour: "5555"},
	{ID: "pm_paypal", Type: "paypal", DisplayName: "PayPal"},
}

// PaymentMethods returns the customer's methods, default first.
func (s *Store) PaymentMethods(_ context.Context, _ string) []PaymentMethod {
	out := make([]PaymentMethod, len(SamplePaymentMethods))
	copy(out, SamplePaymentMethods)
	return out
}

// FindPaymentMethod matches an id, a type or a display name fragment.
func (s *Store) FindPaymentMethod(ctx context.Context, sessionID, ref string) (*PaymentMethod, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	methods := s.PaymentMethods(ctx, sessionID)
	if ref == "" || ref == "default" {
		for i := range methods {
			if methods[i].IsDefault {
				return &methods[i], nil
			}
		}
	}
	for i := range methods {
		m := &methods[i]
		if strings.ToLower(m.ID) == ref || m.LastFour == ref {
			return m, nil
		}
	}
	for i := range methods {
		m := &methods[i]
		if ref != "" && (strings.ToLower(m.Type) == ref || strings.Contains(strings.ToLower(m.DisplayName), ref)) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPaymentMethod, ref)
}

// Mandate records the customer's intent to pay. Signing is not done.
type Mandate struct {
	MandateID   string    `json:"mandate_id"`
	MandateType string    `json:"mandate_type"`
	SessionID   string    `json:"session_id"`
	OrderID     string    `json:"order_id"`
	Amount      float64   `json:"amount"`
	Method      string    `json:"payment_method"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Payment is a processed payment.
type Payment struct {
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	MandateID     string    `json:"payment_mandate_id"`
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"processed_at"`
}

// ToMap is the tool result form of the payment.
func (p *Payment) ToMap() map[string]any {
	return map[string]any{
		"payment_id":         p.PaymentID,
		"order_id":           p.OrderID,
		"amount":             p.Amount,
		"payment_method":     p.PaymentMethod,
		"payment_mandate_id": p.MandateID,
		"transaction_id":     p.TransactionID,
		"status":             p.Status,
		"processed_at":       p.CreatedAt.Format(time.RFC3339),
	}
}

// Refund is the outcome of RefundPayment.
type Refund struct {
	RefundID  string  `json:"refund_id"`
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
	Reason    string  `json:"reason"`
	Status    string  `json:"status"`
}

func (s *Store) orderForPayment(ctx context.Context, tx *sql.Tx, orderID string) (total float64, sessionID string, err error) {
	err = tx.QueryRowContext(ctx, s.q(`SELECT total_amount, session_id FROM orders WHERE order_id = ?`), orderID).Scan(&total, &sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", notFound("order", orderID)
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	return total, sessionID, nil
}

func (s *Store) insertMandate(ctx context.Context, tx *sql.Tx, orderID, method string) (*Mandate, error) {
	total, sessionID, err := s.orderForPayment(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	m := &Mandate{
		MandateID:   uuid.NewString(),
		MandateType: "payment",
		SessionID:   sessionID,
		OrderID:     orderID,
		Amount:      total,
		Method:      method,
		Status:      MandatePending,
		CreatedAt:   s.now(),
	}
	data, err := json.Marshal(map[string]any{
		"order_id":       orderID,
		"amount":         total,
		"payment_method": method,
		"timestamp":      m.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO mandates (mandate_id, mandate_type, session_id, mandate_data, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		m.MandateID, m.MandateType, m.SessionID, string(data), m.Status, m.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert mandate: %w", err)
	}
	return m, nil
}

// CreatePaymentMandate records a pending mandate for the order.
func (s *Store) CreatePaymentMandate(ctx context.Context, orderID, method string) (*Mandate, error) {
	var m *Mandate
	err := s.inTx(ctx, func(tx *sql.Tx) (err error) {
		m, err = s.insertMandate(ctx, tx, orderID, method)
		return err
	})
	return m, err
}

// ProcessPayment charges the order total: a mandate is created and
// approved, the payment recorded and the order marked completed.
func (s *Store) ProcessPayment(ctx context.Context, orderID, method string) (*Payment, error) {
	var p *Payment
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		m, err := s.insertMandate(ctx, tx, orderID, method)
		if err != nil {
			return err
		}
		p = &Payment{
			PaymentID:     uuid.NewString(),
			OrderID:       orderID,
			Amount:        m.Amount,
			PaymentMethod: method,
			MandateID:     m.MandateID,
			TransactionID: "txn_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
			Status:        PaymentCompleted,
			CreatedAt:     s.now(),
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO payments (payment_id, order_id, amount, payment_method, payment_mandate_id, transaction_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			p.PaymentID, p.OrderID, p.Amount, p.PaymentMethod, p.MandateID, p.TransactionID, p.Status, p.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
		if err := s.setOrderStatus(ctx, tx, orderID, OrderCompleted); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q(`UPDATE mandates SET status = ? WHERE mandate_id = ?`), MandateApproved, m.MandateID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPayment loads a payment.
func (s *Store) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	p := &Payment{PaymentID: paymentID}
	var mandate, txn sql.NullString
	err := s.db.QueryRowContext(ctx, s.q(`SELECT order_id, amount, payment_method, payment_mandate_id, transaction_id, status, created_at FROM payments WHERE payment_id = ?`), paymentID).
		Scan(&p.OrderID, &p.Amount, &p.PaymentMethod, &mandate, &txn, &p.Status, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("payment", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %s: %w", paymentID, err)
	}
	p.MandateID = mandate.String
	p.TransactionID = txn.String
	return p, nil
}

// RefundPayment marks the payment and its order refunded.
func (s *Store) RefundPayment(ctx context.Context, paymentID, reason string) (*Refund, error) {
	r := &Refund{RefundID: uuid.NewString(), PaymentID: paymentID, Reason: reason, Status: PaymentRefunded}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var orderID string
		err := tx.QueryRowContext(ctx, s.q(`SELECT amount, order_id FROM payments WHERE payment_id = ?`), paymentID).Scan(&r.Amount, &orderID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("payment", paymentID)
		}
		if err != nil {
			return fmt.Errorf("failed to get payment %s: %w", paymentID, err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE payments SET status = ? WHERE payment_id = ?`), PaymentRefunded, paymentID); err != nil {
			return fmt.Errorf("failed to refund payment: %w", err)
		}
		return s.setOrderStatus(ctx, tx, orderID, OrderRefunded)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// PaymentHistory lists the session's payments, newest first.
func (s *Store) PaymentHistory(ctx context.Context, sessionID string) ([]*Payment, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT p.payment_id, p.order_id, p.amount, p.payment_method, p.status, p.created_at
  FROM payments p JOIN orders o ON p.order_id = o.order_id
 WHERE o.session_id = ?
 ORDER BY p.created_at DESC`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment history: %w", err)
	}
	defer rows.Close()

	out := []*Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.PaymentID, &p.OrderID, &p.Amount, &p.PaymentMethod, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
