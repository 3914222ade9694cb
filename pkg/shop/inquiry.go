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
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InquiryTypes lists the accepted inquiry types.
var InquiryTypes = []string{"return", "refund", "question", "complaint", "product_issue"}

// InquiryOpen is the status of a new inquiry.
const InquiryOpen = "open"

// Inquiry is a customer support request.
type Inquiry struct {
	InquiryID string    `json:"inquiry_id"`
	SessionID string    `json:"-"`
	Type      string    `json:"inquiry_type"`
	Message   string    `json:"message"`
	OrderID   string    `json:"order_id,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ToMap is the tool result form of the inquiry.
func (i *Inquiry) ToMap() map[string]any {
	m := map[string]any{
		"inquiry_id":   i.InquiryID,
		"inquiry_type": i.Type,
		"message":      i.Message,
		"status":       i.Status,
		"created_at":   i.CreatedAt.Format(time.RFC3339),
	}
	if i.OrderID != "" {
		m["order_id"] = i.OrderID
	} else {
		m["order_id"] = nil
	}
	return m
}

// Return is an initiated return.
type Return struct {
	ReturnID     string `json:"return_id"`
	OrderID      string `json:"order_id"`
	Status       string `json:"status"`
	Reason       string `json:"reason"`
	Instructions string `json:"instructions"`
	InquiryID    string `json:"inquiry_id"`
}

// CreateInquiry opens an inquiry, optionally tied to an order.
func (s *Store) CreateInquiry(ctx context.Context, sessionID, inquiryType, message, orderID string) (*Inquiry, error) {
	if !slices.Contains(InquiryTypes, inquiryType) {
		return nil, fmt.Errorf("%w %q (valid: %s)", ErrInvalidInquiryType, inquiryType, strings.Join(InquiryTypes, ", "))
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("inquiry message is required")
	}
	inq := &Inquiry{
		InquiryID: uuid.NewString(),
		SessionID: sessionID,
		Type:      inquiryType,
		Message:   message,
		OrderID:   orderID,
		Status:    InquiryOpen,
		CreatedAt: s.now(),
	}
	var related any
	if orderID != "" {
		related = orderID
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO customer_inquiries (inquiry_id, session_id, inquiry_type, message, related_order_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		inq.InquiryID, sessionID, inq.Type, inq.Message, related, inq.Status, inq.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create inquiry: %w", err)
	}
	return inq, nil
}

// GetInquiry loads an inquiry.
func (s *Store) GetInquiry(ctx context.Context, inquiryID string) (*Inquiry, error) {
	inq := &Inquiry{InquiryID: inquiryID}
	var order sql.NullString
	err := s.db.QueryRowContext(ctx, s.q(`SELECT session_id, inquiry_type, message, related_order_id, status, created_at FROM customer_inquiries WHERE inquiry_id = ?`), inquiryID).
		Scan(&inq.SessionID, &inq.Type, &inq.Message, &order, &inq.Status, &inq.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("inquiry", inquiryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inquiry %s: %w", inquiryID, err)
	}
	inq.OrderID = order.String
	return inq, nil
}

// OrderInquiries lists inquiries for an order, newest first.
func (s *Store) OrderInquiries(ctx context.Context, orderID string) ([]*Inquiry, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT inquiry_id, session_id, inquiry_type, message, status, created_at FROM customer_inquiries WHERE related_order_id = ? ORDER BY created_at DESC`), orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inquiries: %w", err)
	}
	defer rows.Close()

	out := []*Inquiry{}
	for rows.Next() {
		inq := &Inquiry{OrderID: orderID}
		if err := rows.Scan(&inq.InquiryID, &inq.SessionID, &inq.Type, &inq.Message, &inq.Status, &inq.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inquiry: %w", err)
		}
		out = append(out, inq)
	}
	return out, rows.Err()
}

// InitiateReturn opens a return inquiry for an existing order.
func (s *Store) InitiateReturn(ctx context.Context, sessionID, orderID, reason string) (*Return, error) {
	var status string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT status FROM orders WHERE order_id = ?`), orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	inq, err := s.CreateInquiry(ctx, sessionID, "return", reason, orderID)
	if err != nil {
		return nil, err
	}
	return &Return{
		ReturnID:     uuid.NewString(),
		OrderID:      orderID,
		Status:       "initiated",
		Reason:       reason,
		Instructions: "Please package the item securely and schedule a pickup.",
		InquiryID:    inq.InquiryID,
	}, nil
}

// FAQEntry is a knowledge base answer.
type FAQEntry struct {
	Question       string  `json:"question"`
	Answer         string  `json:"answer"`
	RelevanceScore float64 `json:"relevance_score"`
}

// FAQ is the built-in knowledge base.
var FAQ = []FAQEntry{
	{Question: "How do I return an item?", Answer: "You can initiate a return by contacting customer service with your order ID.", RelevanceScore: 0.9},
	{Question: "What is your refund policy?", Answer: "We offer full refunds within 30 days of purchase.", RelevanceScore: 0.8},
	{Question: "How long does shipping take?", Answer: "Standard shipping takes 5-7 business days.", RelevanceScore: 0.7},
}

// SearchFAQ returns entries whose question or answer contains the query,
// or the two most relevant entries when nothing matches.
func SearchFAQ(query string) []FAQEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []FAQEntry
	if q != "" {
		for _, e := range FAQ {
			if strings.Contains(strings.ToLower(e.Question), q) || strings.Contains(strings.ToLower(e.Answer), q) {
				out = append(out, e)
			}
		}
	}
	if len(out) == 0 {
		return slices.Clone(FAQ[:2])
	}
	return out
}
