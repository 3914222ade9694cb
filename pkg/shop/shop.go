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

// Package shop is the relational store behind the shopping agent: the
// product catalog, per-session carts, orders, payments and customer
// inquiries.
//
// Queries are written once with '?' placeholders and rebound for
// postgres. Prices are whole US dollars taken from price_usd_units.
package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kadirpekel/storefront/pkg/sqlutil"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidQuantity      = errors.New("quantity must be greater than 0")
	ErrNotCancelable        = errors.New("order cannot be canceled")
	ErrInvalidInquiryType   = errors.New("invalid inquiry type")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
)

// SampleAddresses stand in for a customer profile.
var SampleAddresses = []string{
	"123 Main Street, Apt 4B, New York, NY 10001",
	"456 Oak Avenue, Suite 200, Los Angeles, CA 90001",
	"789 Pine Road, Seattle, WA 98101",
	"321 Elm Street, Chicago, IL 60601",
}

// Store is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect string

	pickAddress func() string
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithAddressPicker replaces the random shipping address choice.
func WithAddressPicker(fn func() string) Option {
	return func(s *Store) { s.pickAddress = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// NewStore creates the shop tables when missing.
func NewStore(ctx context.Context, db *sql.DB, dialect string, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	d, err := sqlutil.NormalizeDialect(dialect)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:          db,
		dialect:     d,
		pickAddress: func() string { return SampleAddresses[rand.IntN(len(SampleAddresses))] },
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, stmt := range schema(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize shop schema: %w", err)
		}
	}
	return s, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) q(query string) string {
	return sqlutil.Rebind(s.dialect, query)
}

// inTx runs fn in a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s %w", kind, id, ErrNotFound)
}

func schema(dialect string) []string {
	text := sqlutil.TextType(dialect)
	return []string{
		`CREATE TABLE IF NOT EXISTS catalog_items (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    name VARCHAR(500) NOT NULL,
    description ` + text + `,
    picture VARCHAR(1000),
    product_image_url VARCHAR(1000),
    price_usd_units INTEGER,
    image_embedding ` + text + `,
    created_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS cart_items (
    cart_item_id VARCHAR(64) NOT NULL PRIMARY KEY,
    session_id VARCHAR(255) NOT NULL,
    product_id VARCHAR(255) NOT NULL,
    quantity INTEGER NOT NULL,
    added_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS orders (
    order_id VARCHAR(64) NOT NULL PRIMARY KEY,
    session_id VARCHAR(255) NOT NULL,
    total_amount DOUBLE PRECISION NOT NULL,
    status VARCHAR(50) NOT NULL,
    shipping_address ` + text + `,
    created_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS order_items (
    order_item_id VARCHAR(64) NOT NULL PRIMARY KEY,
    order_id VARCHAR(64) NOT NULL,
    product_id VARCHAR(255) NOT NULL,
    quantity INTEGER NOT NULL,
    price DOUBLE PRECISION NOT NULL,
    line_no INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS mandates (
    mandate_id VARCHAR(64) NOT NULL PRIMARY KEY,
    mandate_type VARCHAR(50) NOT NULL,
    session_id VARCHAR(255) NOT NULL,
    mandate_data ` + text + `,
    signature VARCHAR(512),
    status VARCHAR(50) NOT NULL,
    created_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS payments (
    payment_id VARCHAR(64) NOT NULL PRIMARY KEY,
    order_id VARCHAR(64) NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    payment_method VARCHAR(50) NOT NULL,
    payment_mandate_id VARCHAR(64),
    transaction_id VARCHAR(255),
    status VARCHAR(50) NOT NULL,
    created_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS customer_inquiries (
    inquiry_id VARCHAR(64) NOT NULL PRIMARY KEY,
    session_id VARCHAR(255) NOT NULL,
    inquiry_type VARCHAR(50) NOT NULL,
    message ` + text + ` NOT NULL,
    related_order_id VARCHAR(64),
    status VARCHAR(50) NOT NULL,
    created_at TIMESTAMP NOT NULL
)`,
	}
}
