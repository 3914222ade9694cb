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

	"github.com/kadirpekel/storefront/pkg/sqlutil"
)

// Product is a catalog item.
type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Picture         string    `json:"picture"`
	ProductImageURL string    `json:"product_image_url"`
	PriceUSDUnits   int       `json:"price_usd_units"`
	ImageEmbedding  []float32 `json:"image_embedding,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ImageURL prefers the product image over the legacy picture.
func (p *Product) ImageURL() string {
	if p.ProductImageURL != "" {
		return p.ProductImageURL
	}
	return p.Picture
}

// Price is the unit price in dollars.
func (p *Product) Price() float64 {
	return float64(p.PriceUSDUnits)
}

// ToMap renders the product the way search results are kept in session
// state. Embeddings are never included.
func (p *Product) ToMap() map[string]any {
	return map[string]any{
		"id":                p.ID,
		"name":              p.Name,
		"description":       p.Description,
		"picture":           p.Picture,
		"product_image_url": p.ProductImageURL,
		"price_usd_units":   p.PriceUSDUnits,
	}
}

const productColumns = `id, name, description, picture, product_image_url, price_usd_units, image_embedding, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var (
		p                            Product
		desc, pic, imgURL, embedding sql.NullString
		price                        sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Name, &desc, &pic, &imgURL, &price, &embedding, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Description = desc.String
	p.Picture = pic.String
	p.ProductImageURL = imgURL.String
	p.PriceUSDUnits = int(price.Int64)
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &p.ImageEmbedding); err != nil {
			return nil, fmt.Errorf("product %s: invalid image embedding: %w", p.ID, err)
		}
	}
	return &p, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]*Product, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct returns ErrNotFound for unknown ids.
func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+productColumns+` FROM catalog_items WHERE id = ?`), id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, nil
}

// ListProducts pages through the catalog ordered by id. limit <= 0 lists
// everything.
func (s *Store) ListProducts(ctx context.Context, offset, limit int) ([]*Product, error) {
	query := `SELECT ` + productColumns + ` FROM catalog_items ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	return s.queryProducts(ctx, query, args...)
}

// RandomProducts returns up to n products in random order.
func (s *Store) RandomProducts(ctx context.Context, n int) ([]*Product, error) {
	fn := "RANDOM()"
	if s.dialect == sqlutil.MySQL {
		fn = "RAND()"
	}
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM catalog_items ORDER BY `+fn+` LIMIT ?`, n)
}

// ProductsByIDs returns the known products keyed by id.
func (s *Store) ProductsByIDs(ctx context.Context, ids []string) (map[string]*Product, error) {
	out := make(map[string]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	products, err := s.queryProducts(ctx, `SELECT `+productColumns+` FROM catalog_items WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// CountProducts returns the catalog size.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// UpsertProduct inserts or replaces a catalog item.
func (s *Store) UpsertProduct(ctx context.Context, p *Product) error {
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("product id and name are required")
	}
	var embedding any
	if len(p.ImageEmbedding) > 0 {
		data, err := json.Marshal(p.ImageEmbedding)
		if err != nil {
			return err
		}
		embedding = string(data)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}

	cols := []string{"id", "name", "description", "picture", "product_image_url", "price_usd_units", "image_embedding", "created_at"}
	query := sqlutil.Upsert(s.dialect, "catalog_items", cols, []string{"id"}, cols[1:7])
	_, err := s.db.ExecContext(ctx, s.q(query),
		p.ID, p.Name, p.Description, p.Picture, p.ProductImageURL, p.PriceUSDUnits, embedding, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

// SetImageEmbedding stores a computed embedding so indexing can skip it
// next time.
func (s *Store) SetImageEmbedding(ctx context.Context, id string, vec []float32) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE catalog_items SET image_embedding = ? WHERE id = ?`), string(data), id)
	if err != nil {
		return fmt.Errorf("failed to store embedding for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("product", id)
	}
	return nil
}
