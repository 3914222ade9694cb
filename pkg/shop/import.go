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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadCatalogFile reads products from a .json array or the first sheet of
// an .xlsx workbook.
func ReadCatalogFile(path string) ([]*Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ReadCatalogJSON(f)
	case ".xlsx":
		return ReadCatalogXLSX(f)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q (supported: .json, .xlsx)", filepath.Ext(path))
	}
}

// ReadCatalogJSON decodes a JSON array of products.
func ReadCatalogJSON(r io.Reader) ([]*Product, error) {
	var products []*Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return products, nil
}

// ReadCatalogXLSX reads the first sheet. The header row names the columns
// (id, name, description, picture, product_image_url, price_usd_units) in
// any order; unknown columns are ignored.
func ReadCatalogXLSX(r io.Reader) ([]*Product, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"id", "name"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("sheet %s: missing %q column", sheets[0], required)
		}
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var products []*Product
	for n, row := range rows[1:] {
		p := &Product{
			ID:              cell(row, "id"),
			Name:            cell(row, "name"),
			Description:     cell(row, "description"),
			Picture:         cell(row, "picture"),
			ProductImageURL: cell(row, "product_image_url"),
		}
		if p.ID == "" {
			continue
		}
		if price := cell(row, "price_usd_units"); price != "" {
			v, err := strconv.ParseFloat(price, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid price %q", n+2, price)
			}
			p.PriceUSDUnits = int(v)
		}
		products = append(products, p)
	}
	return products, nil
}

// ImportCatalog upserts every product and returns how many were written.
func (s *Store) ImportCatalog(ctx context.Context, products []*Product) (int, error) {
	n := 0
	for _, p := range products {
		if err := s.UpsertProduct(ctx, p); err != nil {
			return n, err
		}
		n++
	}
	slog.Info("Imported catalog", "products", n)
	return n, nil
}
