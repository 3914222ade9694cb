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

package artifact

import (
	"encoding/json"
	"strconv"
)

// FormatProducts maps search results to product cards. Prices are whole
// dollars; id and price_usd_units are passed through untouched. Items that are not
// objects are skipped. Empty or invalid input yields an empty list.
func FormatProducts(items any) []map[string]any {
	list, _ := Canonical(items).([]any)
	out := make([]map[string]any, 0, len(list))
	for _, it := range list {
		p, ok := it.(map[string]any)
		if !ok {
			continue
		}
		units := p["price_usd_units"]
		price := 0.0
		if truthy(units) {
			price, _ = toFloat(units)
		}
		out = append(out, map[string]any{
			"id":              p["id"],
			"name":            stringOr(p["name"], ""),
			"description":     stringOr(p["description"], ""),
			"image_url":       firstString(p["product_image_url"], p["picture"]),
			"price":           price,
			"price_usd_units": units,
			"distance":        floatOr(p["distance"], 0.0),
		})
	}
	return out
}

// FormatProductList wraps formatted products in the products payload, or
// returns nil when there is nothing to show.
func FormatProductList(state map[string]any) map[string]any {
	products := FormatProducts(state[KeyCurrentResults])
	if len(products) == 0 {
		return nil
	}
	return map[string]any{"type": "product_list", "products": toAnyList(products)}
}

// FormatCart returns the cart payload for the list at cart, or cart_items
// when cart is empty or absent. Missing, malformed or empty carts yield nil.
func FormatCart(state map[string]any) map[string]any {
	items, ok := Canonical(sliceOf(Cart, state)).([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	subtotal := 0.0
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			v, _ := toFloat(m["subtotal"])
			subtotal += v
		}
	}
	return map[string]any{
		"type":        "cart",
		"items":       items,
		"total_items": len(items),
		"subtotal":    subtotal,
	}
}

// FormatOrderSummary returns the pending checkout summary payload. An
// empty summary yields nil.
func FormatOrderSummary(state map[string]any) map[string]any {
	s, ok := Canonical(state[KeyPendingOrderSummary]).(map[string]any)
	if !ok || len(s) == 0 {
		return nil
	}
	return map[string]any{
		"type":             "order_summary",
		"items":            listOr(s["items"]),
		"total_amount":     floatOr(s["total_amount"], 0.0),
		"shipping_address": stringOr(s["shipping_address"], ""),
		"item_count":       intOr(s["item_count"], 0),
	}
}

// FormatOrder returns the placed order payload.
func FormatOrder(state map[string]any) map[string]any {
	raw := Canonical(state[KeyCurrentOrder])
	if !truthy(raw) {
		return nil
	}
	o, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return map[string]any{
		"type":             "order",
		"order_id":         stringOr(o["order_id"], ""),
		"status":           stringOr(o["status"], ""),
		"items":            listOr(o["items"]),
		"total_amount":     floatOr(o["total_amount"], 0.0),
		"shipping_address": stringOr(o["shipping_address"], ""),
		"created_at":       stringOr(o["created_at"], ""),
	}
}

// FormatPaymentMethods returns the payment methods payload.
func FormatPaymentMethods(state map[string]any) map[string]any {
	list, ok := Canonical(state[KeyAvailablePaymentMethods]).([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	return map[string]any{
		"type":            "payment_methods",
		"payment_methods": paymentMethods(list),
	}
}

// FormatPaymentMethodSelection returns the selected method together with
// the available ones, so clients can render the choice in context.
func FormatPaymentMethodSelection(state map[string]any) map[string]any {
	sel, ok := Canonical(state[KeySelectedPaymentMethod]).(map[string]any)
	if !ok {
		return nil
	}
	available, _ := Canonical(state[KeyAvailablePaymentMethods]).([]any)
	return map[string]any{
		"type":                       "payment_method_selection",
		"selected_payment_method_id": stringOr(sel["id"], ""),
		"payment_method":             paymentMethod(sel),
		"payment_methods":            paymentMethods(available),
	}
}

func paymentMethods(list []any) []any {
	out := make([]any, 0, len(list))
	for _, it := range list {
		if m, ok := it.(map[string]any); ok {
			out = append(out, paymentMethod(m))
		}
	}
	return out
}

func paymentMethod(m map[string]any) map[string]any {
	isDefault, _ := m["is_default"].(bool)
	return map[string]any{
		"id":           stringOr(m["id"], ""),
		"type":         stringOr(m["type"], ""),
		"display_name": stringOr(m["display_name"], ""),
		"last_four":    stringOr(m["last_four"], ""),
		"is_default":   isDefault,
	}
}

func toAnyList(in []map[string]any) []any {
	out := make([]any, len(in))
	for i, m := range in {
		out[i] = m
	}
	return out
}

func stringOr(v any, def string) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return def
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return def
	}
}

func firstString(vs ...any) string {
	for _, v := range vs {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func floatOr(v any, def float64) float64 {
	if v == nil {
		return def
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

func intOr(v any, def int) int {
	if f, ok := toFloat(v); ok {
		return int(f)
	}
	return def
}

func listOr(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{}
}

// toFloat converts numbers and numeric strings.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
