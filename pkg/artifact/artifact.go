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

// Package artifact turns session state changes into A2A data artifacts.
//
// A Tracker freezes the state observed at the start of a turn. A Streamer,
// built per turn on top of it, publishes each category at most once and
// only when the category's value differs from the frozen one. Formatters
// map raw state slices to wire payloads and return nil when the slice is
// unusable.
//
// All comparisons happen on canonical values: a JSON round trip that
// yields map[string]any, []any, string, float64, bool and nil only. Two
// values are equal when their canonical forms are deeply equal, so 3 and
// 3.0 compare equal no matter which Go type a tool stored.
package artifact

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"
)

// Category names a kind of artifact and is also its wire name.
type Category string

const (
	Products               Category = "products"
	Cart                   Category = "cart"
	OrderSummary           Category = "order_summary"
	Order                  Category = "order"
	PaymentMethods         Category = "payment_methods"
	PaymentMethodSelection Category = "payment_method_selection"
)

// Categories lists every category in streaming order. Dependent views
// arrive after the ones they build on (order_summary before order).
var Categories = []Category{
	Products,
	Cart,
	OrderSummary,
	Order,
	PaymentMethods,
	PaymentMethodSelection,
}

// State keys read by the categories.
const (
	KeyCurrentResults          = "current_results"
	KeyCart                    = "cart"
	KeyCartItems               = "cart_items"
	KeyPendingOrderSummary     = "pending_order_summary"
	KeyCurrentOrder            = "current_order"
	KeyAvailablePaymentMethods = "available_payment_methods"
	KeySelectedPaymentMethod   = "selected_payment_method"
)

// Canonical returns a deep copy of v in canonical form. Values that cannot
// be encoded as JSON are returned unchanged.
func Canonical(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// CanonicalState canonicalizes every value of a state map.
func CanonicalState(state map[string]any) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = Canonical(v)
	}
	return out
}

// Equal reports deep equality of the canonical forms of a and b.
func Equal(a, b any) bool {
	return cmp.Equal(Canonical(a), Canonical(b))
}
