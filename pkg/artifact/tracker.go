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

// Tracker holds the per-category values observed at turn start and answers
// whether a later state differs from them. It is immutable after
// construction and never fails on missing or malformed keys.
type Tracker struct {
	initial map[Category]any
}

// NewTracker snapshots initial. The state map itself is not retained.
func NewTracker(initial map[string]any) *Tracker {
	t := &Tracker{initial: make(map[Category]any, len(Categories))}
	for _, c := range Categories {
		t.initial[c] = Canonical(sliceOf(c, initial))
	}
	return t
}

// Initial returns the canonical turn-start value of a category.
func (t *Tracker) Initial(c Category) any {
	return t.initial[c]
}

// Changed reports whether the category's value in current differs from the
// turn-start value in the way that warrants a new artifact.
func (t *Tracker) Changed(c Category, current map[string]any) bool {
	cur := Canonical(sliceOf(c, current))
	initial := t.initial[c]

	switch c {
	case Products, PaymentMethods:
		return isNonEmptyList(cur) && !Equal(cur, initial)
	case Cart:
		return !Equal(cur, initial)
	case OrderSummary:
		return cur != nil && !Equal(cur, initial)
	case PaymentMethodSelection:
		return truthy(cur) && !Equal(cur, initial)
	case Order:
		if !truthy(cur) || Equal(cur, initial) {
			return false
		}
		if !truthy(initial) {
			return true
		}
		return !Equal(field(cur, "order_id"), field(initial, "order_id"))
	default:
		return false
	}
}

// sliceOf reads a category's value the way the turn-start snapshot does:
// list categories default to an empty list, map categories to nil, and the
// cart falls back to cart_items when cart is empty or absent.
func sliceOf(c Category, state map[string]any) any {
	switch c {
	case Products:
		return valueOr(state, KeyCurrentResults, []any{})
	case Cart:
		if v, ok := state[KeyCart]; ok {
			if cv := Canonical(v); truthy(cv) {
				return cv
			}
		}
		return valueOr(state, KeyCartItems, []any{})
	case OrderSummary:
		return state[KeyPendingOrderSummary]
	case Order:
		return state[KeyCurrentOrder]
	case PaymentMethods:
		return valueOr(state, KeyAvailablePaymentMethods, []any{})
	case PaymentMethodSelection:
		return state[KeySelectedPaymentMethod]
	default:
		return nil
	}
}

func valueOr(state map[string]any, key string, def any) any {
	if v, ok := state[key]; ok {
		return v
	}
	return def
}

func field(v any, key string) any {
	if m, ok := v.(map[string]any); ok {
		return m[key]
	}
	return nil
}

func isNonEmptyList(v any) bool {
	l, ok := v.([]any)
	return ok && len(l) > 0
}

// truthy treats nil, empty strings, zero numbers, false and empty
// collections as absent.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
