package artifact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kadirpekel/storefront/pkg/artifact"
)

func TestTracker_Changed(t *testing.T) {
	tests := []struct {
		name     string
		category artifact.Category
		initial  map[string]any
		current  map[string]any
		want     bool
	}{
		{
			name:     "products appear",
			category: artifact.Products,
			current:  map[string]any{"current_results": []any{product("p1", 1)}},
			want:     true,
		},
		{
			name:     "products emptied",
			category: artifact.Products,
			initial:  map[string]any{"current_results": []any{product("p1", 1)}},
			current:  map[string]any{"current_results": []any{}},
			want:     false,
		},
		{
			name:     "numbers compare by value",
			category: artifact.Cart,
			initial:  map[string]any{"cart": []any{map[string]any{"quantity": 1}}},
			current:  map[string]any{"cart": []map[string]any{{"quantity": 1.0}}},
			want:     false,
		},
		{
			name:     "cart falls back to cart_items",
			category: artifact.Cart,
			initial:  map[string]any{"cart_items": []any{map[string]any{"id": "a"}}},
			current:  map[string]any{"cart": []any{}, "cart_items": []any{map[string]any{"id": "a"}}},
			want:     false,
		},
		{
			name:     "cart emptied is a change",
			category: artifact.Cart,
			initial:  map[string]any{"cart": []any{map[string]any{"id": "a"}}},
			current:  map[string]any{"cart": []any{}},
			want:     true,
		},
		{
			name:     "empty order summary counts",
			category: artifact.OrderSummary,
			current:  map[string]any{"pending_order_summary": map[string]any{}},
			want:     true,
		},
		{
			name:     "order summary removed",
			category: artifact.OrderSummary,
			initial:  map[string]any{"pending_order_summary": map[string]any{"item_count": 1}},
			current:  map[string]any{},
			want:     false,
		},
		{
			name:     "order with same id",
			category: artifact.Order,
			initial:  map[string]any{"current_order": map[string]any{"order_id": "O1"}},
			current:  map[string]any{"current_order": map[string]any{"order_id": "O1", "status": "shipped"}},
			want:     false,
		},
		{
			name:     "payment methods unchanged",
			category: artifact.PaymentMethods,
			initial:  map[string]any{"available_payment_methods": []any{map[string]any{"id": "pm1"}}},
			current:  map[string]any{"available_payment_methods": []any{map[string]any{"id": "pm1"}}},
			want:     false,
		},
		{
			name:     "selection made",
			category: artifact.PaymentMethodSelection,
			current:  map[string]any{"selected_payment_method": map[string]any{"id": "pm1"}},
			want:     true,
		},
		{
			name:     "malformed value does not fail",
			category: artifact.Products,
			current:  map[string]any{"current_results": "not a list"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := artifact.NewTracker(tt.initial)
			assert.Equal(t, tt.want, tr.Changed(tt.category, tt.current))
		})
	}
}

func TestTracker_SnapshotIsIsolated(t *testing.T) {
	items := []any{map[string]any{"id": "a"}}
	state := map[string]any{"cart": items}
	tr := artifact.NewTracker(state)

	items[0].(map[string]any)["id"] = "b"
	state["cart"] = items

	assert.True(t, tr.Changed(artifact.Cart, state))
	assert.Equal(t, []any{map[string]any{"id": "a"}}, tr.Initial(artifact.Cart))
}

func TestEqual(t *testing.T) {
	assert.True(t, artifact.Equal(map[string]any{"a": 3}, map[string]any{"a": 3.0}))
	assert.True(t, artifact.Equal(nil, nil))
	assert.False(t, artifact.Equal([]any{}, nil))
	assert.False(t, artifact.Equal([]any{1, 2}, []any{2, 1}))
}
