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


package shoptool

import (
	"errors"
	"fmt"

	"github.com/kadirpekel/storefront/pkg/artifact"
	"github.com/kadirpekel/storefront/pkg/shop"
	"github.com/kadirpekel/storefront/pkg/tool"
	"github.com/kadirpekel/storefront/pkg/tool/functiontool"
)

type CreateOrderArgs struct {
	ShippingAddress string `json:"shipping_address,omitempty" jsonschema:"description=Delivery address; defaults to the one from the order summary"`
}

type OrderArgs struct {
	OrderID string `json:"order_id" jsonschema:"required,description=Order id"`
}

func (ts *toolset) checkoutTools() []tool.CallableTool {
	return []tool.CallableTool{
		functiontool.Must(functiontool.Config{
			Name:        "validate_cart_for_checkout",
			Description: "Check whether the cart can be checked out.",
		}, ts.validateCart),
		functiontool.Must(functiontool.Config{
			Name:        "prepare_order_summary",
			Description: "Price the cart and pick a shipping address so the user can review the order before confirming. Does not place the order.",
		}, ts.prepareOrderSummary),
		functiontool.Must(functiontool.Config{
			Name:        "create_order",
			Description: "Place the order for everything in the cart. Only call after the user confirmed the order summary.",
		}, ts.createOrder),
		functiontool.Must(functiontool.Config{
			Name:        "get_order_status",
			Description: "Look up an order and its status.",
		}, ts.orderStatus),
		functiontool.Must(functiontool.Config{
			Name:        "cancel_order",
			Description: "Cancel an order that is still pending or processing.",
		}, ts.cancelOrder),
	}
}

func (ts *toolset) validateCart(ctx tool.Context, _ NoArgs) (map[string]any, error) {
	totals, err := ts.store.CartTotals(ctx, ctx.SessionID())
	if err != nil {
		return nil, err
	}
	problems := []any{}
	if totals.ItemCount == 0 {
		problems = append(problems, "Cart is empty")
	}
	return map[string]any{
		"valid":      len(problems) == 0,
		"errors":     problems,
		"warnings":   []any{},
		"item_count": totals.ItemCount,
	}, nil
}

func (ts *toolset) prepareOrderSummary(ctx tool.Context, _ NoArgs) (map[string]any, error) {
	summary, err := ts.store.PrepareOrderSummary(ctx, ctx.SessionID())
	if err != nil {
		return nil, err
	}
	m := summary.ToMap()
	if err := ctx.State().Set(artifact.KeyPendingOrderSummary, m); err != nil {
		return nil, fmt.Errorf("failed to store order summary: %w", err)
	}
	if err := ctx.State().Set(KeyShippingAddress, summary.ShippingAddress); err != nil {
		return nil, err
	}
	return m, nil
}

func (ts *toolset) createOrder(ctx tool.Context, args CreateOrderArgs) (map[string]any, error) {
	address := args.ShippingAddress
	if address == "" {
		address = stateString(ctx, KeyShippingAddress)
	}
	order, err := ts.store.CreateOrder(ctx, ctx.SessionID(), address)
	if err != nil {
		if errors.Is(err, shop.ErrEmptyCart) {
			return nil, fmt.Errorf("the cart is empty, add products before ordering")
		}
		return nil, err
	}

	m := order.ToMap()
	if err := ctx.State().Set(artifact.KeyCurrentOrder, m); err != nil {
		return nil, fmt.Errorf("failed to store order: %w", err)
	}
	if err := ctx.State().Set(KeyShippingAddress, order.ShippingAddress); err != nil {
		return nil, err
	}
	if err := ctx.State().Set(artifact.KeyCart, []any{}); err != nil {
		return nil, err
	}
	deleteKey(ctx, artifact.KeyPendingOrderSummary)

	out := order.ToMap()
	out["message"] = "Order created successfully"
	return out, nil
}

func (ts *toolset) orderStatus(ctx tool.Context, args OrderArgs) (map[string]any, error) {
	order, err := ts.store.GetOrder(ctx, args.OrderID)
	if err != nil {
		return nil, err
	}
	if err := ctx.State().Set(artifact.KeyCurrentOrder, order.ToMap()); err != nil {
		return nil, err
	}
	out := order.ToMap()
	out["message"] = "Order status: " + order.Status
	return out, nil
}

func (ts *toolset) cancelOrder(ctx tool.Context, args OrderArgs) (map[string]any, error) {
	refund, err := ts.store.CancelOrder(ctx, args.OrderID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"order_id":      args.OrderID,
		"status":        shop.OrderCanceled,
		"refund_amount": refund,
		"message":       "Order cancelled successfully",
	}, nil
}
