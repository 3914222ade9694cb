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
	"fmt"
	"log/slog"

	"github.com/kadirpekel/storefront/pkg/artifact"
	"github.com/kadirpekel/storefront/pkg/tool"
	"github.com/kadirpekel/storefront/pkg/tool/functiontool"
)

type SelectPaymentMethodArgs struct {
	PaymentMethod string `json:"payment_method" jsonschema:"required,description=Method id, last four digits, type or name such as 'paypal' or 'visa'"`
}

type ProcessPaymentArgs struct {
	OrderID       string `json:"order_id" jsonschema:"required,description=Order to pay for"`
	PaymentMethod string `json:"payment_method,omitempty" jsonschema:"description=Method to charge; defaults to the selected or default method"`
}

type PaymentArgs struct {
	PaymentID string `json:"payment_id" jsonschema:"required,description=Payment id"`
}

type RefundPaymentArgs struct {
	PaymentID string `json:"payment_id" jsonschema:"required,description=Payment id"`
	Reason    string `json:"reason" jsonschema:"required,description=Why the customer wants the refund"`
}

func (ts *toolset) paymentTools() []tool.CallableTool {
	return []tool.CallableTool{
		functiontool.Must(functiontool.Config{
			Name:        "list_payment_methods",
			Description: "List the customer's saved payment methods.",
		}, ts.listPaymentMethods),
		functiontool.Must(functiontool.Config{
			Name:        "select_payment_method",
			Description: "Choose the payment method to use for checkout.",
		}, ts.selectPaymentMethod),
		functiontool.Must(functiontool.Config{
			Name:        "process_payment",
			Description: "Charge an order. Records a payment mandate and marks the order completed.",
		}, ts.processPayment),
		functiontool.Must(functiontool.Config{
			Name:        "get_payment_status",
			Description: "Look up a payment.",
		}, ts.paymentStatus),
		functiontool.Must(functiontool.Config{
			Name:        "refund_payment",
			Description: "Refund a payment and mark its order refunded.",
		}, ts.refundPayment),
		functiontool.Must(functiontool.Config{
			Name:        "get_payment_history",
			Description: "List the payments made in this session, newest first.",
		}, ts.paymentHistory),
	}
}

func (ts *toolset) listPaymentMethods(ctx tool.Context, _ NoArgs) (map[string]any, error) {
	methods := ts.store.PaymentMethods(ctx, ctx.SessionID())
	list := make([]any, len(methods))
	for i := range methods {
		list[i] = methods[i].ToMap()
	}
	if err := ctx.State().Set(artifact.KeyAvailablePaymentMethods, list); err != nil {
		return nil, fmt.Errorf("failed to store payment methods: %w", err)
	}
	return map[string]any{"payment_methods": list, "count": len(list)}, nil
}

func (ts *toolset) selectPaymentMethod(ctx tool.Context, args SelectPaymentMethodArgs) (map[string]any, error) {
	m, err := ts.store.FindPaymentMethod(ctx, ctx.SessionID(), args.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if len(stateList(ctx, artifact.KeyAvailablePaymentMethods)) == 0 {
		if _, err := ts.listPaymentMethods(ctx, NoArgs{}); err != nil {
			return nil, err
		}
	}
	selected := m.ToMap()
	if err := ctx.State().Set(artifact.KeySelectedPaymentMethod, selected); err != nil {
		return nil, fmt.Errorf("failed to store payment method: %w", err)
	}
	return map[string]any{
		"selected_payment_method": selected,
		"message":                 "Selected " + m.DisplayName,
	}, nil
}

func (ts *toolset) processPayment(ctx tool.Context, args ProcessPaymentArgs) (map[string]any, error) {
	ref := args.PaymentMethod
	if ref == "" {
		if sel, err := ctx.State().Get(artifact.KeySelectedPaymentMethod); err == nil {
			if m, ok := sel.(map[string]any); ok {
				ref = str(m["id"])
			}
		}
	}
	method, err := ts.store.FindPaymentMethod(ctx, ctx.SessionID(), ref)
	if err != nil {
		return nil, err
	}

	p, err := ts.store.ProcessPayment(ctx, args.OrderID, method.ID)
	if err != nil {
		return nil, err
	}
	// The order is now completed; refresh it if it is the one on screen.
	if cur, err := ctx.State().Get(artifact.KeyCurrentOrder); err == nil {
		if m, ok := cur.(map[string]any); ok && str(m["order_id"]) == args.OrderID {
			if order, err := ts.store.GetOrder(ctx, args.OrderID); err == nil {
				// The payment stands even if the refresh fails.
				if err := ctx.State().Set(artifact.KeyCurrentOrder, order.ToMap()); err != nil {
					slog.Warn("Failed to refresh current order", "order", args.OrderID, "error", err)
				}
			}
		}
	}

	out := p.ToMap()
	out["message"] = "Payment processed successfully"
	return out, nil
}

func (ts *toolset) paymentStatus(ctx tool.Context, args PaymentArgs) (map[string]any, error) {
	p, err := ts.store.GetPayment(ctx, args.PaymentID)
	if err != nil {
		return nil, err
	}
	out := p.ToMap()
	out["message"] = "Payment status: " + p.Status
	return out, nil
}

func (ts *toolset) refundPayment(ctx tool.Context, args RefundPaymentArgs) (map[string]any, error) {
	r, err := ts.store.RefundPayment(ctx, args.PaymentID, args.Reason)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"refund_id":  r.RefundID,
		"payment_id": r.PaymentID,
		"amount":     r.Amount,
		"reason":     r.Reason,
		"status":     r.Status,
		"message":    "Refund processed successfully",
	}, nil
}

func (ts *toolset) paymentHistory(ctx tool.Context, _ NoArgs) (map[string]any, error) {
	payments, err := ts.store.PaymentHistory(ctx, ctx.SessionID())
	if err != nil {
		return nil, err
	}
	return map[string]any{"payments": maps(payments), "count": len(payments)}, nil
}
