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

package server

import (
	"context"
	"log/slog"
)

// DefaultStatusMessage is the working status shown when a turn starts.
const DefaultStatusMessage = "Processing your shopping request..."

// toolStatusMessages maps tool names to the working status shown while
// they run.
var toolStatusMessages = map[string]string{
	"text_vector_search":  "Searching for products...",
	"image_vector_search": "Finding visually similar products...",

	"add_to_cart":      "Adding item to cart...",
	"get_cart":         "Loading your cart...",
	"update_cart_item": "Updating cart...",
	"remove_from_cart": "Removing item from cart...",
	"clear_cart":       "Clearing cart...",
	"get_cart_total":   "Calculating cart total...",

	"create_order":               "Processing your order...",
	"get_order_status":           "Checking order status...",
	"cancel_order":               "Canceling order...",
	"validate_cart_for_checkout": "Validating cart...",
	"prepare_order_summary":      "Preparing order summary...",

	"list_payment_methods":  "Loading payment methods...",
	"select_payment_method": "Selecting payment method...",
	"process_payment":       "Processing payment...",
	"get_payment_status":    "Checking payment status...",
	"refund_payment":        "Processing refund...",
	"get_payment_history":   "Loading payment history...",

	"create_inquiry":      "Creating your inquiry...",
	"get_inquiry_status":  "Checking inquiry status...",
	"search_faq":          "Searching FAQ...",
	"initiate_return":     "Initiating return...",
	"get_order_inquiries": "Retrieving order inquiries...",
}

// StatusMessage returns the status shown while the named tool runs.
func StatusMessage(tool string) (string, bool) {
	msg, ok := toolStatusMessages[tool]
	return msg, ok
}

// statusNotifier emits a working status per tool call, skipping repeats
// of the tool shown last.
type statusNotifier struct {
	send func(ctx context.Context, text string) error
	last string
}

// notify returns true when a status update was sent.
func (n *statusNotifier) notify(ctx context.Context, tool string) (bool, error) {
	if tool == "" || tool == n.last {
		return false, nil
	}
	msg, ok := StatusMessage(tool)
	if !ok {
		slog.Debug("No status message for tool", "tool", tool)
		return false, nil
	}
	if err := n.send(ctx, msg); err != nil {
		return false, err
	}
	n.last = tool
	return true, nil
}
