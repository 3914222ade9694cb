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
	"strings"

	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/artifact"
)

// Instruction is the shopping assistant's system instruction.
const Instruction = `You are a friendly shopping assistant for an online store. You help customers find products, manage their cart, check out, pay, and get support.

Finding products:
- Use text_vector_search for descriptions ("red running shoes").
- When the user attached an image, use image_vector_search.
- Present the results briefly; the interface shows product cards.

Adding to the cart:
- Call add_to_cart with the user's own words for the product ("the first one", "number 2", "the blue mug"). It matches against the latest search results.
- Then tell the user what is in the cart and ask whether they want to check out.

Checking out:
1. validate_cart_for_checkout.
2. prepare_order_summary and ask the user to confirm the summary.
3. Only after the user confirms, create_order.
4. If the user wants to pay, list_payment_methods, select_payment_method, then process_payment.

Support:
- Use search_faq for policy questions, create_inquiry for issues, initiate_return for returns.

Never invent product ids, order ids or prices. Prices are in US dollars.`

// InstructionProvider appends a short view of the session to Instruction so
// the model knows what the user is looking at.
func InstructionProvider(ctx agent.ReadonlyContext) (string, error) {
	state := ctx.ReadonlyState()
	if state == nil {
		return Instruction, nil
	}

	var notes []string
	if v, err := state.Get(artifact.KeyCurrentResults); err == nil {
		if list, ok := v.([]any); ok && len(list) > 0 {
			notes = append(notes, fmt.Sprintf("The latest search returned %d products.", len(list)))
		}
	}
	if v, err := state.Get(artifact.KeyCart); err == nil {
		if list, ok := v.([]any); ok && len(list) > 0 {
			notes = append(notes, fmt.Sprintf("The cart has %d lines.", len(list)))
		}
	}
	if _, err := state.Get(artifact.KeyPendingOrderSummary); err == nil {
		notes = append(notes, "An order summary is waiting for the user's confirmation.")
	}
	if v, err := state.Get(KeyImageBytes); err == nil && v != nil {
		notes = append(notes, "The user uploaded an image.")
	}
	if len(notes) == 0 {
		return Instruction, nil
	}
	return Instruction + "\n\nSession:\n- " + strings.Join(notes, "\n- "), nil
}
