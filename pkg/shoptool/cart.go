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
	"strconv"
	"strings"
	"time"

	"github.com/kadirpekel/storefront/pkg/artifact"
	"github.com/kadirpekel/storefront/pkg/tool"
	"github.com/kadirpekel/storefront/pkg/tool/functiontool"
)

type AddToCartArgs struct {
	ProductDescription string `json:"product_description" jsonschema:"required,description=Which search result to add: a position like 'first one' or 'number 2' or words from its name"`
	Quantity           int    `json:"quantity,omitempty" jsonschema:"description=How many to add,default=1"`
}

type CartItemArgs struct {
	CartItemID string `json:"cart_item_id" jsonschema:"required,description=Cart item id from get_cart"`
}

type UpdateCartItemArgs struct {
	CartItemID string `json:"cart_item_id" jsonschema:"required,description=Cart item id from get_cart"`
	Quantity   int    `json:"quantity" jsonschema:"required,description=New quantity (at least 1)"`
}

type NoArgs struct{}

func (ts *toolset) cartTools() []tool.CallableTool {
	return []tool.CallableTool{
		functiontool.Must(functiontool.Config{
			Name:        "add_to_cart",
			Description: "Add a product from the latest search results to the cart.",
		}, ts.addToCart),
		functiontool.Must(functiontool.Config{
			Name:        "get_cart",
			Description: "Show the cart contents, newest first.",
		}, ts.getCart),
		functiontool.Must(functiontool.Config{
			Name:        "update_cart_item",
			Description: "Change the quantity of a cart line.",
		}, ts.updateCartItem),
		functiontool.Must(functiontool.Config{
			Name:        "remove_from_cart",
			Description: "Remove a line from the cart.",
		}, ts.removeFromCart),
		functiontool.Must(functiontool.Config{
			Name:        "clear_cart",
			Description: "Empty the cart.",
		}, ts.clearCart),
		functiontool.Must(functiontool.Config{
			Name:        "get_cart_total",
			Description: "Count cart lines and units and compute the subtotal.",
		}, ts.cartTotal),
	}
}

func (ts *toolset) addToCart(ctx tool.Context, args AddToCartArgs) (map[string]any, error) {
	if args.Quantity == 0 {
		args.Quantity = 1
	}
	if args.Quantity < 0 {
		return nil, fmt.Errorf("quantity must be greater than 0")
	}
	desc := strings.TrimSpace(args.ProductDescription)
	if desc == "" {
		return nil, fmt.Errorf("product_description cannot be empty")
	}

	match, err := matchResult(stateList(ctx, artifact.KeyCurrentResults), desc)
	if err != nil {
		return nil, err
	}
	productID := fmt.Sprint(match["id"])

	item, err := ts.store.AddCartItem(ctx, ctx.SessionID(), productID, args.Quantity)
	if err != nil {
		return nil, err
	}
	if _, err := ts.refreshCart(ctx); err != nil {
		return nil, err
	}
	return map[string]any{
		"cart_item_id": item.CartItemID,
		"product_id":   item.ProductID,
		"name":         item.Name,
		"picture":      item.Picture,
		"quantity":     item.Quantity,
	}, nil
}

func (ts *toolset) getCart(ctx tool.Context, _ NoArgs) (map[string]any, error) {
	lines, err := ts.refreshCart(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": lines, "count": len(lines)}, nil
}

func (ts *toolset) updateCartItem(ctx tool.Context, args UpdateCartItemArgs) (map[string]any, error) {
	if err := ts.store.UpdateCartItem(ctx, args.CartItemID, args.Quantity); err != nil {
		return nil, err
	}
	if _, err := ts.refreshCart(ctx); err != nil {
		return nil, err
	}
	return map[string]any{
		"cart_item_id": args.CartItemID,
		"quantity":     args.Quantity,
		"updated_at":   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (ts *toolset) removeFromCart(ctx tool.Context, args CartItemArgs) (map[string]any, error) {
	if err := ts.store.RemoveCartItem(ctx, args.CartItemID); err != nil {
		return nil, err
	}
	if _, err := ts.refreshCart(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"status": "removed", "cart_item_id": args.CartItemID}, nil
}

func (ts *toolset) clearCart(ctx tool.Context, _ NoArgs) (map[string]any, error) {
	n, err := ts.store.ClearCart(ctx, ctx.SessionID())
	if err != nil {
		return nil, err
	}
	if err := ctx.State().Set(artifact.KeyCart, []any{}); err != nil {
		return nil, err
	}
	return map[string]any{"status": "cleared", "items_removed": n}, nil
}

func (ts *toolset) cartTotal(ctx tool.Context, _ NoArgs) (map[string]any, error) {
	totals, err := ts.store.CartTotals(ctx, ctx.SessionID())
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"item_count":  totals.ItemCount,
		"total_items": totals.TotalItems,
		"subtotal":    totals.Subtotal,
	}, nil
}

var ordinals = map[string]int{
	"first": 1, "one": 1,
	"second": 2, "two": 2,
	"third": 3, "three": 3,
	"fourth": 4, "four": 4,
	"fifth": 5, "five": 5,
	"last": -1,
}

// position parses references like "the second one", "number 3" or "2".
// It returns 0 when desc is not positional.
func position(desc string) int {
	s := strings.TrimSpace(strings.ToLower(desc))
	s = strings.TrimPrefix(s, "the ")
	s = strings.TrimPrefix(s, "number ")
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimSuffix(s, " one")
	s = strings.TrimSpace(s)
	if n, ok := ordinals[s]; ok {
		return n
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return 0
}

// matchResult picks a search result by position, then by keywords that must
// all appear in the name or description.
func matchResult(results []map[string]any, desc string) (map[string]any, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no search results in this session, search for products first")
	}

	if pos := position(desc); pos != 0 {
		if pos == -1 {
			return results[len(results)-1], nil
		}
		if pos > len(results) {
			return nil, fmt.Errorf("only %d products in the search results", len(results))
		}
		return results[pos-1], nil
	}

	keywords := strings.Fields(strings.ToLower(desc))
	for _, r := range results {
		if id, _ := r["id"].(string); strings.EqualFold(id, desc) {
			return r, nil
		}
		text := strings.ToLower(str(r["name"]) + " " + str(r["description"]))
		all := true
		for _, kw := range keywords {
			if !strings.Contains(text, kw) {
				all = false
				break
			}
		}
		if all {
			return r, nil
		}
	}

	names := make([]string, 0, 5)
	for i, r := range results {
		if i == 5 {
			break
		}
		names = append(names, str(r["name"]))
	}
	return nil, fmt.Errorf("no product matching %q in the search results (available: %s)", desc, strings.Join(names, ", "))
}
