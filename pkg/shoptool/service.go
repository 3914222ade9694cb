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
	"github.com/kadirpekel/storefront/pkg/shop"
	"github.com/kadirpekel/storefront/pkg/tool"
	"github.com/kadirpekel/storefront/pkg/tool/functiontool"
)

type CreateInquiryArgs struct {
	InquiryType string `json:"inquiry_type" jsonschema:"required,enum=return,enum=refund,enum=question,enum=complaint,enum=product_issue"`
	Message     string `json:"message" jsonschema:"required,description=The customer's message"`
	OrderID     string `json:"order_id,omitempty" jsonschema:"description=Related order id if any"`
}

type InquiryArgs struct {
	InquiryID string `json:"inquiry_id" jsonschema:"required"`
}

type FAQArgs struct {
	Query string `json:"query" jsonschema:"required,description=The customer's question"`
}

type ReturnArgs struct {
	OrderID string `json:"order_id" jsonschema:"required"`
	Reason  string `json:"reason" jsonschema:"required"`
}

func (ts *toolset) serviceTools() []tool.CallableTool {
	return []tool.CallableTool{
		functiontool.Must(functiontool.Config{
			Name:        "create_inquiry",
			Description: "Open a customer service inquiry.",
		}, ts.createInquiry),
		functiontool.Must(functiontool.Config{
			Name:        "get_inquiry_status",
			Description: "Look up an inquiry.",
		}, ts.inquiryStatus),
		functiontool.Must(functiontool.Config{
			Name:        "search_faq",
			Description: "Search the store FAQ.",
		}, ts.searchFAQ),
		functiontool.Must(functiontool.Config{
			Name:        "initiate_return",
			Description: "Start a return for an order.",
		}, ts.initiateReturn),
		functiontool.Must(functiontool.Config{
			Name:        "get_order_inquiries",
			Description: "List the inquiries opened for an order.",
		}, ts.orderInquiries),
	}
}

func (ts *toolset) createInquiry(ctx tool.Context, args CreateInquiryArgs) (map[string]any, error) {
	inq, err := ts.store.CreateInquiry(ctx, ctx.SessionID(), args.InquiryType, args.Message, args.OrderID)
	if err != nil {
		return nil, err
	}
	out := inq.ToMap()
	out["response"] = "Your inquiry has been submitted and will be reviewed."
	return out, nil
}

func (ts *toolset) inquiryStatus(ctx tool.Context, args InquiryArgs) (map[string]any, error) {
	inq, err := ts.store.GetInquiry(ctx, args.InquiryID)
	if err != nil {
		return nil, err
	}
	return inq.ToMap(), nil
}

func (ts *toolset) searchFAQ(_ tool.Context, args FAQArgs) (map[string]any, error) {
	entries := shop.SearchFAQ(args.Query)
	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = map[string]any{
			"question":        e.Question,
			"answer":          e.Answer,
			"relevance_score": e.RelevanceScore,
		}
	}
	return map[string]any{"results": list}, nil
}

func (ts *toolset) initiateReturn(ctx tool.Context, args ReturnArgs) (map[string]any, error) {
	r, err := ts.store.InitiateReturn(ctx, ctx.SessionID(), args.OrderID, args.Reason)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"return_id":    r.ReturnID,
		"order_id":     r.OrderID,
		"status":       r.Status,
		"reason":       r.Reason,
		"instructions": r.Instructions,
		"inquiry_id":   r.InquiryID,
	}, nil
}

func (ts *toolset) orderInquiries(ctx tool.Context, args OrderArgs) (map[string]any, error) {
	inquiries, err := ts.store.OrderInquiries(ctx, args.OrderID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"inquiries": maps(inquiries), "count": len(inquiries)}, nil
}
