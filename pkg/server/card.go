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
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/storefront/pkg/config"
)

// ProtocolVersion is the A2A protocol version advertised in the card.
const ProtocolVersion = "0.3.0"

var shoppingSkills = []a2a.AgentSkill{
	{
		ID:          "discover_products",
		Name:        "Product Discovery",
		Description: "Search and discover products using natural language queries or a photo and return structured product data",
		Tags:        []string{"Search products", "Find items"},
		Examples: []string{
			"Find me some running shoes",
			"Show me blue t-shirts",
			"What kitchen appliances do you have?",
		},
	},
	{
		ID:          "manage_cart",
		Name:        "Cart Management",
		Description: "Add items to cart, view cart contents, update quantities, and remove items",
		Tags:        []string{"Shopping cart", "Add to cart"},
		Examples: []string{
			"Add running shoes to my cart",
			"Show me my cart",
			"Remove item from cart",
			"Clear my cart",
		},
	},
	{
		ID:          "checkout",
		Name:        "Checkout",
		Description: "Create orders from cart and manage order status",
		Tags:        []string{"Place order", "Checkout"},
		Examples: []string{
			"I want to checkout",
			"Place my order",
			"What's the status of my order?",
		},
	},
	{
		ID:          "pay",
		Name:        "Payment Processing",
		Description: "Process payments for orders with AP2 payment mandates",
		Tags:        []string{"Pay", "Payment"},
		Examples: []string{
			"I want to pay for my order",
			"Process my payment",
		},
	},
	{
		ID:          "customer_service",
		Name:        "Customer Service",
		Description: "Handle returns, refunds, and customer inquiries",
		Tags:        []string{"Returns", "Refunds", "Support"},
		Examples: []string{
			"I want to return an item",
			"Get a refund for my order",
			"How do I track my package?",
		},
	},
}

// NewAgentCard describes the shopping assistant to A2A clients. A bearer
// security scheme is declared when auth is enabled.
func NewAgentCard(cfg *config.Config) *a2a.AgentCard {
	srv := cfg.Server
	skills := make([]a2a.AgentSkill, len(shoppingSkills))
	for i, s := range shoppingSkills {
		s.InputModes = []string{"text", "image"}
		s.OutputModes = []string{"text", "application/json"}
		skills[i] = s
	}

	card := &a2a.AgentCard{
		Name:               srv.AgentName,
		Description:        srv.Description,
		URL:                srv.URL + "/",
		Version:            srv.Version,
		ProtocolVersion:    ProtocolVersion,
		DefaultInputModes:  []string{"text", "text/plain", "image/jpeg", "image/png", "image/webp"},
		DefaultOutputModes: []string{"text", "text/plain", "application/json"},
		Skills:             skills,
		Capabilities: a2a.AgentCapabilities{
			Streaming:              true,
			PushNotifications:      false,
			StateTransitionHistory: false,
		},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Provider: &a2a.AgentProvider{
			Org: "Storefront",
			URL: srv.URL,
		},
	}

	if srv.GRPCPort != 0 {
		card.AdditionalInterfaces = []a2a.AgentInterface{
			{Transport: a2a.TransportProtocolJSONRPC, URL: card.URL},
			{Transport: a2a.TransportProtocolGRPC, URL: fmt.Sprintf("%s:%d", grpcHost(srv), srv.GRPCPort)},
		}
	}

	if cfg.Auth.Enabled {
		card.SecuritySchemes = a2a.NamedSecuritySchemes{
			"BearerAuth": a2a.HTTPAuthSecurityScheme{
				Scheme:       "bearer",
				BearerFormat: "JWT",
				Description:  "JWT bearer token issued by " + cfg.Auth.Issuer,
			},
		}
		card.Security = []a2a.SecurityRequirements{
			{"BearerAuth": a2a.SecuritySchemeScopes{}},
		}
	}
	return card
}

func grpcHost(srv config.ServerConfig) string {
	if srv.Host == "" || srv.Host == "0.0.0.0" {
		return "localhost"
	}
	return srv.Host
}
