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

// Package auth validates bearer JWTs against an issuer's JWKS.
//
// Validated claims travel in the request context. The shopping executor
// uses the subject as the session user id.
//
//	auth:
//	  enabled: true
//	  jwks_url: https://issuer.example.com/.well-known/jwks.json
//	  issuer: https://issuer.example.com/
//	  audience: storefront
package auth

import "context"

type contextKey struct{}

// Claims are the validated claims of a token.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`

	// Custom holds every non-registered claim.
	Custom map[string]any `json:"-"`
}

// StringClaim returns a custom claim when it is a string.
func (c *Claims) StringClaim(key string) string {
	if c == nil || c.Custom == nil {
		return ""
	}
	s, _ := c.Custom[key].(string)
	return s
}

// HasRole reports whether the token carries one of roles.
func (c *Claims) HasRole(roles ...string) bool {
	if c == nil {
		return false
	}
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// ClaimsFromContext returns the claims stored by the middleware, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(contextKey{}).(*Claims)
	return claims
}

// ContextWithClaims returns ctx carrying claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}
