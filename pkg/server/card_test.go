package server

import (
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgentCard(t *testing.T) {
	cfg := newTestConfig()
	card := NewAgentCard(cfg)

	assert.Equal(t, "Shopping Assistant", card.Name)
	assert.Equal(t, "1.0.0", card.Version)
	assert.Equal(t, "http://localhost:8080/", card.URL)
	assert.True(t, card.Capabilities.Streaming)
	assert.False(t, card.Capabilities.PushNotifications)
	assert.Equal(t, a2a.TransportProtocolJSONRPC, card.PreferredTransport)
	assert.Empty(t, card.SecuritySchemes)
	assert.Empty(t, card.AdditionalInterfaces)

	ids := make([]string, len(card.Skills))
	for i, s := range card.Skills {
		ids[i] = s.ID
		assert.NotEmpty(t, s.Examples)
	}
	assert.Equal(t, []string{"discover_products", "manage_cart", "checkout", "pay", "customer_service"}, ids)
}

func TestNewAgentCard_AuthAndGRPC(t *testing.T) {
	cfg := newTestConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.Issuer = "https://issuer.example"
	cfg.Server.GRPCPort = 9090

	card := NewAgentCard(cfg)
	_, ok := card.SecuritySchemes["BearerAuth"]
	require.True(t, ok)
	require.Len(t, card.Security, 1)

	require.Len(t, card.AdditionalInterfaces, 2)
	assert.Equal(t, a2a.TransportProtocolGRPC, card.AdditionalInterfaces[1].Transport)
	assert.Equal(t, "localhost:9090", card.AdditionalInterfaces[1].URL)
}
