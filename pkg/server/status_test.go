package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMessage(t *testing.T) {
	msg, ok := StatusMessage("add_to_cart")
	require.True(t, ok)
	assert.Equal(t, "Adding item to cart...", msg)

	_, ok = StatusMessage("unknown_tool")
	assert.False(t, ok)

	assert.Len(t, toolStatusMessages, 24)
}

func TestStatusNotifier(t *testing.T) {
	ctx := context.Background()
	var sent []string
	n := &statusNotifier{send: func(_ context.Context, text string) error {
		sent = append(sent, text)
		return nil
	}}

	for _, tool := range []string{"text_vector_search", "text_vector_search", "mystery", "", "add_to_cart", "text_vector_search"} {
		_, err := n.notify(ctx, tool)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{
		"Searching for products...",
		"Adding item to cart...",
		"Searching for products...",
	}, sent)
}

func TestStatusNotifier_SendError(t *testing.T) {
	boom := errors.New("queue closed")
	n := &statusNotifier{send: func(context.Context, string) error { return boom }}

	sent, err := n.notify(context.Background(), "get_cart")
	assert.ErrorIs(t, err, boom)
	assert.False(t, sent)
	assert.Empty(t, n.last)
}
