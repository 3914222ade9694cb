package artifact_test

import (
	"context"
	"errors"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/storefront/pkg/artifact"
)

type published struct {
	name    string
	payload map[string]any
}

type fakePublisher struct {
	got   []published
	fail  int
	panic bool
}

func (p *fakePublisher) AddArtifact(_ context.Context, parts []a2a.Part, name string) error {
	if p.panic {
		panic("boom")
	}
	if p.fail > 0 {
		p.fail--
		return errors.New("queue closed")
	}
	data := parts[0].(a2a.DataPart)
	p.got = append(p.got, published{name: name, payload: data.Data})
	return nil
}

func (p *fakePublisher) names() []string {
	var out []string
	for _, g := range p.got {
		out = append(out, g.name)
	}
	return out
}

func product(id string, price any) map[string]any {
	return map[string]any{"id": id, "name": "Item " + id, "price_usd_units": price}
}

func TestStreamer_SearchAndCartAdd(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	s := artifact.NewStreamer(artifact.NewTracker(map[string]any{}), pub)

	final := map[string]any{
		"current_results": []any{product("p1", 49)},
		"cart":            []any{map[string]any{"cart_item_id": "c1", "product_id": "p1", "subtotal": 49}},
	}
	sent := s.StreamAll(ctx, final)
	assert.Equal(t, []artifact.Category{artifact.Products, artifact.Cart}, sent)
	assert.Equal(t, []string{"products", "cart"}, pub.names())

	assert.Empty(t, s.EnsureAllSent(ctx, final))
	assert.Len(t, pub.got, 2)

	cart := pub.got[1].payload
	assert.Equal(t, "cart", cart["type"])
	assert.Equal(t, 1, cart["total_items"])
	assert.Equal(t, 49.0, cart["subtotal"])
}

func TestStreamer_NoopTurn(t *testing.T) {
	state := map[string]any{
		"current_results": []any{product("p1", 10)},
		"cart":            []any{map[string]any{"cart_item_id": "c1", "subtotal": 10}},
		"current_order":   map[string]any{"order_id": "O1"},
	}
	pub := &fakePublisher{}
	s := artifact.NewStreamer(artifact.NewTracker(state), pub)
	assert.Empty(t, s.EnsureAllSent(context.Background(), state))
	assert.Empty(t, pub.got)
}

func TestStreamer_OrderCreation(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	s := artifact.NewStreamer(artifact.NewTracker(map[string]any{"current_order": nil}), pub)

	final := map[string]any{"current_order": map[string]any{
		"order_id": "O1", "status": "completed", "total_amount": 10.0,
	}}
	assert.True(t, s.StreamIfChanged(ctx, artifact.Order, final))
	assert.False(t, s.StreamIfChanged(ctx, artifact.Order, final))

	require.Len(t, pub.got, 1)
	assert.Equal(t, map[string]any{
		"type":             "order",
		"order_id":         "O1",
		"status":           "completed",
		"items":            []any{},
		"total_amount":     10.0,
		"shipping_address": "",
		"created_at":       "",
	}, pub.got[0].payload)
}

func TestStreamer_AtMostOncePerCategory(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	s := artifact.NewStreamer(artifact.NewTracker(nil), pub)

	assert.True(t, s.StreamIfChanged(ctx, artifact.Products, map[string]any{
		"current_results": []any{product("p1", 1)},
	}))
	assert.False(t, s.StreamIfChanged(ctx, artifact.Products, map[string]any{
		"current_results": []any{product("p2", 2)},
	}))

	require.Len(t, pub.got, 1)
	products := pub.got[0].payload["products"].([]any)
	assert.Equal(t, "p1", products[0].(map[string]any)["id"])
	assert.True(t, s.Sent(artifact.Products))
	assert.False(t, s.Sent(artifact.Cart))
}

func TestStreamer_OrderIDGuard(t *testing.T) {
	initial := map[string]any{"current_order": map[string]any{"order_id": "O1", "status": "pending"}}
	pub := &fakePublisher{}
	s := artifact.NewStreamer(artifact.NewTracker(initial), pub)

	updated := map[string]any{"current_order": map[string]any{"order_id": "O1", "status": "completed"}}
	assert.False(t, s.StreamIfChanged(context.Background(), artifact.Order, updated))

	replaced := map[string]any{"current_order": map[string]any{"order_id": "O2", "status": "pending"}}
	assert.True(t, s.StreamIfChanged(context.Background(), artifact.Order, replaced))
}

func TestStreamer_ClearedCartIsNotPublished(t *testing.T) {
	initial := map[string]any{"cart": []any{map[string]any{"cart_item_id": "c1", "subtotal": 5}}}
	pub := &fakePublisher{}
	s := artifact.NewStreamer(artifact.NewTracker(initial), pub)

	cleared := map[string]any{"cart": []any{}}
	assert.False(t, s.StreamIfChanged(context.Background(), artifact.Cart, cleared))
	assert.False(t, s.Sent(artifact.Cart))
	assert.Empty(t, pub.got)
}

func TestStreamer_FailedPublishIsRetried(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{fail: 1}
	var observed []error
	s := artifact.NewStreamer(artifact.NewTracker(nil), pub, artifact.WithObserver(func(_ artifact.Category, err error) {
		observed = append(observed, err)
	}))

	state := map[string]any{"selected_payment_method": map[string]any{"id": "pm1", "type": "card"}}
	assert.False(t, s.StreamIfChanged(ctx, artifact.PaymentMethodSelection, state))
	assert.False(t, s.Sent(artifact.PaymentMethodSelection))

	assert.Equal(t, []artifact.Category{artifact.PaymentMethodSelection}, s.EnsureAllSent(ctx, state))
	require.Len(t, observed, 2)
	assert.Error(t, observed[0])
	assert.NoError(t, observed[1])
}

func TestStreamer_PanicIsRecovered(t *testing.T) {
	pub := &fakePublisher{panic: true}
	s := artifact.NewStreamer(artifact.NewTracker(nil), pub)

	state := map[string]any{"available_payment_methods": []any{map[string]any{"id": "pm1"}}}
	assert.NotPanics(t, func() {
		assert.False(t, s.StreamIfChanged(context.Background(), artifact.PaymentMethods, state))
	})
	assert.False(t, s.Sent(artifact.PaymentMethods))
}

func TestStreamer_UnknownCategory(t *testing.T) {
	s := artifact.NewStreamer(artifact.NewTracker(nil), &fakePublisher{})
	assert.False(t, s.StreamIfChanged(context.Background(), artifact.Category("wishlist"), map[string]any{}))
}

func TestStreamer_PublishesJSONDataPart(t *testing.T) {
	var parts []a2a.Part
	pub := publisherFunc(func(_ context.Context, p []a2a.Part, _ string) error {
		parts = p
		return nil
	})
	s := artifact.NewStreamer(artifact.NewTracker(nil), pub)
	require.True(t, s.StreamIfChanged(context.Background(), artifact.OrderSummary, map[string]any{
		"pending_order_summary": map[string]any{"item_count": 2, "total_amount": 20},
	}))

	require.Len(t, parts, 1)
	data, ok := parts[0].(a2a.DataPart)
	require.True(t, ok)
	assert.Equal(t, "application/json", data.Metadata["mimeType"])
	assert.Equal(t, 2, data.Data["item_count"])
	assert.Equal(t, 20.0, data.Data["total_amount"])
}

type publisherFunc func(context.Context, []a2a.Part, string) error

func (f publisherFunc) AddArtifact(ctx context.Context, parts []a2a.Part, name string) error {
	return f(ctx, parts, name)
}
