package embedder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls atomic.Int32
	fail  bool
}

func (e *countingEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.fail {
		return nil, errors.New("boom")
	}
	return []float32{float32(len(text))}, nil
}

func (e *countingEmbedder) EmbedImage(_ context.Context, data []byte, _ string) ([]float32, error) {
	e.calls.Add(1)
	return []float32{float32(len(data)), 1}, nil
}

func (e *countingEmbedder) Dimension() int { return 1 }
func (e *countingEmbedder) Model() string  { return "counting" }

func TestCached_Text(t *testing.T) {
	next := &countingEmbedder{}
	c, err := NewCached(next, 2)
	require.NoError(t, err)
	ctx := context.Background()

	v, err := c.EmbedText(ctx, "shoes")
	require.NoError(t, err)
	assert.Equal(t, []float32{5}, v)
	_, err = c.EmbedText(ctx, "shoes")
	require.NoError(t, err)
	assert.EqualValues(t, 1, next.calls.Load())

	_, _ = c.EmbedText(ctx, "a")
	_, _ = c.EmbedText(ctx, "bb")
	assert.Equal(t, 2, c.Len())
	_, _ = c.EmbedText(ctx, "shoes")
	assert.EqualValues(t, 4, next.calls.Load(), "evicted entry is recomputed")

	assert.Equal(t, "counting", c.Model())
	assert.Equal(t, 1, c.Dimension())
}

func TestCached_ImageKeyedByContent(t *testing.T) {
	next := &countingEmbedder{}
	c, err := NewCached(next, 8)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.EmbedImage(ctx, []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	_, err = c.EmbedImage(ctx, []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	_, err = c.EmbedImage(ctx, []byte("other"), "image/png")
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.calls.Load())

	_, err = c.EmbedText(ctx, "png-bytes")
	require.NoError(t, err)
	assert.EqualValues(t, 3, next.calls.Load(), "text and image keys do not collide")
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	next := &countingEmbedder{fail: true}
	c, err := NewCached(next, 8)
	require.NoError(t, err)

	_, err = c.EmbedText(context.Background(), "x")
	assert.Error(t, err)
	_, err = c.EmbedText(context.Background(), "x")
	assert.Error(t, err)
	assert.EqualValues(t, 2, next.calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestCached_Concurrent(t *testing.T) {
	next := &countingEmbedder{}
	c, err := NewCached(next, 8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.EmbedText(context.Background(), "same")
			assert.NoError(t, err)
			assert.Equal(t, []float32{4}, v)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, next.calls.Load(), int32(16))
	assert.Equal(t, 1, c.Len())
}

func TestNewCached_InvalidSize(t *testing.T) {
	_, err := NewCached(&countingEmbedder{}, 0)
	assert.Error(t, err)
}
