package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_generation(t *testing.T) {
	var g generation

	ctx1, t1 := g.begin(context.Background())
	assert.True(t, g.current(t1))

	ctx2, t2 := g.begin(context.Background())
	assert.False(t, g.current(t1), "superseded ticket must be stale")
	assert.True(t, g.current(t2))
	assert.Error(t, ctx1.Err(), "superseded query must be cancelled")
	assert.NoError(t, ctx2.Err())

	g.settle(t1) // stale: no effect
	assert.NoError(t, ctx2.Err())

	g.settle(t2)
	assert.Error(t, ctx2.Err())
	assert.True(t, g.current(t2))

	g.invalidate()
	assert.False(t, g.current(t2))
}

func Test_debounce(t *testing.T) {
	assert.NoError(t, debounce(context.Background(), 0))
	assert.NoError(t, debounce(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, debounce(ctx, time.Minute), context.Canceled)
	assert.ErrorIs(t, debounce(ctx, 0), context.Canceled)
}
