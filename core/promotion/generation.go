package promotion

import (
	"context"
	"time"
)

// ticket identifies one outbound query of a generation.
type ticket uint64

// generation correlates asynchronous responses with the selection that triggered them.
// Only the response holding the latest ticket may be applied; every other one is stale.
// A generation is guarded by its owner's lock.
type generation struct {
	n      uint64
	cancel context.CancelFunc
}

// begin supersedes any in-flight query and returns the context and ticket of the new one.
func (g *generation) begin(parent context.Context) (context.Context, ticket) {
	g.stop()
	g.n++
	ctx, cancel := context.WithCancel(parent)
	g.cancel = cancel
	return ctx, ticket(g.n)
}

// invalidate discards whatever is in flight without starting a new query.
func (g *generation) invalidate() {
	g.stop()
	g.n++
}

func (g *generation) current(t ticket) bool {
	return uint64(t) == g.n
}

// settle releases the context of t once its response was applied.
func (g *generation) settle(t ticket) {
	if g.current(t) {
		g.stop()
	}
}

func (g *generation) stop() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

// debounce waits d unless ctx is done first.
func debounce(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
