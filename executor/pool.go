// Package executor bridges blocking, synchronous work onto background
// goroutine pools and routes its completion back into a *loop.Loop via
// CallSoonThreadSafe, the one safe way to hand results from background
// threads back into loop-confined state.
package executor

import (
	"sync/atomic"

	"github.com/Jeffail/tunny"
	"github.com/gammazero/workerpool"
	"github.com/panjf2000/ants/v2"
	conc "github.com/sourcegraph/conc/pool"

	"github.com/Tangerg/coop/internal/safe"
)

// Pool is the common interface every goroutine-pool library is adapted
// to. A Bridge submits work through a Pool rather than calling `go`
// directly, so callers can bound concurrency with whichever pool
// implementation fits their deployment.
type Pool interface {
	// Go submits f to run concurrently on the pool.
	Go(f func())
}

var defaultPool atomic.Value

// DefaultPool returns the package-wide default Pool used by Bridge values
// constructed without an explicit Pool.
func DefaultPool() Pool {
	return defaultPool.Load().(Pool)
}

// SetDefaultPool overrides the package-wide default. A nil pool is
// ignored.
func SetDefaultPool(pool Pool) {
	if pool == nil {
		return
	}
	defaultPool.Store(pool)
}

func init() {
	defaultPool.Store(PoolOfGoroutines())
}

type poolWrapper func(f func())

func (p poolWrapper) Go(f func()) { p(f) }

// PoolOfGoroutines launches one goroutine per submission with no bound on
// concurrency, panic-recovered via internal/safe so a misbehaving task
// can't bring down the loop's process.
func PoolOfGoroutines() Pool {
	return poolWrapper(func(f func()) {
		safe.Go(f)
	})
}

// PoolOfConc adapts a sourcegraph/conc pool, which propagates panics by
// design — useful when callers want offloaded work to fail loudly rather
// than be swallowed.
func PoolOfConc(pool *conc.Pool) Pool {
	if pool == nil {
		panic("executor: conc pool is nil")
	}
	return poolWrapper(func(f func()) { pool.Go(f) })
}

// PoolOfAnts adapts a panjf2000/ants bounded pool.
func PoolOfAnts(pool *ants.Pool) Pool {
	if pool == nil {
		panic("executor: ants pool is nil")
	}
	return poolWrapper(func(f func()) { _ = pool.Submit(f) })
}

// PoolOfWorkerpool adapts a gammazero/workerpool bounded pool.
func PoolOfWorkerpool(pool *workerpool.WorkerPool) Pool {
	if pool == nil {
		panic("executor: worker pool is nil")
	}
	return poolWrapper(func(f func()) { pool.Submit(f) })
}

// PoolOfTunny adapts a Jeffail/tunny fixed-size worker pool.
func PoolOfTunny(pool *tunny.Pool) Pool {
	if pool == nil {
		panic("executor: tunny pool is nil")
	}
	return poolWrapper(func(f func()) {
		go func() { pool.Process(f) }()
	})
}
