package translation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fanfan-translator/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Gate is a non-blocking admission counter.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
}

func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// TryAcquire returns immediately. The returned release is safe to call more
// than once; only the first call frees the slot.
func (g *Gate) TryAcquire() (func(), bool) {
	if !g.sem.TryAcquire(1) {
		metrics.GateRejections.Inc()
		return nil, false
	}

	g.inFlight.Add(1)
	metrics.GateInFlight.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inFlight.Add(-1)
			metrics.GateInFlight.Dec()
			g.sem.Release(1)
		})
	}, true
}

func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

func (g *Gate) Capacity() int { return int(g.capacity) }

type Job func(ctx context.Context) string

// Pool runs admitted jobs on their own goroutine and hands the result to a
// continuation.
type Pool struct {
	gate    *Gate
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewPool(gate *Gate, timeout time.Duration) *Pool {
	return &Pool{gate: gate, timeout: timeout}
}

// Submit returns false without running job when no slot is free. An
// admitted job outlives ctx's cancellation but not its values, and is bounded
// by the pool timeout.
func (p *Pool) Submit(ctx context.Context, job Job, done func(string)) bool {
	release, ok := p.gate.TryAcquire()
	if !ok {
		return false
	}

	jobCtx := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer release()
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("[Pool] reply callback panicked", zap.Any("panic", r))
			}
		}()

		ctx := jobCtx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(jobCtx, p.timeout)
			defer cancel()
		}

		result := run(ctx, job)
		if done != nil {
			done(result)
		}
	}()
	return true
}

func run(ctx context.Context, job Job) (result string) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("[Pool] translation job panicked", zap.Any("panic", r))
			result = FailureText
		}
	}()
	return job(ctx)
}

// Wait blocks until every admitted job has finished or ctx ends.
func (p *Pool) Wait(ctx context.Context) error {
	ch := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) InFlight() int { return p.gate.InFlight() }

func (p *Pool) Capacity() int { return p.gate.Capacity() }
