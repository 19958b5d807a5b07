package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

type Options struct {
	Workers int

	// Window caps how many items may be in flight ahead of the oldest item not
	// yet emitted. Defaults to 2*Workers, or 1 for a single worker so that
	// item N+1 is not read until item N has been emitted.
	Window int

	// RequestTimeout bounds each process call. Zero means no timeout.
	RequestTimeout time.Duration

	// RateLimitRPS is a global limit across all workers. Set to <=0 to disable.
	RateLimitRPS float64
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Window <= 0 {
		o.Window = 2 * o.Workers
		if o.Workers == 1 {
			o.Window = 1
		}
	}
	if o.RequestTimeout < 0 {
		o.RequestTimeout = 0
	}
	return o
}

// Stream pulls items from next until it returns io.EOF, runs process on up to
// opts.Workers goroutines, and calls emit once per item in the order next
// produced them.
//
// A non-EOF error from next stops reading; items read before it are still
// processed and emitted, then that error is returned. An error from emit
// cancels the run and is returned as-is. Once ctx is canceled nothing more is
// emitted.
func Stream[In any, Out any](
	ctx context.Context,
	next func(context.Context) (In, error),
	process func(context.Context, In) Out,
	emit func(In, Out) error,
	opts Options,
) error {
	opts = opts.withDefaults()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	type job struct {
		idx int
		in  In
	}
	type completion struct {
		idx int
		in  In
		out Out
	}

	jobs := make(chan job)
	done := make(chan completion, opts.Workers)
	window := semaphore.NewWeighted(int64(opts.Window))

	g, gctx := errgroup.WithContext(runCtx)

	var srcErr error
	g.Go(func() error {
		defer close(jobs)
		for idx := 0; ; idx++ {
			if err := window.Acquire(gctx, 1); err != nil {
				return err
			}
			in, err := next(gctx)
			if err != nil {
				window.Release(1)
				if !errors.Is(err, io.EOF) {
					srcErr = err
				}
				return nil
			}
			select {
			case jobs <- job{idx: idx, in: in}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var active sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		active.Add(1)
		g.Go(func() error {
			defer active.Done()
			for j := range jobs {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}
				out := processOne(gctx, j.in, process, opts.RequestTimeout)
				select {
				case done <- completion{idx: j.idx, in: j.in, out: out}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		active.Wait()
		close(done)
	}()

	pending := make(map[int]completion)
	nextIdx := 0
	var emitErr error
	for c := range done {
		if emitErr != nil {
			continue
		}
		pending[c.idx] = c
		for {
			p, ok := pending[nextIdx]
			if !ok {
				break
			}
			// Results computed under a canceled parent are not emitted.
			if err := ctx.Err(); err != nil {
				emitErr = err
				cancel()
				break
			}
			delete(pending, nextIdx)
			nextIdx++
			if err := emit(p.in, p.out); err != nil {
				emitErr = err
				cancel()
				break
			}
			window.Release(1)
		}
	}

	waitErr := g.Wait()
	switch {
	case emitErr != nil:
		return emitErr
	case srcErr != nil:
		return srcErr
	case waitErr != nil:
		return waitErr
	}
	return ctx.Err()
}

func processOne[In any, Out any](
	ctx context.Context,
	item In,
	process func(context.Context, In) Out,
	timeout time.Duration,
) Out {
	if timeout <= 0 {
		return process(ctx, item)
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return process(reqCtx, item)
}
