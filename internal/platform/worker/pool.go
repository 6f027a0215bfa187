// Package worker runs background tasks on a bounded goroutine pool.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

// ErrPoolClosed is returned when submitting to a released pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware unit of work.
type Task func(ctx context.Context)

type Pool struct {
	pool   *ants.Pool
	name   string
	logger zerolog.Logger

	// serviceCtx outlives requests and is cancelled on Shutdown.
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// New creates a pool of the given size. Tasks submitted with SubmitDetached
// receive a context derived from ctx.
func New(ctx context.Context, name string, size int, logger zerolog.Logger) (*Pool, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)
	logger = logger.With().Str("pool", name).Logger()

	panicHandler := func(p interface{}) {
		logger.Error().Interface("panic", p).Msg("worker panic recovered")
	}

	ap, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	return &Pool{
		pool:          ap,
		name:          name,
		logger:        logger,
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit runs task with the caller's context. A context cancelled before the
// task starts skips it.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return p.submit(func() {
		select {
		case <-ctx.Done():
			p.logger.Debug().Err(ctx.Err()).Msg("task skipped: context cancelled")
			return
		default:
		}
		task(ctx)
	})
}

// SubmitDetached runs task with the service context so it survives the
// request that scheduled it but still stops on Shutdown.
func (p *Pool) SubmitDetached(task Task) error {
	return p.submit(func() {
		select {
		case <-p.serviceCtx.Done():
			p.logger.Debug().Msg("detached task skipped: shutting down")
			return
		default:
		}
		task(p.serviceCtx)
	})
}

func (p *Pool) submit(fn func()) error {
	err := p.pool.Submit(fn)
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Shutdown closes the pool to new work and waits up to timeout for running
// tasks with their context still live. Tasks still running after the timeout
// see the service context cancelled.
func (p *Pool) Shutdown(timeout time.Duration) {
	defer p.serviceCancel()
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn().Err(err).Msg("pool shutdown timeout")
	}
}

type Stats struct {
	Running int `json:"running"`
	Free    int `json:"free"`
	Cap     int `json:"cap"`
}

func (p *Pool) Stats() Stats {
	return Stats{Running: p.pool.Running(), Free: p.pool.Free(), Cap: p.pool.Cap()}
}
