package worker

import (
	"context"
	"errors"
)

// ErrClosed is returned for submissions after Close.
var ErrClosed = errors.New("worker: pool closed")

// Pool bounds the number of in-flight blocking calls. Request handlers
// never run store lookups inline; they submit them here and join the
// result, so lookup pressure is capped independently of request
// concurrency.
type Pool struct {
	slots chan struct{}
	done  chan struct{}
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		slots: make(chan struct{}, size),
		done:  make(chan struct{}),
	}
}

// Close releases the pool. In-flight calls finish; new submissions fail.
func (p *Pool) Close() {
	close(p.done)
}

type result struct {
	value any
	err   error
}

// Do runs fn on its own goroutine once a slot is free and waits for the
// result or for ctx to end. A canceled caller stops waiting immediately;
// the slot is released when fn eventually returns.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	select {
	case p.slots <- struct{}{}:
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ch := make(chan result, 1)
	go func() {
		defer func() { <-p.slots }()
		value, err := fn(ctx)
		ch <- result{value: value, err: err}
	}()

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do runs fn through the pool with a typed result.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	value, err := p.Do(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if value == nil {
		var zero T
		return zero, nil
	}
	return value.(T), nil
}
