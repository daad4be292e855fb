package storyboard

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runHandlers invokes every handler of an episode concurrently and waits for
// all of them. A failing handler is logged and recorded but never stops the
// others. Errors caused by the episode itself being cancelled are dropped.
// The returned error aggregates one *HandlerError per failed handler.
func (k *Keyframe) runHandlers(ctx context.Context, phase Phase, dir ScrollDirection,
	episode uint64, handlers []registeredHandler) error {
	if ctx.Err() != nil {
		return nil
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, h := range handlers {
		g.Go(func() error {
			err := k.callHandler(ctx, h, dir)
			if err == nil || ctx.Err() != nil {
				return nil
			}
			k.log.Error("animation handler failed",
				zap.Stringer("phase", phase),
				zap.Stringer("direction", dir),
				zap.Uint64("episode", episode),
				zap.Uint64("handler", h.id),
				zap.Error(err))
			mu.Lock()
			errs = multierr.Append(errs, &HandlerError{Keyframe: k.name, Phase: phase, Err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// callHandler runs one handler under the keyframe's timeout. The handler runs
// on its own goroutine so a handler that ignores ctx can hold up neither the
// episode nor its siblings past the deadline; such a goroutine is abandoned.
func (k *Keyframe) callHandler(ctx context.Context, h registeredHandler, dir ScrollDirection) error {
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- panicError{value: r}
			}
		}()
		done <- h.fn(ctx, dir)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
