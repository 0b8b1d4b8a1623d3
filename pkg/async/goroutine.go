package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/fresh-schedules/apiframework/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
//   - a timeout derived from parentCtx
//   - panic recovery
//   - error logging
//
// Use it instead of a bare `go func()` for fire-and-forget work.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	logger := observability.GetLogger(parentCtx).WithField("task", taskName)

	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		if err := run(ctx, fn); err != nil {
			logger.WithError(err).Error("background task failed")
		}
	}()
}

// Do runs fn on the calling goroutine with the same timeout, panic
// recovery and logging as SafeGo, and returns its error.
func Do(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	err := run(ctx, fn)
	if err != nil {
		observability.GetLogger(parentCtx).WithField("task", taskName).WithError(err).Error("background task failed")
	}
	return err
}

// SafeLoop calls fn every interval until ctx is done.
func SafeLoop(ctx context.Context, interval time.Duration, taskName string, fn func(context.Context)) {
	logger := observability.GetLogger(ctx).WithField("task", taskName)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := run(ctx, func(ctx context.Context) error {
					fn(ctx)
					return nil
				})
				if err != nil {
					logger.WithError(err).Error("periodic task failed")
				}
			}
		}
	}()
}

// run calls fn and converts a panic into an error carrying the stack.
func run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}
