// Package batch executes many sub-operations under one request and reports
// a result per item.
//
// Items run with a per-item timeout. Failures are reported in place, so a
// batch with some bad items still succeeds as a whole (partialSuccess). With
// ContinueOnError disabled the first failure marks every item that has not
// started as SKIPPED.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
	"github.com/fresh-schedules/apiframework/pkg/observability"
)

// Item error codes. Errors returned as *apierror.Error keep their own code.
const (
	CodeItemFailed  = "ITEM_FAILED"
	CodeItemTimeout = "ITEM_TIMEOUT"
	CodeSkipped     = "SKIPPED"
)

const (
	DefaultMaxBatchSize   = 200
	DefaultTimeoutPerItem = 5 * time.Second
)

// Request is the conventional body of a batch endpoint. Items are not
// validated here, so one bad item fails alone instead of the whole batch.
type Request[T any] struct {
	Items []T `json:"items" validate:"required,min=1"`
}

// ItemError describes why one item failed.
type ItemError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ItemResult is the outcome of one item, at its input index.
type ItemResult[R any] struct {
	Index   int        `json:"index"`
	Success bool       `json:"success"`
	Data    *R         `json:"data,omitempty"`
	Error   *ItemError `json:"error,omitempty"`
}

// Summary aggregates a batch.
type Summary[R any] struct {
	TotalItems     int             `json:"totalItems"`
	SuccessCount   int             `json:"successCount"`
	FailureCount   int             `json:"failureCount"`
	PartialSuccess bool            `json:"partialSuccess"`
	Results        []ItemResult[R] `json:"results"`
}

// ItemFunc processes one item.
type ItemFunc[T, R any] func(ctx context.Context, index int, item T) (R, error)

// Processor runs batches of T producing R.
type Processor[T, R any] struct {
	MaxBatchSize    int
	TimeoutPerItem  time.Duration
	ContinueOnError bool
	// Concurrency is the number of items in flight. 1 runs items in order.
	Concurrency int
	Metrics     *observability.Metrics
}

// NewProcessor returns a sequential processor with default limits that
// continues past failures.
func NewProcessor[T, R any]() *Processor[T, R] {
	return &Processor[T, R]{
		MaxBatchSize:    DefaultMaxBatchSize,
		TimeoutPerItem:  DefaultTimeoutPerItem,
		ContinueOnError: true,
		Concurrency:     1,
	}
}

// Process runs fn for every item. The only error it returns is a
// VALIDATION_ERROR for an oversized batch; item failures are in the summary.
func (p *Processor[T, R]) Process(ctx context.Context, items []T, fn ItemFunc[T, R]) (*Summary[R], error) {
	maxSize := p.MaxBatchSize
	if maxSize <= 0 {
		maxSize = DefaultMaxBatchSize
	}
	if len(items) > maxSize {
		return nil, apierror.Validation(map[string][]string{
			"items": {fmt.Sprintf("batch size %d exceeds maximum %d", len(items), maxSize)},
		})
	}

	results := make([]ItemResult[R], len(items))
	var stopped atomic.Bool

	var g errgroup.Group
	g.SetLimit(p.concurrency())
	for i := range items {
		item := items[i]
		if stopped.Load() {
			results[i] = skipped[R](i, "Skipped due to previous failure")
			continue
		}
		g.Go(func() error {
			switch {
			case stopped.Load():
				results[i] = skipped[R](i, "Skipped due to previous failure")
				return nil
			case ctx.Err() != nil:
				results[i] = skipped[R](i, "Request cancelled")
				return nil
			}
			results[i] = p.runItem(ctx, i, item, fn)
			if !results[i].Success && !p.ContinueOnError {
				stopped.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	s := summarize(results)
	p.Metrics.AddBatchItems("success", s.SuccessCount)
	p.Metrics.AddBatchItems("failure", s.FailureCount)
	return s, nil
}

func (p *Processor[T, R]) concurrency() int {
	if p.Concurrency <= 0 {
		return 1
	}
	return p.Concurrency
}

type itemOutcome[R any] struct {
	data R
	err  error
}

func (p *Processor[T, R]) runItem(ctx context.Context, index int, item T, fn ItemFunc[T, R]) ItemResult[R] {
	timeout := p.TimeoutPerItem
	if timeout <= 0 {
		timeout = DefaultTimeoutPerItem
	}
	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan itemOutcome[R], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- itemOutcome[R]{err: observability.PanicError(r)}
			}
		}()
		data, err := fn(ictx, index, item)
		done <- itemOutcome[R]{data: data, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return failed[R](ctx, index, out.err, timeout)
		}
		data := out.data
		return ItemResult[R]{Index: index, Success: true, Data: &data}
	case <-ictx.Done():
		if ctx.Err() != nil {
			return skipped[R](index, "Request cancelled")
		}
		return timedOut[R](index, timeout)
	}
}

func failed[R any](ctx context.Context, index int, err error, timeout time.Duration) ItemResult[R] {
	var apiErr *apierror.Error
	switch {
	case errors.As(err, &apiErr):
		return ItemResult[R]{Index: index, Error: &ItemError{
			Code:    string(apiErr.Code),
			Message: apiErr.Message,
			Details: apiErr.Details,
		}}
	case errors.Is(err, context.DeadlineExceeded):
		return timedOut[R](index, timeout)
	}
	observability.FromContext(ctx).WithError(err).WithField("item", index).Warn("Batch item failed")
	return ItemResult[R]{Index: index, Error: &ItemError{Code: CodeItemFailed, Message: "Item processing failed"}}
}

func timedOut[R any](index int, timeout time.Duration) ItemResult[R] {
	return ItemResult[R]{Index: index, Error: &ItemError{
		Code:    CodeItemTimeout,
		Message: fmt.Sprintf("Item %d timed out after %dms", index, timeout.Milliseconds()),
	}}
}

func skipped[R any](index int, msg string) ItemResult[R] {
	return ItemResult[R]{Index: index, Error: &ItemError{Code: CodeSkipped, Message: msg}}
}

func summarize[R any](results []ItemResult[R]) *Summary[R] {
	s := &Summary[R]{TotalItems: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			s.SuccessCount++
		} else {
			s.FailureCount++
		}
	}
	s.PartialSuccess = s.SuccessCount > 0 && s.FailureCount > 0
	return s
}
