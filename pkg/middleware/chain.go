package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fresh-schedules/apiframework/pkg/httputil"
	"github.com/fresh-schedules/apiframework/pkg/observability"
)

// Stage is one step of the pipeline. Returning a response or an error stops
// the chain.
type Stage interface {
	Name() string
	Run(ctx context.Context, rc *RequestContext) (*httputil.Response, error)
}

// StageFunc adapts a function into a Stage.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, rc *RequestContext) (*httputil.Response, error)
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Run(ctx context.Context, rc *RequestContext) (*httputil.Response, error) {
	return s.Fn(ctx, rc)
}

// Chain executes stages in order.
type Chain struct {
	route   string
	stages  []Stage
	metrics *observability.Metrics
}

// NewChain creates a chain for route. metrics may be nil.
func NewChain(route string, metrics *observability.Metrics, stages ...Stage) *Chain {
	return &Chain{route: route, stages: append([]Stage(nil), stages...), metrics: metrics}
}

// Stages returns the configured stages in execution order.
func (c *Chain) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

// Execute runs the stages. A nil response and nil error mean every stage
// passed and the handler may run.
func (c *Chain) Execute(ctx context.Context, rc *RequestContext) (*httputil.Response, error) {
	span := trace.SpanFromContext(ctx)

	for _, stage := range c.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := stage.Run(ctx, rc)
		c.metrics.ObserveStage(c.route, stage.Name(), time.Since(start))

		if err != nil {
			span.AddEvent("stage rejected", trace.WithAttributes(attribute.String("stage", stage.Name())))
			span.SetStatus(codes.Error, stage.Name())
			return nil, err
		}
		if resp != nil {
			span.AddEvent("stage responded", trace.WithAttributes(attribute.String("stage", stage.Name())))
			return resp, nil
		}
	}
	return nil, nil
}
