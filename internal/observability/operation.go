package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
)

// Operation ties a span, a logger and the operation meters to one unit of
// work. Create it with StartOperation and finish it with End.
type Operation struct {
	ctx     context.Context
	span    trace.Span
	metrics *Metrics
	name    string
	start   time.Time
	logger  *slog.Logger
}

// StartOperation opens a span named name and returns the derived context.
// m may be nil, in which case nothing is recorded.
func StartOperation(ctx context.Context, m *Metrics, name string, attrs ...attribute.KeyValue) (*Operation, context.Context) {
	ctx, span := StartSpan(ctx, name, attrs...)
	logger := slog.Default().With("operation", name)
	logger.DebugContext(ctx, "operation started")

	return &Operation{
		ctx:     ctx,
		span:    span,
		metrics: m,
		name:    name,
		start:   time.Now(),
		logger:  logger,
	}, ctx
}

// End records duration and outcome. Client-side failures (not found,
// invalid input, conflicts) log at warn; everything else at error.
func (o *Operation) End(err error) {
	duration := time.Since(o.start).Seconds()
	status := "ok"
	if err != nil {
		status = "error"
		kind := arcerrors.Kind(err)
		level := slog.LevelError
		if kind != "internal" {
			level = slog.LevelWarn
		}
		o.logger.Log(o.ctx, level, "operation failed", "error", err, "kind", kind, "duration", duration)
		if o.metrics != nil {
			o.metrics.ErrorsTotal.WithLabelValues(o.name, kind).Inc()
		}
	} else {
		o.logger.DebugContext(o.ctx, "operation completed", "duration", duration)
	}

	EndSpan(o.span, err)
	if o.metrics == nil {
		return
	}
	o.metrics.OperationDuration.WithLabelValues(o.name, status).Observe(duration)
	o.metrics.OperationTotal.WithLabelValues(o.name, status).Inc()
}
