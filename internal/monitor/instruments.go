package monitor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// Instruments holds the monitor's metrics and its tracer.
type Instruments struct {
	tracer   trace.Tracer
	searches metric.Int64Counter
	failures metric.Int64Counter
	matches  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewInstruments registers the monitor's metrics on the given meter
// and roots each search span on the given tracer.
func NewInstruments(meter metric.Meter, tracer trace.Tracer) (*Instruments, error) {
	searches, err := meter.Int64Counter("shuttlewatch.searches",
		metric.WithDescription("Completed search iterations"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("shuttlewatch.search_failures",
		metric.WithDescription("Failed search iterations by error kind"))
	if err != nil {
		return nil, err
	}
	matches, err := meter.Int64Counter("shuttlewatch.matching_trains",
		metric.WithDescription("Trains that satisfied the search criteria"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("shuttlewatch.search_duration_seconds",
		metric.WithDescription("Wall time of one search iteration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		tracer:   tracer,
		searches: searches,
		failures: failures,
		matches:  matches,
		duration: duration,
	}, nil
}

// startSpan opens a span for one search. The returned func closes it
// with the search's outcome.
func (i *Instruments) startSpan(ctx context.Context, criteria shuttle.SearchCriteria) (context.Context, func(shuttle.SearchResult)) {
	if i == nil || i.tracer == nil {
		return ctx, func(shuttle.SearchResult) {}
	}

	ctx, span := i.tracer.Start(ctx, "monitor.search", trace.WithAttributes(
		attribute.String("direction", string(criteria.Direction)),
		attribute.String("depart_date", criteria.DepartDate.Format("2006-01-02")),
	))
	return ctx, func(result shuttle.SearchResult) {
		if !result.Success {
			span.SetAttributes(attribute.String("error_kind", string(result.ErrorKind)))
			span.SetStatus(codes.Error, result.ErrorMessage)
		} else {
			span.SetAttributes(attribute.Int("matches", len(result.MatchingRecords)))
		}
		span.End()
	}
}

func (i *Instruments) observe(ctx context.Context, result shuttle.SearchResult, elapsed time.Duration) {
	if i == nil {
		return
	}

	direction := attribute.String("direction", string(result.Criteria.Direction))
	i.searches.Add(ctx, 1, metric.WithAttributes(direction))
	i.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(direction))

	if !result.Success {
		i.failures.Add(ctx, 1, metric.WithAttributes(
			direction,
			attribute.String("kind", string(result.ErrorKind)),
		))
		return
	}
	if n := len(result.MatchingRecords); n > 0 {
		i.matches.Add(ctx, int64(n), metric.WithAttributes(direction))
	}
}
