package repository

import (
	"context"

	"github.com/rpattn/socialql/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rpattn/socialql/internal/repository"

// TracingStore wraps a Store and records one span per call.
type TracingStore struct {
	next   Store
	tracer trace.Tracer
}

// NewTracingStore wraps next using the global tracer provider
func NewTracingStore(next Store) *TracingStore {
	return &TracingStore{next: next, tracer: otel.Tracer(tracerName)}
}

func (s *TracingStore) FindByID(ctx context.Context, kind domain.Kind, id string) (domain.Entity, error) {
	ctx, span := s.tracer.Start(ctx, "store.FindByID", trace.WithAttributes(
		attribute.String("store.kind", string(kind)),
		attribute.String("store.id", id),
	))
	defer span.End()

	row, err := s.next.FindByID(ctx, kind, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return row, err
}

func (s *TracingStore) FindMany(ctx context.Context, kind domain.Kind, opts FindOptions) ([]domain.Entity, error) {
	attrs := []attribute.KeyValue{
		attribute.String("store.kind", string(kind)),
		attribute.Bool("store.include.subscribed_to", opts.Include.UserSubscribedTo),
		attribute.Bool("store.include.subscribers", opts.Include.SubscribedToUser),
	}
	if opts.Filter != nil {
		attrs = append(attrs,
			attribute.String("store.filter", string(opts.Filter.Field)),
			attribute.Int("store.filter.size", len(opts.Filter.In)),
		)
	}
	ctx, span := s.tracer.Start(ctx, "store.FindMany", trace.WithAttributes(attrs...))
	defer span.End()

	rows, err := s.next.FindMany(ctx, kind, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("store.rows", len(rows)))
	return rows, nil
}

// Ping forwards to the wrapped store when it supports health checks
func (s *TracingStore) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
