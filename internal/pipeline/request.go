package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DeafMist/topic-radar/backend/internal/cache"
)

// ErrEmptyQuery is returned when a query is blank after normalization.
var ErrEmptyQuery = errors.New("empty query")

// Request carries the per-call parameters of one pipeline run. It replaces
// any process-wide "current query" state: every stage receives it explicitly.
type Request struct {
	ID    string
	Query string
	Size  int
	Seed  uint64
}

// Logger returns log annotated with the request id and query.
func (r Request) Logger(log *slog.Logger) *slog.Logger {
	return log.With(slog.String("request_id", r.ID), slog.String("query", r.Query))
}

type requestKey struct{}

// WithRequest stores r in ctx.
func WithRequest(ctx context.Context, r Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// FromContext returns the request stored by WithRequest.
func FromContext(ctx context.Context) (Request, bool) {
	r, ok := ctx.Value(requestKey{}).(Request)
	return r, ok
}

func newRequest(query string, size int, seed uint64) (Request, error) {
	q := cache.NormalizeQuery(query)
	if q == "" {
		return Request{}, ErrEmptyQuery
	}
	return Request{ID: uuid.NewString(), Query: q, Size: size, Seed: seed}, nil
}
