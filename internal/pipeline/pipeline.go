// Package pipeline runs a topic query end to end: corpus filtering,
// cached aggregation, graph assembly and the per-topic lookups built on
// the same aggregation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/topic-radar/backend/internal/aggregate"
	"github.com/DeafMist/topic-radar/backend/internal/cache"
	"github.com/DeafMist/topic-radar/backend/internal/corpus"
	"github.com/DeafMist/topic-radar/backend/internal/layout"
	"github.com/DeafMist/topic-radar/backend/internal/logger"
	"github.com/DeafMist/topic-radar/backend/internal/metrics"
	"github.com/DeafMist/topic-radar/backend/internal/scene"
)

// Options tunes a Service.
type Options struct {
	GraphSize    int
	GraphMaxSize int
	Layout       layout.Config
	Partitions   int
	MinMentions  int
}

// DefaultOptions matches the explorer's stock presentation.
func DefaultOptions() Options {
	return Options{
		GraphSize:    125,
		GraphMaxSize: 500,
		Layout:       layout.DefaultConfig(),
		Partitions:   4,
		MinMentions:  corpus.DefaultMinMentions,
	}
}

// Service wires the corpus, the aggregation cache and the graph builder.
type Service struct {
	corpus corpus.Accessor
	cache  *cache.Cache
	opts   Options
	log    *slog.Logger
}

// New constructs a Service. Results computed under a non-default record
// filter are cached under their own keys.
func New(acc corpus.Accessor, c *cache.Cache, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	if opts.MinMentions != corpus.DefaultMinMentions {
		c = c.WithVariant(fmt.Sprintf("min_mentions=%d", opts.MinMentions))
	}
	return &Service{corpus: acc, cache: c, opts: opts, log: log}
}

// Options returns the service options.
func (s *Service) Options() Options { return s.opts }

// NewRequest normalizes query and fills default size and seed.
func (s *Service) NewRequest(query string) (Request, error) {
	return newRequest(query, s.opts.GraphSize, s.opts.Layout.Seed)
}

// Aggregation resolves the keyword statistics of req.Query, computing them
// from the corpus on a cache miss.
func (s *Service) Aggregation(ctx context.Context, req Request) (aggregate.Result, error) {
	log := req.Logger(s.log)
	res, hit, err := s.cache.GetOrCompute(ctx, req.Query, s.compute)
	if err != nil {
		log.Error("aggregation failed", slog.Any("err", err))
		return nil, err
	}
	log.Debug("aggregation resolved", slog.Bool("cache_hit", hit), slog.Int("keywords", len(res)))
	return res, nil
}

func (s *Service) compute(ctx context.Context, query string) (aggregate.Result, error) {
	records, err := s.corpus.TopicRecords(ctx, query, s.opts.MinMentions)
	if err != nil {
		return nil, fmt.Errorf("load topic records: %w", err)
	}

	start := time.Now()
	res, err := aggregate.Parallel(ctx, records, query, s.opts.Partitions)
	if err != nil {
		return nil, fmt.Errorf("aggregate keywords: %w", err)
	}
	metrics.RecordAggregation(time.Since(start).Seconds(), len(res))
	return res, nil
}

func (s *Service) size(req Request) int {
	size := req.Size
	if size <= 0 {
		size = s.opts.GraphSize
	}
	if s.opts.GraphMaxSize > 0 && size > s.opts.GraphMaxSize {
		size = s.opts.GraphMaxSize
	}
	return size
}

// Graph builds the relation graph of req.Query.
func (s *Service) Graph(ctx context.Context, req Request) (*scene.Scene, error) {
	res, err := s.Aggregation(ctx, req)
	if err != nil {
		return nil, err
	}

	cfg := s.opts.Layout
	cfg.Seed = req.Seed

	start := time.Now()
	sc, err := scene.Build(req.Query, res, s.size(req), cfg)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	metrics.GraphBuildDuration.Observe(time.Since(start).Seconds())

	req.Logger(s.log).Info("graph built", slog.Int("nodes", len(sc.Nodes)))
	return sc, nil
}

// Weights exports {keyword: count} of req.Query's co-mentions.
func (s *Service) Weights(ctx context.Context, req Request) (map[string]int, error) {
	res, err := s.Aggregation(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Weights(), nil
}
