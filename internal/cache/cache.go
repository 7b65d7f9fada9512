package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/DeafMist/topic-radar/backend/internal/aggregate"
	"github.com/DeafMist/topic-radar/backend/internal/metrics"
)

// KeyLength is the number of hex digits kept from the query digest.
// 40 bits is plenty for a corpus with at most a few hundred thousand
// distinct queries; widen it if collisions ever matter.
const KeyLength = 10

// ErrCorrupt marks a cached entry that could not be decoded. It is not
// recomputed automatically.
var ErrCorrupt = errors.New("corrupt cache entry")

// NormalizeQuery trims the query and collapses inner whitespace.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// Key derives the cache key of a query.
func Key(query string) string {
	return KeyFor(query, "")
}

// KeyFor derives the cache key of a query computed under variant, a label
// for any setting besides the query that changes the result. The empty
// variant yields Key.
func KeyFor(query, variant string) string {
	in := NormalizeQuery(query)
	if variant != "" {
		in += "\x00" + variant
	}
	sum := sha256.Sum256([]byte(in))
	return hex.EncodeToString(sum[:])[:KeyLength]
}

// ComputeFunc produces the aggregation for a normalized query.
type ComputeFunc func(ctx context.Context, query string) (aggregate.Result, error)

// Cache resolves aggregation results through a Store.
type Cache struct {
	store   Store
	log     *slog.Logger
	variant string
}

// New wraps store.
func New(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{store: store, log: logger}
}

// WithVariant returns a Cache over the same store whose keys are derived
// with KeyFor(query, variant).
func (c *Cache) WithVariant(variant string) *Cache {
	cp := *c
	cp.variant = variant
	return &cp
}

func (c *Cache) key(query string) string {
	return KeyFor(query, c.variant)
}

// Store exposes the underlying store.
func (c *Cache) Store() Store { return c.store }

// Lookup returns the cached result for query. ok is false on a miss.
func (c *Cache) Lookup(ctx context.Context, query string) (aggregate.Result, bool, error) {
	key := c.key(query)
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		metrics.RecordCacheLookup(c.store.Name(), "error")
		return nil, false, err
	}

	res, err := Decode(data)
	if err != nil {
		metrics.RecordCacheLookup(c.store.Name(), "error")
		return nil, false, fmt.Errorf("%w %s: %v", ErrCorrupt, key, err)
	}
	return res, true, nil
}

// GetOrCompute returns the cached result for query or computes and stores
// it. Two callers racing on an uncached query may both compute; the later
// write wins, which is harmless because computation is deterministic for a
// fixed corpus.
func (c *Cache) GetOrCompute(ctx context.Context, query string, compute ComputeFunc) (aggregate.Result, bool, error) {
	query = NormalizeQuery(query)
	res, ok, err := c.Lookup(ctx, query)
	if err != nil {
		return nil, false, err
	}
	if ok {
		metrics.RecordCacheLookup(c.store.Name(), "hit")
		c.log.Debug("aggregation cache hit", slog.String("query", query), slog.String("key", c.key(query)))
		return res, true, nil
	}
	metrics.RecordCacheLookup(c.store.Name(), "miss")

	res, err = compute(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("compute aggregation: %w", err)
	}

	data, err := Encode(res)
	if err != nil {
		return nil, false, err
	}
	if err := c.store.Put(ctx, c.key(query), data); err != nil {
		return nil, false, fmt.Errorf("store aggregation: %w", err)
	}
	c.log.Info("aggregation cached",
		slog.String("query", query),
		slog.String("key", c.key(query)),
		slog.Int("keywords", len(res)),
	)
	return res, false, nil
}

// Encode serializes a result in the persisted cache format.
func Encode(res aggregate.Result) ([]byte, error) {
	if res == nil {
		res = aggregate.Result{}
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode aggregation: %w", err)
	}
	return data, nil
}

// Decode parses the persisted cache format.
func Decode(data []byte) (aggregate.Result, error) {
	var res aggregate.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("cache entry is null")
	}
	return res, nil
}
