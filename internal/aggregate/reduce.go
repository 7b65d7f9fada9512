package aggregate

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/topic-radar/backend/internal/models"
)

// Partial is the reducible intermediate for one keyword. Combine over
// Partials is commutative and associative, so partitions may be merged in
// any order. WeightedSentiment is held as an exact rational and rounded
// only by Finalize, so the result does not depend on the partitioning.
type Partial struct {
	Count             int
	Date              map[int]int
	WeightedSentiment *big.Rat
	Source            map[string]int
	News              []string
}

// Partials holds one Partial per keyword.
type Partials map[string]Partial

// Contribution is the partial a single record adds for one of its keywords.
func Contribution(rec models.NewsRecord, count int) Partial {
	return Partial{
		Count:             count,
		Date:              map[int]int{rec.Timestamp: count},
		WeightedSentiment: weighted(rec.Sentiment, count),
		Source:            map[string]int{rec.Source: 1},
		News:              []string{rec.Archive},
	}
}

// Combine merges two partials into a new one without mutating either input.
func Combine(a, b Partial) Partial {
	out := Partial{
		Count:             a.Count + b.Count,
		Date:              make(map[int]int, len(a.Date)+len(b.Date)),
		WeightedSentiment: addRat(new(big.Rat), a.WeightedSentiment, b.WeightedSentiment),
		Source:            make(map[string]int, len(a.Source)+len(b.Source)),
		News:              make([]string, 0, len(a.News)+len(b.News)),
	}
	sumInto(out.Date, a.Date)
	sumInto(out.Date, b.Date)
	sumInto(out.Source, a.Source)
	sumInto(out.Source, b.Source)
	out.News = append(out.News, a.News...)
	out.News = append(out.News, b.News...)
	return out
}

// absorb is the in-place form of Combine used on accumulators this package owns.
func (p *Partial) absorb(o Partial) {
	p.Count += o.Count
	if p.WeightedSentiment == nil {
		p.WeightedSentiment = new(big.Rat)
	}
	addRat(p.WeightedSentiment, p.WeightedSentiment, o.WeightedSentiment)
	if p.Date == nil {
		p.Date = make(map[int]int, len(o.Date))
	}
	if p.Source == nil {
		p.Source = make(map[string]int, len(o.Source))
	}
	sumInto(p.Date, o.Date)
	sumInto(p.Source, o.Source)
	p.News = append(p.News, o.News...)
}

// weighted returns sentiment*count exactly. Non-finite sentiments count as 0.
func weighted(sentiment float64, count int) *big.Rat {
	r := new(big.Rat)
	if math.IsNaN(sentiment) || math.IsInf(sentiment, 0) {
		return r
	}
	r.SetFloat64(sentiment)
	return r.Mul(r, big.NewRat(int64(count), 1))
}

// addRat sets dst = a + b, treating nil as zero.
func addRat(dst, a, b *big.Rat) *big.Rat {
	switch {
	case a == nil && b == nil:
		return dst.SetInt64(0)
	case a == nil:
		return dst.Set(b)
	case b == nil:
		return dst.Set(a)
	}
	return dst.Add(a, b)
}

// ratio rounds num/den to the nearest float64.
func ratio(num *big.Rat, den int) float64 {
	if num == nil || den == 0 {
		return 0
	}
	f, _ := new(big.Rat).Quo(num, big.NewRat(int64(den), 1)).Float64()
	return f
}

func sumInto[K comparable](dst, src map[K]int) {
	for k, v := range src {
		dst[k] += v
	}
}

// Reduce flat-expands every record into per-keyword contributions and
// folds them together.
func Reduce(records []models.NewsRecord) Partials {
	out := make(Partials)
	for _, rec := range records {
		for keyword, count := range rec.Keywords {
			acc := out[keyword]
			acc.absorb(Contribution(rec, count))
			out[keyword] = acc
		}
	}
	return out
}

// Merge combines two keyword-partial maps into a new map.
func Merge(a, b Partials) Partials {
	out := make(Partials, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if cur, ok := out[k]; ok {
			out[k] = Combine(cur, v)
			continue
		}
		out[k] = v
	}
	return out
}

// Finalize turns reduced partials into an aggregation result: it computes
// mean sentiment, drops the query itself and every keyword under minSupport.
func Finalize(p Partials, query string, minSupport int) Result {
	out := make(Result, len(p))
	for keyword, part := range p {
		if keyword == query || part.Count < minSupport || part.Count == 0 {
			continue
		}
		out[keyword] = KeywordStat{
			Count:     part.Count,
			Date:      part.Date,
			Sentiment: ratio(part.WeightedSentiment, part.Count),
			Source:    part.Source,
			News:      part.News,
		}
	}
	return out
}

// Aggregate reduces records sequentially.
func Aggregate(records []models.NewsRecord, query string) Result {
	return Finalize(Reduce(records), query, MinSupport)
}

// Parallel splits records into partitions, reduces each on its own
// goroutine and merges the partial maps.
func Parallel(ctx context.Context, records []models.NewsRecord, query string, partitions int) (Result, error) {
	if partitions <= 1 || len(records) < 2*partitions {
		return Aggregate(records, query), nil
	}

	chunk := (len(records) + partitions - 1) / partitions
	parts := make([]Partials, partitions)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < partitions; i++ {
		lo := i * chunk
		if lo >= len(records) {
			break
		}
		hi := min(lo+chunk, len(records))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("reduce partition %d: %w", i, err)
			}
			parts[i] = Reduce(records[lo:hi])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(Partials)
	for _, p := range parts {
		if p != nil {
			merged = Merge(merged, p)
		}
	}
	return Finalize(merged, query, MinSupport), nil
}
