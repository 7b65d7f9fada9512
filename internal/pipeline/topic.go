package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/DeafMist/topic-radar/backend/internal/models"
	"github.com/DeafMist/topic-radar/backend/internal/scene"
	"github.com/DeafMist/topic-radar/backend/internal/sentiment"
)

// RecommendationCount caps the suggestions offered for an unknown keyword.
const RecommendationCount = 5

// Overview summarises how much of the corpus is about a topic.
type Overview struct {
	Query          string `json:"query"`
	Records        int64  `json:"records"`
	FirstTimestamp int    `json:"first_timestamp,omitempty"`
	FirstMonth     string `json:"first_month,omitempty"`
}

// MonthName renders a YYYYMM timestamp as "January 2023". Invalid
// timestamps render as "".
func MonthName(ts int) string {
	year, month := ts/100, ts%100
	if year <= 0 || month < 1 || month > 12 {
		return ""
	}
	return fmt.Sprintf("%s %d", time.Month(month), year)
}

// Overview counts the records about req.Query and finds when it first appears.
func (s *Service) Overview(ctx context.Context, req Request) (Overview, error) {
	ov, err := s.corpus.TopicOverview(ctx, req.Query, s.opts.MinMentions)
	if err != nil {
		return Overview{}, fmt.Errorf("topic overview: %w", err)
	}
	out := Overview{Query: req.Query, Records: ov.Records}
	if ov.Records > 0 {
		out.FirstTimestamp = ov.FirstTimestamp
		out.FirstMonth = MonthName(ov.FirstTimestamp)
	}
	return out, nil
}

// MonthCount is one point of a keyword's mention series.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// Relation describes how a keyword relates to the query topic.
type Relation struct {
	Query           string               `json:"query"`
	Keyword         string               `json:"keyword"`
	Found           bool                 `json:"found"`
	Count           int                  `json:"count,omitempty"`
	Sentiment       float64              `json:"sentiment,omitempty"`
	Class           *sentiment.Class     `json:"sentiment_class,omitempty"`
	Months          []MonthCount         `json:"months,omitempty"`
	Sources         []scene.SourceCount  `json:"sources,omitempty"`
	Documents       []scene.DocumentLink `json:"documents,omitempty"`
	Recommendations []string             `json:"recommendations,omitempty"`
}

// Relation looks keyword up in req.Query's aggregation. When it never
// co-occurs with the query, up to RecommendationCount other keywords are
// suggested, sampled with req.Seed.
func (s *Service) Relation(ctx context.Context, req Request, keyword string) (*Relation, error) {
	res, err := s.Aggregation(ctx, req)
	if err != nil {
		return nil, err
	}

	view := res.Without(req.Query)
	out := &Relation{Query: req.Query, Keyword: keyword}

	stat, ok := view[keyword]
	if !ok {
		out.Recommendations = recommend(view.Keys(), req.Seed)
		return out, nil
	}

	out.Found = true
	out.Count = stat.Count
	out.Sentiment = stat.Sentiment
	if iv, ok := scene.Boundaries(req.Query, res, s.size(req)); ok {
		class := iv.Classify(stat.Sentiment)
		out.Class = &class
	}
	out.Months = monthSeries(stat.Date)
	out.Sources = scene.Sources(stat.Source)
	out.Documents = scene.Documents(stat.News)
	return out, nil
}

func monthSeries(date map[int]int) []MonthCount {
	stamps := make([]int, 0, len(date))
	for ts := range date {
		stamps = append(stamps, ts)
	}
	sort.Ints(stamps)

	out := make([]MonthCount, len(stamps))
	for i, ts := range stamps {
		out[i] = MonthCount{Month: models.FormatMonth(ts), Count: date[ts]}
	}
	return out
}

func recommend(keys []string, seed uint64) []string {
	if len(keys) == 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(len(keys))
	n := min(RecommendationCount, len(keys))
	out := make([]string, n)
	for i := range n {
		out[i] = keys[perm[i]]
	}
	return out
}
