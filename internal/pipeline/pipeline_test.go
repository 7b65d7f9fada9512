package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/topic-radar/backend/internal/cache"
	"github.com/DeafMist/topic-radar/backend/internal/corpus"
	"github.com/DeafMist/topic-radar/backend/internal/models"
	"github.com/DeafMist/topic-radar/backend/internal/pipeline"
	"github.com/DeafMist/topic-radar/backend/internal/scene"
)

func sampleRecords() []models.NewsRecord {
	return []models.NewsRecord{
		{
			Timestamp: 202301, Source: "A",
			Archive:   "https://arquivo.pt/wayback/20230115/https://a.pt/1",
			Keywords:  map[string]int{"tech": 5, "ai": 3, "chips": 2},
			Sentiment: 0.5,
		},
		{
			Timestamp: 202302, Source: "B",
			Archive:   "https://arquivo.pt/wayback/20230210/https://b.pt/2",
			Keywords:  map[string]int{"tech": 6, "ai": 4, "robots": 5},
			Sentiment: -0.25,
		},
		{
			Timestamp: 201905, Source: "A", Archive: "u3",
			Keywords:  map[string]int{"tech": 4, "ai": 10},
			Sentiment: 1,
		},
		{
			Timestamp: 202001, Source: "A", Archive: "u4",
			Keywords:  map[string]int{"tech": 7, "robots": 1, "chips": 4},
			Sentiment: 0.25,
		},
	}
}

type countingAccessor struct {
	corpus.Accessor
	calls atomic.Int32
}

func (c *countingAccessor) TopicRecords(ctx context.Context, query string, minMentions int) ([]models.NewsRecord, error) {
	c.calls.Add(1)
	return c.Accessor.TopicRecords(ctx, query, minMentions)
}

type failingAccessor struct{ err error }

func (f failingAccessor) TopicRecords(context.Context, string, int) ([]models.NewsRecord, error) {
	return nil, f.err
}

func (f failingAccessor) TopicOverview(context.Context, string, int) (corpus.Overview, error) {
	return corpus.Overview{}, f.err
}

func newService(t *testing.T, acc corpus.Accessor, opts pipeline.Options) (*pipeline.Service, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	return pipeline.New(acc, cache.New(store, nil), opts, nil), dir
}

func TestNewRequest(t *testing.T) {
	svc, _ := newService(t, corpus.NewMemory(nil), pipeline.DefaultOptions())

	req, err := svc.NewRequest("  machine   learning ")
	require.NoError(t, err)
	require.Equal(t, "machine learning", req.Query)
	require.NotEmpty(t, req.ID)
	require.Equal(t, 125, req.Size)
	require.Equal(t, uint64(21), req.Seed)

	other, err := svc.NewRequest("machine learning")
	require.NoError(t, err)
	require.NotEqual(t, req.ID, other.ID)

	_, err = svc.NewRequest(" \t ")
	require.ErrorIs(t, err, pipeline.ErrEmptyQuery)
}

func TestRequestContext(t *testing.T) {
	_, ok := pipeline.FromContext(context.Background())
	require.False(t, ok)

	req := pipeline.Request{ID: "id-1", Query: "tech"}
	got, ok := pipeline.FromContext(pipeline.WithRequest(context.Background(), req))
	require.True(t, ok)
	require.Equal(t, req, got)
}

func TestAggregationComputesOnceAndPersists(t *testing.T) {
	acc := &countingAccessor{Accessor: corpus.NewMemory(sampleRecords())}
	svc, dir := newService(t, acc, pipeline.DefaultOptions())
	ctx := context.Background()

	req, err := svc.NewRequest("tech")
	require.NoError(t, err)

	res, err := svc.Aggregation(ctx, req)
	require.NoError(t, err)
	require.Equal(t, []string{"ai", "chips", "robots"}, res.Keys())
	require.Equal(t, 7, res["ai"].Count)
	require.Equal(t, 6, res["chips"].Count)
	require.Equal(t, 6, res["robots"].Count)
	require.NotContains(t, res, "tech")

	_, err = os.Stat(filepath.Join(dir, cache.Key("tech")+".json"))
	require.NoError(t, err)

	again, err := svc.Aggregation(ctx, req)
	require.NoError(t, err)
	require.Equal(t, res, again)
	require.Equal(t, int32(1), acc.calls.Load())
}

func TestAggregationCorpusError(t *testing.T) {
	boom := errors.New("corpus down")
	svc, _ := newService(t, failingAccessor{err: boom}, pipeline.DefaultOptions())
	req, err := svc.NewRequest("tech")
	require.NoError(t, err)

	_, err = svc.Aggregation(context.Background(), req)
	require.ErrorIs(t, err, boom)

	_, err = svc.Overview(context.Background(), req)
	require.ErrorIs(t, err, boom)
}

func TestGraph(t *testing.T) {
	svc, _ := newService(t, corpus.NewMemory(sampleRecords()), pipeline.DefaultOptions())
	ctx := context.Background()
	req, err := svc.NewRequest("tech")
	require.NoError(t, err)

	sc, err := svc.Graph(ctx, req)
	require.NoError(t, err)
	require.Len(t, sc.Nodes, 4)
	require.True(t, sc.Nodes[0].Anchor())
	require.Equal(t, "tech", sc.Nodes[0].ID)
	require.Equal(t, "ai", sc.Nodes[1].ID)

	again, err := svc.Graph(ctx, req)
	require.NoError(t, err)
	require.Equal(t, sc.Nodes, again.Nodes)

	req.Seed = 99
	reseeded, err := svc.Graph(ctx, req)
	require.NoError(t, err)
	require.NotEqual(t, sc.Nodes[1].X, reseeded.Nodes[1].X)
}

func TestGraphClampsSize(t *testing.T) {
	opts := pipeline.DefaultOptions()
	opts.GraphMaxSize = 2
	svc, _ := newService(t, corpus.NewMemory(sampleRecords()), opts)
	req, err := svc.NewRequest("tech")
	require.NoError(t, err)
	req.Size = 10

	sc, err := svc.Graph(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, sc.Nodes, 3)
}

func TestGraphUnknownTopic(t *testing.T) {
	svc, _ := newService(t, corpus.NewMemory(sampleRecords()), pipeline.DefaultOptions())
	req, err := svc.NewRequest("gardening")
	require.NoError(t, err)

	sc, err := svc.Graph(context.Background(), req)
	require.NoError(t, err)
	require.True(t, sc.Empty())
	require.Equal(t, scene.NoTopicsText, sc.Nodes[0].Hover)
}

func TestWeights(t *testing.T) {
	svc, _ := newService(t, corpus.NewMemory(sampleRecords()), pipeline.DefaultOptions())
	req, err := svc.NewRequest("tech")
	require.NoError(t, err)

	w, err := svc.Weights(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"ai": 7, "chips": 6, "robots": 6}, w)
}

func TestOverview(t *testing.T) {
	svc, _ := newService(t, corpus.NewMemory(sampleRecords()), pipeline.DefaultOptions())
	ctx := context.Background()
	req, err := svc.NewRequest("tech")
	require.NoError(t, err)

	ov, err := svc.Overview(ctx, req)
	require.NoError(t, err)
	require.Equal(t, pipeline.Overview{
		Query:          "tech",
		Records:        3,
		FirstTimestamp: 202001,
		FirstMonth:     "January 2020",
	}, ov)

	req, err = svc.NewRequest("gardening")
	require.NoError(t, err)
	ov, err = svc.Overview(ctx, req)
	require.NoError(t, err)
	require.Equal(t, pipeline.Overview{Query: "gardening"}, ov)
}

func TestMonthName(t *testing.T) {
	tests := []struct {
		ts   int
		want string
	}{
		{202301, "January 2023"},
		{199812, "December 1998"},
		{202313, ""},
		{202300, ""},
		{0, ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, pipeline.MonthName(tt.ts), tt.ts)
	}
}

func TestRelationFound(t *testing.T) {
	svc, _ := newService(t, corpus.NewMemory(sampleRecords()), pipeline.DefaultOptions())
	req, err := svc.NewRequest("tech")
	require.NoError(t, err)

	rel, err := svc.Relation(context.Background(), req, "ai")
	require.NoError(t, err)
	require.True(t, rel.Found)
	require.Equal(t, 7, rel.Count)
	require.InDelta(t, 0.5/7, rel.Sentiment, 1e-12)
	require.NotNil(t, rel.Class)
	require.Equal(t, []pipeline.MonthCount{{"2023/01", 3}, {"2023/02", 4}}, rel.Months)
	require.Equal(t, []scene.SourceCount{{Source: "A", Count: 1}, {Source: "B", Count: 1}}, rel.Sources)
	require.Len(t, rel.Documents, 2)
	require.Equal(t, "2023/02", rel.Documents[0].Month)
	require.Empty(t, rel.Recommendations)
}

func TestRelationRecommendsWhenMissing(t *testing.T) {
	svc, _ := newService(t, corpus.NewMemory(sampleRecords()), pipeline.DefaultOptions())
	ctx := context.Background()
	req, err := svc.NewRequest("tech")
	require.NoError(t, err)

	rel, err := svc.Relation(ctx, req, "gardening")
	require.NoError(t, err)
	require.False(t, rel.Found)
	require.Nil(t, rel.Class)
	require.ElementsMatch(t, []string{"ai", "chips", "robots"}, rel.Recommendations)

	again, err := svc.Relation(ctx, req, "gardening")
	require.NoError(t, err)
	require.Equal(t, rel.Recommendations, again.Recommendations)

	self, err := svc.Relation(ctx, req, "tech")
	require.NoError(t, err)
	require.False(t, self.Found)
	require.NotContains(t, self.Recommendations, "tech")
}

func TestRelationCapsRecommendations(t *testing.T) {
	var records []models.NewsRecord
	for _, kw := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		records = append(records, models.NewsRecord{
			Timestamp: 202001, Source: "A", Archive: kw,
			Keywords: map[string]int{"tech": 5, kw: 5},
		})
	}
	svc, _ := newService(t, corpus.NewMemory(records), pipeline.DefaultOptions())
	req, err := svc.NewRequest("tech")
	require.NoError(t, err)

	rel, err := svc.Relation(context.Background(), req, "zzz")
	require.NoError(t, err)
	require.Len(t, rel.Recommendations, pipeline.RecommendationCount)
}

func TestRecordFilterChangeIsNotServedFromCache(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()
	acc := corpus.NewMemory(sampleRecords())

	loose := pipeline.New(acc, cache.New(store, nil), pipeline.DefaultOptions(), nil)
	req, err := loose.NewRequest("tech")
	require.NoError(t, err)
	res, err := loose.Aggregation(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 7, res["ai"].Count)

	opts := pipeline.DefaultOptions()
	opts.MinMentions = 6
	strict := pipeline.New(acc, cache.New(store, nil), opts, nil)
	res, err = strict.Aggregation(ctx, req)
	require.NoError(t, err)
	// only records with tech >= 6 remain: ai=4, chips=4 and robots=6 before min support
	require.Equal(t, []string{"robots"}, res.Keys())

	_, err = os.Stat(filepath.Join(dir, cache.KeyFor("tech", "min_mentions=6")+".json"))
	require.NoError(t, err)
}
