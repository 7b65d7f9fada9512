package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/topic-radar/backend/internal/corpus"
	"github.com/DeafMist/topic-radar/backend/internal/models"
)

const defaultPageSize = 500

// Client wraps go-elasticsearch with the corpus queries this project needs.
type Client struct {
	es       *elasticsearch.Client
	index    string
	pageSize int
	log      *slog.Logger
}

var _ corpus.Accessor = (*Client)(nil)

// New instantiates the Elasticsearch client.
func New(addr, index string, pageSize int, logger *slog.Logger) (*Client, error) {
	return NewWithConfig(elasticsearch.Config{Addresses: []string{addr}}, index, pageSize, logger)
}

// NewWithConfig instantiates the client from a full go-elasticsearch config.
func NewWithConfig(cfg elasticsearch.Config, index string, pageSize int, logger *slog.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{es: es, index: index, pageSize: pageSize, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// indexMapping keeps keyword counts in a nested name/count array so the
// mapping stays fixed however many distinct keywords the corpus holds.
var indexMapping = map[string]any{
	"mappings": map[string]any{
		"dynamic": "strict",
		"properties": map[string]any{
			"id":          map[string]any{"type": "integer"},
			"timestamp":   map[string]any{"type": "integer"},
			"source":      map[string]any{"type": "keyword"},
			"archive":     map[string]any{"type": "keyword"},
			"probability": map[string]any{"type": "float"},
			"sentiment":   map[string]any{"type": "double"},
			"keywords": map[string]any{
				"type": "nested",
				"properties": map[string]any{
					"name":  map[string]any{"type": "keyword"},
					"count": map[string]any{"type": "integer"},
				},
			},
		},
	},
}

type keywordCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// document is the indexed form of a NewsRecord.
type document struct {
	ID          int            `json:"id,omitempty"`
	Timestamp   int            `json:"timestamp"`
	Source      string         `json:"source"`
	Archive     string         `json:"archive"`
	Probability float64        `json:"probability"`
	Keywords    []keywordCount `json:"keywords"`
	Sentiment   float64        `json:"sentiment"`
}

func toDocument(rec models.NewsRecord) document {
	kws := make([]keywordCount, 0, len(rec.Keywords))
	for name, n := range rec.Keywords {
		kws = append(kws, keywordCount{Name: name, Count: n})
	}
	sort.Slice(kws, func(i, j int) bool { return kws[i].Name < kws[j].Name })
	return document{
		ID:          rec.ID,
		Timestamp:   rec.Timestamp,
		Source:      rec.Source,
		Archive:     rec.Archive,
		Probability: rec.Probability,
		Keywords:    kws,
		Sentiment:   rec.Sentiment,
	}
}

func (d document) record() models.NewsRecord {
	kws := make(map[string]int, len(d.Keywords))
	for _, kw := range d.Keywords {
		kws[kw.Name] += kw.Count
	}
	return models.NewsRecord{
		ID:          d.ID,
		Timestamp:   d.Timestamp,
		Source:      d.Source,
		Archive:     d.Archive,
		Probability: d.Probability,
		Keywords:    kws,
		Sentiment:   d.Sentiment,
	}
}

// EnsureIndex creates the corpus index with its mapping when missing.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	payload, err := json.Marshal(indexMapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}
	c.log.Info("created corpus index", slog.String("index", c.index))
	return nil
}

// IndexRecord writes a record under id.
func (c *Client) IndexRecord(ctx context.Context, id string, rec models.NewsRecord) error {
	payload, err := json.Marshal(toDocument(rec))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index record: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index record failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

func topicFilter(query string, minMentions int) map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"filter": []map[string]any{
				{"nested": map[string]any{
					"path": "keywords",
					"query": map[string]any{
						"bool": map[string]any{
							"filter": []map[string]any{
								{"term": map[string]any{"keywords.name": query}},
								{"range": map[string]any{"keywords.count": map[string]any{"gte": minMentions}}},
							},
						},
					},
				}},
			},
		},
	}
}

// TopicRecords pages through every record that mentions query at least
// minMentions times, using search_after on (timestamp, archive).
func (c *Client) TopicRecords(ctx context.Context, query string, minMentions int) ([]models.NewsRecord, error) {
	var (
		out   []models.NewsRecord
		after []any
	)
	for {
		body := map[string]any{
			"size":             c.pageSize,
			"track_total_hits": false,
			"query":            topicFilter(query, minMentions),
			"sort": []map[string]any{
				{"timestamp": map[string]any{"order": "asc"}},
				{"archive": map[string]any{"order": "asc"}},
			},
		}
		if after != nil {
			body["search_after"] = after
		}

		var page struct {
			Hits struct {
				Hits []struct {
					Source document `json:"_source"`
					Sort   []any    `json:"sort"`
				} `json:"hits"`
			} `json:"hits"`
		}
		if err := c.search(ctx, body, &page); err != nil {
			return nil, fmt.Errorf("topic records: %w", err)
		}

		for _, hit := range page.Hits.Hits {
			out = append(out, hit.Source.record())
		}
		if len(page.Hits.Hits) < c.pageSize {
			break
		}
		after = page.Hits.Hits[len(page.Hits.Hits)-1].Sort
	}

	c.log.Debug("fetched topic records", slog.String("query", query), slog.Int("records", len(out)))
	return out, nil
}

// TopicOverview counts matching records and finds the earliest timestamp.
func (c *Client) TopicOverview(ctx context.Context, query string, minMentions int) (corpus.Overview, error) {
	body := map[string]any{
		"size":             0,
		"track_total_hits": true,
		"query":            topicFilter(query, minMentions),
		"aggs": map[string]any{
			"first": map[string]any{"min": map[string]any{"field": "timestamp"}},
		},
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			First struct {
				Value *float64 `json:"value"`
			} `json:"first"`
		} `json:"aggregations"`
	}
	if err := c.search(ctx, body, &parsed); err != nil {
		return corpus.Overview{}, fmt.Errorf("topic overview: %w", err)
	}

	ov := corpus.Overview{Records: parsed.Hits.Total.Value}
	if v := parsed.Aggregations.First.Value; v != nil {
		ov.FirstTimestamp = int(*v)
	}
	return ov, nil
}

func (c *Client) search(ctx context.Context, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

// DeleteOlderThan removes records whose YYYYMM timestamp is before cutoff
// using batched delete-by-query. It loops until a batch returns fewer
// deleted documents than batchSize.
func (c *Client) DeleteOlderThan(ctx context.Context, cutoff, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					"timestamp": map[string]any{
						"lt": cutoff,
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{c.index},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
			c.es.DeleteByQuery.WithMaxDocs(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// Health checks cluster health.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}
