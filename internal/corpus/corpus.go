package corpus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/DeafMist/topic-radar/backend/internal/models"
)

// DefaultMinMentions is how often a record must mention the query to count
// as being about it.
const DefaultMinMentions = 5

// Overview summarises the records that match a topic.
type Overview struct {
	Records        int64 `json:"records"`
	FirstTimestamp int   `json:"first_timestamp,omitempty"`
}

// Accessor exposes the topic-filtered, immutable record set.
type Accessor interface {
	TopicRecords(ctx context.Context, query string, minMentions int) ([]models.NewsRecord, error)
	TopicOverview(ctx context.Context, query string, minMentions int) (Overview, error)
}

// Matches reports whether rec mentions query at least minMentions times.
func Matches(rec models.NewsRecord, query string, minMentions int) bool {
	n, ok := rec.Keywords[query]
	return ok && n >= minMentions
}

// Filter keeps the records that match query.
func Filter(records []models.NewsRecord, query string, minMentions int) []models.NewsRecord {
	out := make([]models.NewsRecord, 0)
	for _, rec := range records {
		if Matches(rec, query, minMentions) {
			out = append(out, rec)
		}
	}
	return out
}

// Memory is an Accessor over records held in memory.
type Memory struct {
	records []models.NewsRecord
}

// NewMemory wraps records. The slice must not be modified afterwards.
func NewMemory(records []models.NewsRecord) *Memory {
	return &Memory{records: records}
}

func (m *Memory) TopicRecords(ctx context.Context, query string, minMentions int) ([]models.NewsRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Filter(m.records, query, minMentions), nil
}

func (m *Memory) TopicOverview(ctx context.Context, query string, minMentions int) (Overview, error) {
	if err := ctx.Err(); err != nil {
		return Overview{}, err
	}
	var ov Overview
	for _, rec := range m.records {
		if !Matches(rec, query, minMentions) {
			continue
		}
		ov.Records++
		if ov.FirstTimestamp == 0 || rec.Timestamp < ov.FirstTimestamp {
			ov.FirstTimestamp = rec.Timestamp
		}
	}
	return ov, nil
}

// ReadJSONLines decodes one NewsRecord per non-empty line.
func ReadJSONLines(r io.Reader) ([]models.NewsRecord, error) {
	var out []models.NewsRecord
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var rec models.NewsRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode record on line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return out, nil
}

// LoadFile reads a JSON-lines corpus file.
func LoadFile(path string) ([]models.NewsRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	return ReadJSONLines(f)
}
