package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/DeafMist/topic-radar/backend/internal/models"
)

var whitespace = regexp.MustCompile(`\s+`)

// UnknownSource replaces an empty record source.
const UnknownSource = "unknown"

// NormalizeKeyword decodes HTML entities and squeezes whitespace so stored
// keywords compare equal to normalized queries.
func NormalizeKeyword(raw string) string {
	if raw == "" {
		return ""
	}
	decoded := html.UnescapeString(raw)
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// ValidTimestamp reports whether ts is a YYYYMM month stamp.
func ValidTimestamp(ts int) bool {
	s := strconv.Itoa(ts)
	if len(s) != 6 {
		return false
	}
	month := ts % 100
	return month >= 1 && month <= 12
}

// NormalizeRecord cleans a record before it is indexed. Keywords that
// collapse to the same name are summed; empty names and non-positive counts
// are dropped.
func NormalizeRecord(rec models.NewsRecord) (models.NewsRecord, error) {
	rec.Archive = strings.TrimSpace(rec.Archive)
	if rec.Archive == "" {
		return rec, errors.New("record has no archive url")
	}
	if !ValidTimestamp(rec.Timestamp) {
		return rec, fmt.Errorf("record timestamp %d is not YYYYMM", rec.Timestamp)
	}
	if math.IsNaN(rec.Sentiment) || math.IsInf(rec.Sentiment, 0) {
		return rec, errors.New("record sentiment is not finite")
	}

	rec.Source = strings.TrimSpace(rec.Source)
	if rec.Source == "" {
		rec.Source = UnknownSource
	}

	keywords := make(map[string]int, len(rec.Keywords))
	for k, n := range rec.Keywords {
		name := NormalizeKeyword(k)
		if name == "" || n <= 0 {
			continue
		}
		keywords[name] += n
	}
	rec.Keywords = keywords
	return rec, nil
}

// BuildRecordID hashes the archive URL and month to form deterministic IDs.
func BuildRecordID(archive string, ts int) string {
	s := sha1.Sum([]byte(archive + "|" + strconv.Itoa(ts)))
	return hex.EncodeToString(s[:])
}
