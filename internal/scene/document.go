package scene

import (
	"sort"
	"strconv"
	"strings"

	"github.com/DeafMist/topic-radar/backend/internal/models"
)

// minStampDigits is YYYYMM; archive stamps are usually YYYYMMDDhhmmss.
const minStampDigits = 6

// Document is an archive URL split around its encoded capture date.
type Document struct {
	URL   string
	Stamp string
	Rest  string
}

// ParseDocument finds the first path segment that starts with a YYYYMM
// stamp, e.g. https://arquivo.pt/noFrame/replay/20230115093000/https://site/a.
// Stamp is empty when the URL carries no date.
func ParseDocument(raw string) Document {
	parts := strings.Split(raw, "/")
	// skip scheme, empty authority separator and host
	for i := 3; i < len(parts); i++ {
		if isStamp(parts[i]) {
			return Document{
				URL:   raw,
				Stamp: parts[i],
				Rest:  strings.Join(parts[i+1:], "/"),
			}
		}
	}
	return Document{URL: raw}
}

func isStamp(seg string) bool {
	if len(seg) < minStampDigits {
		return false
	}
	for _, r := range seg[:minStampDigits] {
		if r < '0' || r > '9' {
			return false
		}
	}
	month, _ := strconv.Atoi(seg[4:6])
	return month >= 1 && month <= 12
}

// Dated reports whether the URL carries a capture date.
func (d Document) Dated() bool { return d.Stamp != "" }

// Year of the capture date; 0 when undated.
func (d Document) Year() int {
	if !d.Dated() {
		return 0
	}
	y, _ := strconv.Atoi(d.Stamp[:4])
	return y
}

// Month renders YYYY/MM, or "" when undated.
func (d Document) Month() string {
	if !d.Dated() {
		return ""
	}
	return d.Stamp[:4] + "/" + d.Stamp[4:6]
}

// Label is "YYYY/MM - <archived path>" for dated documents and the raw URL otherwise.
func (d Document) Label() string {
	if !d.Dated() {
		return d.URL
	}
	return d.Month() + " - " + d.Rest
}

// DocumentLink is one entry of a keyword's document list.
type DocumentLink struct {
	URL   string `json:"url"`
	Label string `json:"label"`
	Month string `json:"month,omitempty"`
}

// Documents returns the keyword's documents newest first by capture date.
// Undated documents go last. Duplicates are kept.
func Documents(news []string) []DocumentLink {
	docs := make([]Document, len(news))
	for i, n := range news {
		docs[i] = ParseDocument(n)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.Dated() != b.Dated() {
			return a.Dated()
		}
		if a.Stamp != b.Stamp {
			return a.Stamp > b.Stamp
		}
		return a.URL > b.URL
	})

	out := make([]DocumentLink, len(docs))
	for i, d := range docs {
		out[i] = DocumentLink{URL: d.URL, Label: d.Label(), Month: d.Month()}
	}
	return out
}

// LastSeen is the YYYY/MM of the lexicographically last dated document, or
// "" if no document is dated.
func LastSeen(news []string) string {
	sorted := append([]string(nil), news...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	for _, n := range sorted {
		if d := ParseDocument(n); d.Dated() {
			return d.Month()
		}
	}
	return ""
}

// YearCount is one bar of the per-year mention histogram.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// YearBars buckets a month histogram by year, zero-filling every year
// between the earliest and latest of the documents and histogram keys.
func YearBars(date map[int]int, news []string) []YearCount {
	byYear := make(map[int]int)
	lo, hi := 0, 0
	see := func(y int) {
		if y <= 0 {
			return
		}
		if lo == 0 || y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	for ts, c := range date {
		y := models.TimestampYear(ts)
		byYear[y] += c
		see(y)
	}
	for _, n := range news {
		see(ParseDocument(n).Year())
	}
	if lo == 0 {
		return nil
	}

	out := make([]YearCount, 0, hi-lo+1)
	for y := lo; y <= hi; y++ {
		out = append(out, YearCount{Year: y, Count: byYear[y]})
	}
	return out
}

// SourceCount is one entry of the per-source breakdown.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// Sources orders a source histogram by count, then name.
func Sources(hist map[string]int) []SourceCount {
	out := make([]SourceCount, 0, len(hist))
	for s, c := range hist {
		out = append(out, SourceCount{Source: s, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Source < out[j].Source
		}
		return out[i].Count > out[j].Count
	})
	return out
}
