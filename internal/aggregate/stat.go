package aggregate

import (
	"sort"
)

// MinSupport is the smallest total count a keyword needs to survive aggregation.
const MinSupport = 5

// KeywordStat is the per-keyword statistics bundle persisted in the cache.
// Count always equals the sum of Date values.
type KeywordStat struct {
	Count     int            `json:"count"`
	Date      map[int]int    `json:"date"`
	Sentiment float64        `json:"sentiment"`
	Source    map[string]int `json:"source"`
	News      []string       `json:"news"`
}

// Result maps each co-mentioned keyword to its statistics.
type Result map[string]KeywordStat

// Entry pairs a keyword with its statistics.
type Entry struct {
	Keyword string
	Stat    KeywordStat
}

// Keys returns the keywords in serialization order (lexicographic).
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ranked returns every entry ordered by descending count. Equal counts keep
// serialization order so the ranking is stable across runs and cache reads.
func (r Result) Ranked() []Entry {
	keys := r.Keys()
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Keyword: k, Stat: r[k]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Stat.Count > entries[j].Stat.Count
	})
	return entries
}

// Without returns a shallow view of r that omits keyword. r is left untouched.
func (r Result) Without(keyword string) Result {
	if _, ok := r[keyword]; !ok {
		return r
	}
	out := make(Result, len(r)-1)
	for k, v := range r {
		if k != keyword {
			out[k] = v
		}
	}
	return out
}

// Weights exports {keyword: count}, the input of word-cloud renderers.
func (r Result) Weights() map[string]int {
	out := make(map[string]int, len(r))
	for k, v := range r {
		out[k] = v.Count
	}
	return out
}
