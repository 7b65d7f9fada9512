package models

import "strconv"

// NewsRecord is one archived article as stored in the corpus index.
// Timestamp is month-granular and encoded as YYYYMM.
type NewsRecord struct {
	ID          int            `json:"id,omitempty"`
	Timestamp   int            `json:"timestamp"`
	Source      string         `json:"source"`
	Archive     string         `json:"archive"`
	Probability float64        `json:"probability"`
	Keywords    map[string]int `json:"keywords"`
	Sentiment   float64        `json:"sentiment"`
}

// Mentions returns how many times the record mentions keyword.
func (r NewsRecord) Mentions(keyword string) int {
	return r.Keywords[keyword]
}

// Year returns the leading year digits of the record timestamp.
func (r NewsRecord) Year() int {
	return TimestampYear(r.Timestamp)
}

// TimestampYear extracts the year from a YYYYMM (or longer) timestamp.
func TimestampYear(ts int) int {
	s := strconv.Itoa(ts)
	if len(s) < 4 {
		return ts
	}
	y, _ := strconv.Atoi(s[:4])
	return y
}

// FormatMonth renders a YYYYMM timestamp as "YYYY/MM".
func FormatMonth(ts int) string {
	s := strconv.Itoa(ts)
	if len(s) < 6 {
		return s
	}
	return s[:4] + "/" + s[4:6]
}
