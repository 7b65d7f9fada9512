package scene

import (
	"fmt"
	"math"
	"strings"

	"github.com/DeafMist/topic-radar/backend/internal/layout"
	"github.com/DeafMist/topic-radar/backend/internal/sentiment"
)

const (
	// LineBreak separates wrapped label and hover lines for the renderer.
	LineBreak = "<br>"

	markerSizeK    = 3.0
	markerSizeBase = 50.0

	ShapeKeyword = "circle"
	ShapeAnchor  = "square"
)

// WrapLabel splits multi-word keywords into two lines at the middle word.
func WrapLabel(keyword string) string {
	words := strings.Fields(keyword)
	if len(words) < 2 {
		return keyword
	}
	mid := len(words) / 2
	return strings.Join(words[:mid], " ") + LineBreak + strings.Join(words[mid:], " ")
}

// MarkerSize grows with the log of count relative to the smallest
// displayed count. minCount must be positive.
func MarkerSize(count, minCount int) float64 {
	return math.Pow(math.Log(float64(count)/float64(minCount))*markerSizeK, 1.5) + markerSizeBase
}

// YearHistogram is what the charting collaborator draws in the detail panel.
type YearHistogram struct {
	Bars  []YearCount   `json:"bars"`
	Color sentiment.RGB `json:"color"`
}

// Detail is the structured panel shown when a keyword node is selected.
type Detail struct {
	Title          string          `json:"title"`
	Keyword        string          `json:"keyword"`
	Mentions       int             `json:"mentions"`
	Sentiment      float64         `json:"sentiment"`
	SentimentClass sentiment.Class `json:"sentiment_class"`
	SentimentLabel string          `json:"sentiment_label"`
	Sources        []SourceCount   `json:"sources"`
	Years          YearHistogram   `json:"years"`
	Documents      []DocumentLink  `json:"documents"`
}

// Node is one marker of the scene.
type Node struct {
	ID     string           `json:"id"`
	X      float64          `json:"x"`
	Y      float64          `json:"y"`
	Label  string           `json:"label"`
	Shape  string           `json:"marker_shape"`
	Size   float64          `json:"marker_size"`
	Color  sentiment.RGB    `json:"color"`
	Hover  string           `json:"hover_text"`
	Class  *sentiment.Class `json:"sentiment_class,omitempty"`
	Detail *Detail          `json:"custom_payload"`
}

// Anchor reports whether n is the query node.
func (n Node) Anchor() bool { return n.Shape == ShapeAnchor }

// HoverSummary is the one-glance text for a keyword node.
func HoverSummary(keyword string, count int, lastSeen string) string {
	if lastSeen == "" {
		lastSeen = "unknown"
	}
	return fmt.Sprintf("Topic: %s%sMentions: %d%sLast seen: %s", keyword, LineBreak, count, LineBreak, lastSeen)
}

// Derive computes render attributes for a placed keyword.
func Derive(query string, placed layout.Node, minCount int, iv sentiment.Intervals) Node {
	stat := placed.Stat
	class := iv.Classify(stat.Sentiment)
	color := class.Color()

	return Node{
		ID:    placed.Keyword,
		X:     placed.Pos.X,
		Y:     placed.Pos.Y,
		Label: WrapLabel(placed.Keyword),
		Shape: ShapeKeyword,
		Size:  MarkerSize(stat.Count, minCount),
		Color: color,
		Hover: HoverSummary(placed.Keyword, stat.Count, LastSeen(stat.News)),
		Class: &class,
		Detail: &Detail{
			Title:          fmt.Sprintf("Association between %s and %s", query, placed.Keyword),
			Keyword:        placed.Keyword,
			Mentions:       stat.Count,
			Sentiment:      stat.Sentiment,
			SentimentClass: class,
			SentimentLabel: class.Label(),
			Sources:        Sources(stat.Source),
			Years: YearHistogram{
				Bars:  YearBars(stat.Date, stat.News),
				Color: color,
			},
			Documents: Documents(stat.News),
		},
	}
}
