// Package scene derives per-keyword render attributes and assembles the
// relation graph handed to the front-end renderer.
package scene

import (
	"github.com/DeafMist/topic-radar/backend/internal/aggregate"
	"github.com/DeafMist/topic-radar/backend/internal/layout"
	"github.com/DeafMist/topic-radar/backend/internal/sentiment"
)

const (
	// NoTopicsText replaces the relation hint when nothing co-occurs with the query.
	NoTopicsText = "No relevant topics were found..."
	// ExploreText is the anchor hover hint of a populated graph.
	ExploreText = "Click on a topic to explore it!"
)

// Style is the global styling applied by the renderer.
type Style struct {
	Background      sentiment.RGB `json:"background"`
	MarkerLineColor string        `json:"marker_line_color"`
	MarkerLineWidth float64       `json:"marker_line_width"`
	HoverFontColor  sentiment.RGB `json:"hover_font_color"`
	ShowLegend      bool          `json:"show_legend"`
	ShowAxes        bool          `json:"show_axes"`
}

// DefaultStyle is the light-blue canvas of the explorer.
func DefaultStyle() Style {
	return Style{
		Background:      sentiment.RGB{R: 217, G: 238, B: 252},
		MarkerLineColor: "black",
		MarkerLineWidth: 1,
		HoverFontColor:  sentiment.RGB{R: 48, G: 62, B: 92},
	}
}

// Scene is the renderable relation graph. Nodes[0] is always the anchor.
type Scene struct {
	Query     string               `json:"query"`
	Nodes     []Node               `json:"nodes"`
	Intervals *sentiment.Intervals `json:"sentiment_intervals,omitempty"`
	Style     Style                `json:"style"`
}

// Empty reports whether the scene has no keyword nodes.
func (s *Scene) Empty() bool { return len(s.Nodes) <= 1 }

func anchor(query, hover string, style Style) Node {
	return Node{
		ID:    query,
		X:     layout.Origin.X,
		Y:     layout.Origin.Y,
		Label: "<b>" + query + "</b>",
		Shape: ShapeAnchor,
		Size:  0,
		Color: style.Background,
		Hover: hover,
	}
}

// Build classifies, places and decorates the top size keywords of res
// around query. res is not modified; the query itself is excluded.
func Build(query string, res aggregate.Result, size int, cfg layout.Config) (*Scene, error) {
	style := DefaultStyle()
	view := res.Without(query)
	if len(view) == 0 {
		return &Scene{
			Query: query,
			Nodes: []Node{anchor(query, NoTopicsText, style)},
			Style: style,
		}, nil
	}

	ranked := view.Ranked()
	displayed := layout.Select(ranked, size)
	if len(displayed) == 0 {
		return &Scene{
			Query: query,
			Nodes: []Node{anchor(query, NoTopicsText, style)},
			Style: style,
		}, nil
	}

	minCount := displayed[0].Stat.Count
	for _, e := range displayed {
		minCount = min(minCount, e.Stat.Count)
	}
	iv := boundaries(ranked, displayed)

	placed, err := layout.Place(displayed, cfg)
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(placed)+1)
	nodes = append(nodes, anchor(query, ExploreText, style))
	for _, p := range placed {
		nodes = append(nodes, Derive(query, p, minCount, iv))
	}

	return &Scene{
		Query:     query,
		Nodes:     nodes,
		Intervals: &iv,
		Style:     style,
	}, nil
}

func boundaries(ranked, displayed []aggregate.Entry) sentiment.Intervals {
	all := make([]float64, len(ranked))
	for i, e := range ranked {
		all[i] = e.Stat.Sentiment
	}
	shown := make([]float64, len(displayed))
	for i, e := range displayed {
		shown[i] = e.Stat.Sentiment
	}
	return sentiment.Compute(all, shown)
}

// Boundaries returns the sentiment intervals Build would use for a graph of
// size keywords around query. ok is false when no keyword would be shown.
func Boundaries(query string, res aggregate.Result, size int) (iv sentiment.Intervals, ok bool) {
	ranked := res.Without(query).Ranked()
	displayed := layout.Select(ranked, size)
	if len(displayed) == 0 {
		return sentiment.Intervals{}, false
	}
	return boundaries(ranked, displayed), true
}
