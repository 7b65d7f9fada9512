package scene_test

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/topic-radar/backend/internal/aggregate"
	"github.com/DeafMist/topic-radar/backend/internal/layout"
	"github.com/DeafMist/topic-radar/backend/internal/scene"
	"github.com/DeafMist/topic-radar/backend/internal/sentiment"
)

const archive = "https://arquivo.pt/noFrame/replay/"

func stat(count int, s float64, stamps ...string) aggregate.KeywordStat {
	st := aggregate.KeywordStat{
		Count:     count,
		Date:      map[int]int{},
		Sentiment: s,
		Source:    map[string]int{"publico.pt": 1},
	}
	for _, stamp := range stamps {
		st.News = append(st.News, archive+stamp+"/https://www.publico.pt/"+stamp[:4]+"/artigo")
	}
	st.Date[202001] = count
	return st
}

func sevenKeywords() aggregate.Result {
	res := aggregate.Result{}
	for i := 0; i < 7; i++ {
		res[fmt.Sprintf("kw%d", i)] = stat(5+i*3, float64(i)/10-0.3, "20200115120000")
	}
	return res
}

func TestBuildSelectsTopN(t *testing.T) {
	sc, err := scene.Build("tech", sevenKeywords(), 5, layout.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, sc.Nodes, 6)
	require.NotNil(t, sc.Intervals)

	var ids []string
	for _, n := range sc.Nodes[1:] {
		ids = append(ids, n.ID)
	}
	require.ElementsMatch(t, []string{"kw6", "kw5", "kw4", "kw3", "kw2"}, ids)
	require.NotContains(t, ids, "kw0")
	require.NotContains(t, ids, "kw1")
}

func TestBuildAnchor(t *testing.T) {
	sc, err := scene.Build("tech", sevenKeywords(), 125, layout.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, sc.Nodes, 8)

	a := sc.Nodes[0]
	require.True(t, a.Anchor())
	require.Equal(t, 0.0, a.X)
	require.Equal(t, 0.0, a.Y)
	require.Equal(t, 0.0, a.Size)
	require.Equal(t, scene.ShapeAnchor, a.Shape)
	require.Equal(t, "<b>tech</b>", a.Label)
	require.Equal(t, scene.ExploreText, a.Hover)
	require.Nil(t, a.Class)
	require.Nil(t, a.Detail)

	for _, n := range sc.Nodes[1:] {
		require.False(t, n.Anchor())
		require.Equal(t, scene.ShapeKeyword, n.Shape)
		require.NotNil(t, n.Class)
		require.Equal(t, n.Class.Color(), n.Color)
		require.GreaterOrEqual(t, n.Size, 50.0)
	}
}

func TestBuildEmpty(t *testing.T) {
	sc, err := scene.Build("tech", aggregate.Result{}, 125, layout.DefaultConfig())
	require.NoError(t, err)
	require.True(t, sc.Empty())
	require.Len(t, sc.Nodes, 1)
	require.Equal(t, scene.NoTopicsText, sc.Nodes[0].Hover)
	require.Nil(t, sc.Intervals)
}

func TestBuildExcludesQueryWithoutMutating(t *testing.T) {
	res := sevenKeywords()
	res["tech"] = stat(100, 0.9, "20200115120000")

	sc, err := scene.Build("tech", res, 125, layout.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, sc.Nodes, 8)
	for _, n := range sc.Nodes[1:] {
		require.NotEqual(t, "tech", n.ID)
	}
	require.Contains(t, res, "tech")

	only, err := scene.Build("tech", aggregate.Result{"tech": stat(9, 0, "20200115120000")}, 125, layout.DefaultConfig())
	require.NoError(t, err)
	require.True(t, only.Empty())
}

func TestBuildDeterministic(t *testing.T) {
	a, err := scene.Build("tech", sevenKeywords(), 5, layout.DefaultConfig())
	require.NoError(t, err)
	b, err := scene.Build("tech", sevenKeywords(), 5, layout.DefaultConfig())
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	require.JSONEq(t, string(ja), string(jb))
}

func TestBuildSmallestNodeHasBaseSize(t *testing.T) {
	sc, err := scene.Build("tech", sevenKeywords(), 5, layout.DefaultConfig())
	require.NoError(t, err)
	smallest := math.Inf(1)
	for _, n := range sc.Nodes[1:] {
		smallest = math.Min(smallest, n.Size)
	}
	require.Equal(t, 50.0, smallest)
}

func TestMarkerSize(t *testing.T) {
	require.Equal(t, 50.0, scene.MarkerSize(5, 5))
	require.InDelta(t, math.Pow(math.Log(2)*3, 1.5)+50, scene.MarkerSize(10, 5), 1e-9)
	require.Less(t, scene.MarkerSize(10, 5), scene.MarkerSize(11, 5))
}

func TestWrapLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"economia", "economia"},
		{"energia solar", "energia<br>solar"},
		{"banco central europeu", "banco<br>central europeu"},
		{"a b c d", "a b<br>c d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scene.WrapLabel(tt.in), tt.in)
	}
}

func TestDeriveDetail(t *testing.T) {
	st := aggregate.KeywordStat{
		Count:     12,
		Date:      map[int]int{201803: 4, 202011: 8},
		Sentiment: 0.9,
		Source:    map[string]int{"b.pt": 2, "a.pt": 2, "c.pt": 5},
		News: []string{
			archive + "20180301000000/https://a.pt/x",
			archive + "20201120000000/https://c.pt/y/z",
			archive + "20190101000000/https://b.pt/w",
		},
	}
	iv := sentiment.Intervals{Q10: -0.5, Q30: -0.1, Q70: 0.1, Q90: 0.5}
	n := scene.Derive("tech", layout.Node{Keyword: "energia solar", Stat: st, Pos: layout.Point{X: 3, Y: 4}}, 6, iv)

	require.Equal(t, "energia solar", n.ID)
	require.Equal(t, "energia<br>solar", n.Label)
	require.Equal(t, 3.0, n.X)
	require.Equal(t, sentiment.VeryPositive, *n.Class)
	require.Equal(t, "Topic: energia solar<br>Mentions: 12<br>Last seen: 2020/11", n.Hover)

	d := n.Detail
	require.Equal(t, "Association between tech and energia solar", d.Title)
	require.Equal(t, 12, d.Mentions)
	require.Equal(t, "very positive", d.SentimentLabel)
	require.Equal(t, []scene.SourceCount{{"c.pt", 5}, {"a.pt", 2}, {"b.pt", 2}}, d.Sources)
	require.Equal(t, []scene.YearCount{{2018, 4}, {2019, 0}, {2020, 8}}, d.Years.Bars)
	require.Equal(t, sentiment.VeryPositive.Color(), d.Years.Color)
	require.Len(t, d.Documents, 3)
	require.Equal(t, "2020/11 - https://c.pt/y/z", d.Documents[0].Label)
	require.Equal(t, "2019/01 - https://b.pt/w", d.Documents[1].Label)
	require.Equal(t, "2018/03 - https://a.pt/x", d.Documents[2].Label)
}

func TestBoundariesMatchBuild(t *testing.T) {
	res := sevenKeywords()
	sc, err := scene.Build("tech", res, 5, layout.DefaultConfig())
	require.NoError(t, err)

	iv, ok := scene.Boundaries("tech", res, 5)
	require.True(t, ok)
	require.Equal(t, *sc.Intervals, iv)

	_, ok = scene.Boundaries("tech", aggregate.Result{"tech": stat(9, 0)}, 5)
	require.False(t, ok)
}
