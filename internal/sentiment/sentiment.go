package sentiment

import (
	"fmt"
	"math"
	"slices"
)

// Intervals are the quantile boundaries used to bucket keyword sentiment.
type Intervals struct {
	Q10 float64 `json:"q10"`
	Q30 float64 `json:"q30"`
	Q70 float64 `json:"q70"`
	Q90 float64 `json:"q90"`
}

// Weight of the corpus-wide boundary when blending; the displayed subset
// gets the remainder. Outer boundaries lean less on the subset because its
// tails are thin.
const (
	OuterGlobalWeight = 0.4
	InnerGlobalWeight = 0.3
)

// Quantile returns the q-th quantile of values using linear interpolation
// between closest ranks. values must be non-empty; it is not modified.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		panic("sentiment: quantile of empty sample")
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return quantileSorted(sorted, q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	h := float64(len(sorted)-1) * q
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Of computes raw boundaries over one sample.
func Of(values []float64) Intervals {
	if len(values) == 0 {
		panic("sentiment: intervals of empty sample")
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return Intervals{
		Q10: quantileSorted(sorted, 0.1),
		Q30: quantileSorted(sorted, 0.3),
		Q70: quantileSorted(sorted, 0.7),
		Q90: quantileSorted(sorted, 0.9),
	}
}

// Blend mixes corpus-wide and displayed-subset boundaries.
func Blend(global, subset Intervals) Intervals {
	return Intervals{
		Q10: global.Q10*OuterGlobalWeight + subset.Q10*(1-OuterGlobalWeight),
		Q30: global.Q30*InnerGlobalWeight + subset.Q30*(1-InnerGlobalWeight),
		Q70: global.Q70*InnerGlobalWeight + subset.Q70*(1-InnerGlobalWeight),
		Q90: global.Q90*OuterGlobalWeight + subset.Q90*(1-OuterGlobalWeight),
	}
}

// Compute returns blended boundaries for the full keyword sentiment sample
// and the displayed subset.
func Compute(all, displayed []float64) Intervals {
	return Blend(Of(all), Of(displayed))
}

// Classify buckets s. Lower boundaries are closed, upper ones half-open.
func (iv Intervals) Classify(s float64) Class {
	switch {
	case s <= iv.Q10:
		return VeryNegative
	case s <= iv.Q30:
		return Negative
	case s < iv.Q70:
		return Neutral
	case s < iv.Q90:
		return Positive
	default:
		return VeryPositive
	}
}

// Class is one of five ordered sentiment buckets.
type Class int

const (
	VeryNegative Class = iota
	Negative
	Neutral
	Positive
	VeryPositive
)

// Classes lists every class in order.
var Classes = []Class{VeryNegative, Negative, Neutral, Positive, VeryPositive}

var classNames = [...]string{"very_negative", "negative", "neutral", "positive", "very_positive"}

var classLabels = [...]string{"very negative", "negative", "neutral", "positive", "very positive"}

var classColors = [...]RGB{
	{204, 0, 0},
	{239, 83, 80},
	{204, 204, 204},
	{102, 187, 106},
	{0, 200, 81},
}

func (c Class) valid() bool { return c >= VeryNegative && c <= VeryPositive }

func (c Class) String() string {
	if !c.valid() {
		return fmt.Sprintf("class(%d)", int(c))
	}
	return classNames[c]
}

// Label is the human-readable class name.
func (c Class) Label() string {
	if !c.valid() {
		return c.String()
	}
	return classLabels[c]
}

// Color is the marker colour of the class.
func (c Class) Color() RGB {
	if !c.valid() {
		return classColors[Neutral]
	}
	return classColors[c]
}

// MarshalText encodes the class by name.
func (c Class) MarshalText() ([]byte, error) {
	if !c.valid() {
		return nil, fmt.Errorf("invalid sentiment class %d", int(c))
	}
	return []byte(classNames[c]), nil
}

// UnmarshalText decodes a class name.
func (c *Class) UnmarshalText(b []byte) error {
	for i, name := range classNames {
		if name == string(b) {
			*c = Class(i)
			return nil
		}
	}
	return fmt.Errorf("unknown sentiment class %q", b)
}
