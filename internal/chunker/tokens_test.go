package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateEmpty(t *testing.T) {
	est := NewEstimator()
	assert.Equal(t, 0, est.Estimate(""))
}

func TestEstimateRoughlyFourCharsPerToken(t *testing.T) {
	est := NewEstimator()
	assert.Equal(t, 1, est.Estimate("ab"))
	assert.Equal(t, 1, est.Estimate("abcd"))
	assert.Equal(t, 2, est.Estimate("abcde"))
	assert.Equal(t, 25, est.Estimate(strings.Repeat("a", 100)))
}

func TestEstimateMonotonic(t *testing.T) {
	est := NewEstimator()
	text := ""
	prev := 0
	for _, piece := range []string{"func", " main", "() {", " return", " 42 }", "日本語"} {
		text += piece
		cur := est.Estimate(text)
		assert.GreaterOrEqual(t, cur, prev, "estimate decreased after appending %q", piece)
		prev = cur
	}
}

func TestEstimateNonASCIICountedConservatively(t *testing.T) {
	est := NewEstimator()
	// Each rune outside ASCII counts as at least one token.
	assert.GreaterOrEqual(t, est.Estimate("日本語"), 3)
	assert.GreaterOrEqual(t, est.Estimate("\xff\xfe"), 1) // invalid UTF-8 still counts
}

func TestEstimateDeterministic(t *testing.T) {
	est := NewEstimator()
	text := "def handler(request):\n    return request.body\n"
	assert.Equal(t, est.Estimate(text), est.Estimate(text))
}

func TestLineCostBoundsJoinedEstimate(t *testing.T) {
	est := NewEstimator()
	lines := []string{"first line of code", "second", "", "fourth line longer than the rest"}
	sum := 0
	for _, l := range lines {
		sum += est.LineCost(l)
	}
	assert.GreaterOrEqual(t, sum, est.Estimate(strings.Join(lines, "\n")))
}
