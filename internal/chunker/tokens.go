package chunker

// Estimator approximates how many model tokens a text span will consume.
// The heuristic is ~4 ASCII characters per token; runes outside ASCII are
// counted as one token each so unusual input is over- rather than
// under-counted. The estimate is used only for sizing decisions.
type Estimator struct{}

// NewEstimator returns an estimator with the default heuristic.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Estimate returns the approximate token count for text. Empty input
// yields 0. Adding content never decreases the result.
func (e *Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	var ascii, wide int
	for _, r := range text {
		if r < 128 {
			ascii++
		} else {
			wide++
		}
	}
	n := ascii / 4
	if ascii%4 != 0 {
		n++
	}
	return n + wide
}

// LineCost returns a conservative per-line token cost that accounts for
// the newline joining the line to its neighbor. Summing LineCost over a
// window of lines is always >= Estimate of the joined window text, so
// windows built against a LineCost budget respect the real token bound.
func (e *Estimator) LineCost(line string) int {
	return e.Estimate(line) + 1
}
