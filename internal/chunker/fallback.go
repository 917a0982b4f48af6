package chunker

import "fmt"

// KindRawLines tags chunks produced by the fallback line chunker.
const KindRawLines = "raw-lines"

// chunkByLines is the fallback chunker used when parsing fails, no
// grammar is registered, or the extractor finds no boundary nodes. It
// cuts the file into fixed line windows within the token budget; overlap
// between windows is added by the shared applyOverlap pass. An empty
// input yields no pieces; a single line yields exactly one.
func chunkByLines(lines []string, cfg Config, est *Estimator) []piece {
	if len(lines) == 0 {
		return nil
	}

	var out []piece
	winStart := 1
	winCost := 0
	emit := func(start, end int) {
		out = append(out, piece{
			kind:      KindRawLines,
			name:      fmt.Sprintf("block_%d", len(out)+1),
			startLine: start,
			endLine:   end,
			fallback:  true,
		})
	}
	for ln := 1; ln <= len(lines); ln++ {
		cost := est.LineCost(lines[ln-1])
		if ln > winStart && winCost+cost > cfg.MaxTokens {
			emit(winStart, ln-1)
			winStart = ln
			winCost = 0
		}
		winCost += cost
	}
	emit(winStart, len(lines))
	return out
}
