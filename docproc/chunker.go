package docproc

import (
	"regexp"
	"strings"
)

var sentenceRE = regexp.MustCompile(`[^.!?]+[.!?]+`)

// splitSentences normalizes whitespace and splits text into sentence-like
// units on terminal punctuation, keeping the punctuation with its unit.
// Trailing text without terminal punctuation becomes a final unit.
func splitSentences(text string) []string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return nil
	}

	matches := sentenceRE.FindAllStringIndex(collapsed, -1)
	units := make([]string, 0, len(matches)+1)
	last := 0
	for _, m := range matches {
		unit := strings.TrimSpace(collapsed[m[0]:m[1]])
		if unit != "" {
			units = append(units, unit)
		}
		last = m[1]
	}
	if tail := strings.TrimSpace(collapsed[last:]); tail != "" {
		units = append(units, tail)
	}
	return units
}

// chunkText packs sentence units greedily into windows of at most
// chunkSize characters. Each new window is seeded with trailing units of
// the previous one totalling at most overlap characters, rounded down to
// whole units. A window is never seeded with all units of its
// predecessor, and a seed that leaves no room for the next unit is
// dropped from the oldest end, so the walk always makes forward
// progress. A single unit longer than chunkSize becomes its own chunk.
func chunkText(text string, chunkSize, overlap int) []string {
	units := splitSentences(text)
	if len(units) == 0 {
		return nil
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	var chunks []string
	var window []string
	seedCount := 0

	joined := func(ws []string) string { return strings.Join(ws, " ") }

	i := 0
	for i < len(units) {
		unit := units[i]

		if len(window) == 0 {
			window = append(window, unit)
			seedCount = 0
			i++
			continue
		}

		if len(joined(window))+1+len(unit) <= chunkSize {
			window = append(window, unit)
			i++
			continue
		}

		if len(window) == seedCount {
			// Only carried context so far; shrink it rather than emit a
			// chunk that repeats the previous one.
			for len(window) > 0 && len(joined(window))+1+len(unit) > chunkSize {
				window = window[1:]
				seedCount--
			}
			window = append(window, unit)
			i++
			continue
		}

		chunks = append(chunks, joined(window))
		seeds := carrySeeds(window, overlap)
		window = append([]string(nil), seeds...)
		seedCount = len(seeds)
	}

	if len(window) > seedCount {
		chunks = append(chunks, joined(window))
	}

	return chunks
}

// carrySeeds walks backward over the closed window collecting whole
// units that fit in the overlap budget. At least one unit always stays
// behind, and a unit that alone exceeds the budget is never carried.
func carrySeeds(window []string, overlap int) []string {
	if overlap <= 0 {
		return nil
	}

	total := 0
	carried := 0
	for carried < len(window)-1 {
		unit := window[len(window)-1-carried]
		cost := len(unit)
		if carried > 0 {
			cost++ // joining space
		}
		if total+cost > overlap {
			break
		}
		total += cost
		carried++
	}
	return window[len(window)-carried:]
}
