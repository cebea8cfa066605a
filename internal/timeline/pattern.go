package timeline

// maxPatternLength caps candidate pattern lengths, bounding detection at
// O(n * min(n, 100)) per family.
const maxPatternLength = 100

// detectPatterns finds repeated contiguous block patterns in a family's
// span-location sequence. The scan is greedy: leftmost start first, longest
// candidate length first, accepting the first length that repeats at least
// twice. Not globally optimal, deterministic.
func detectPatterns(locations []string) []SpanPattern {
	var patterns []SpanPattern
	n := len(locations)

	i := 0
	for i < n {
		advanced := false
		for length := min(maxPatternLength, (n-i)/2); length >= 1; length-- {
			repeats := countBlockRepeats(locations, i, length)
			if repeats < 2 {
				continue
			}
			patterns = append(patterns, SpanPattern{
				StartSpan: i,
				Length:    length,
				Repeats:   repeats,
				Sequence:  append([]string(nil), locations[i:i+length]...),
			})
			i += length * repeats
			advanced = true
			break
		}
		if !advanced {
			i++
		}
	}
	return patterns
}

// countBlockRepeats counts consecutive non-overlapping blocks of the given
// length starting at i that equal the block at i.
func countBlockRepeats(locations []string, i, length int) int {
	repeats := 1
	for next := i + length; next+length <= len(locations); next += length {
		if !blocksEqual(locations, i, next, length) {
			break
		}
		repeats++
	}
	return repeats
}

func blocksEqual(locations []string, a, b, length int) bool {
	for k := 0; k < length; k++ {
		if locations[a+k] != locations[b+k] {
			return false
		}
	}
	return true
}
