package tokenize

// Sentence terminators. Closing quotes and brackets directly after a
// terminator belong to the finished sentence.
var terminators = map[rune]bool{
	'。': true, '！': true, '？': true, '!': true, '?': true,
}

var closers = map[rune]bool{
	'」': true, '』': true, '）': true, ')': true,
}

// SplitSentences returns the rune ranges of sentences in text. A trailing
// segment without a terminator counts as a sentence; an empty text yields
// no ranges.
func SplitSentences(text string) []TextRange {
	runes := []rune(text)
	var out []TextRange

	start := 0
	i := 0
	for i < len(runes) {
		if !terminators[runes[i]] {
			i++
			continue
		}
		// Absorb runs of terminators (！？) and trailing closers.
		for i < len(runes) && terminators[runes[i]] {
			i++
		}
		for i < len(runes) && closers[runes[i]] {
			i++
		}
		out = append(out, NewRange(start, i))
		start = i
	}
	if start < len(runes) {
		out = append(out, NewRange(start, len(runes)))
	}
	return out
}
