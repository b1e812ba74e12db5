package tokenize

// Noise characters stripped before analysis. Ruby markup and zero-width
// characters confuse segmentation but still occupy positions in the source
// text, so a position map carries cleaned offsets back to the original.
var noiseRunes = map[rune]bool{
	'\u200b': true, // zero-width space
	'\ufeff': true, // BOM
	'\u00ad': true, // soft hyphen
	'《':      true, // ruby reading open
	'》':      true, // ruby reading close
	'｜':      true, // ruby base marker
}

// Clean strips noise characters and returns the cleaned text together with a
// position map: posMap[i] is the original rune index of cleaned rune i, with
// a trailing sentinel mapping len(cleaned) to len(original).
func Clean(text string) (string, []int) {
	runes := []rune(text)
	cleaned := make([]rune, 0, len(runes))
	posMap := make([]int, 0, len(runes)+1)

	inRuby := false
	for i, r := range runes {
		if r == '《' {
			inRuby = true
			continue
		}
		if r == '》' {
			inRuby = false
			continue
		}
		if inRuby || noiseRunes[r] {
			continue
		}
		cleaned = append(cleaned, r)
		posMap = append(posMap, i)
	}
	posMap = append(posMap, len(runes))

	return string(cleaned), posMap
}
