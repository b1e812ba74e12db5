// Package tokenize converts paragraphs of Japanese prose into
// character-accurate morphological tokens. It wraps a pluggable analyzer,
// strips noise characters while tracking a position map back to the original
// text, recomputes offsets from surface forms, merges user-dictionary
// entries, and caches results keyed by the original paragraph text.
package tokenize

// TextRange is a [Start, End) span in rune offsets.
// All spans produced by this package are rune offsets, never bytes: the
// annotation layer addresses characters, and analyzer-native offsets are not
// trusted to be character-accurate.
type TextRange struct {
	Start int
	End   int
}

// NewRange creates a TextRange.
func NewRange(start, end int) TextRange {
	return TextRange{Start: start, End: end}
}

// Len returns the length of the range in runes.
func (r TextRange) Len() int {
	return r.End - r.Start
}

// IsEmpty returns true if the range covers nothing.
func (r TextRange) IsEmpty() bool {
	return r.Start >= r.End
}

// Slice extracts the text covered by this range.
func (r TextRange) Slice(text string) string {
	runes := []rune(text)
	if r.Start < 0 || r.End > len(runes) || r.Start > r.End {
		return ""
	}
	return string(runes[r.Start:r.End])
}

// Contains checks if this range contains another.
func (r TextRange) Contains(other TextRange) bool {
	return r.Start <= other.Start && r.End >= other.End
}

// Overlaps checks if ranges overlap.
func (r TextRange) Overlaps(other TextRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// Shift returns the range moved by delta.
func (r TextRange) Shift(delta int) TextRange {
	return TextRange{Start: r.Start + delta, End: r.End + delta}
}

// Token is one morphologically analyzed unit of a paragraph.
// Produced only by Service.Tokenize; treated as immutable once returned.
type Token struct {
	Surface string    // surface form as it appears in the text
	POS     string    // primary category (名詞, 動詞, 助詞, …)
	POSSub  string    // secondary category (一般, 係助詞, 数, …)
	Base    string    // dictionary form; equals Surface when unknown
	Reading string    // katakana reading
	CType   string    // conjugation type (一段, 五段・ラ行, …)
	CForm   string    // conjugation form (未然形, 連用形, …)
	Range   TextRange // rune offsets relative to the original paragraph text
}

// Morpheme is the raw analyzer output before offset correction.
// Offsets are deliberately absent: the service derives them from surface
// lengths instead of trusting the analyzer.
type Morpheme struct {
	Surface string
	POS     []string
	Base    string
	Reading string
	CType   string
	CForm   string
}

// Analyzer is the morphological analyzer boundary.
// Tokenize is synchronous and must only be called once the analyzer has been
// fully constructed; construction (dictionary loading) happens in the factory
// passed to the Service.
type Analyzer interface {
	Tokenize(text string) []Morpheme
}
