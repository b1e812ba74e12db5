// Package conductor keeps rendered annotations synchronized with a live
// document. It debounces edit bursts, limits recomputation to on-screen
// paragraphs, tags every pass with a monotonic version so stale results are
// never committed, and drives the optional model-backed validation pass.
package conductor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kakimori/gokosei/pkg/cache"
	"github.com/kakimori/gokosei/pkg/rule"
	"github.com/kakimori/gokosei/pkg/tokenize"
)

// InlineSpan is non-text inline content (an image, an embed) that occupies
// document positions without contributing characters. Offset is the rune
// offset within the paragraph text where it sits; Width is how many document
// positions it takes up.
type InlineSpan struct {
	Offset int
	Width  int
}

// Paragraph is the unit of incremental work. Pos is the document-absolute
// position of the paragraph's first character. Top and Bottom are on-screen
// coordinates; both zero means layout has not settled yet.
type Paragraph struct {
	Index  int
	Text   string
	Pos    int
	Top    float64
	Bottom float64
	Inline []InlineSpan
}

// Viewport is the visible scroll window in the same coordinate space as
// Paragraph.Top and Bottom.
type Viewport struct {
	Top    float64
	Bottom float64
}

// Snapshot is the document state a scan works from.
type Snapshot struct {
	Paragraphs []Paragraph
	Viewport   Viewport
	// Caret is the document-absolute caret position; negative when unknown.
	Caret int
}

// Reason tags an inbound update and decides its invalidation scope.
type Reason int

const (
	// ReasonEdit reprocesses only paragraphs whose text changed; everything
	// cached stays valid.
	ReasonEdit Reason = iota
	// ReasonConfig clears finding caches (tokens survive) and forces a full
	// scan.
	ReasonConfig
	// ReasonRefresh clears every cache, cancels the in-flight validation
	// pass, blanks rendered annotations immediately and forces a full scan.
	ReasonRefresh
	// ReasonIgnore re-filters and re-renders cached findings without any
	// recomputation.
	ReasonIgnore
	// ReasonModel invalidates only the validation-outcome cache.
	ReasonModel
)

// Update carries the payload of a Notify call. Only the fields relevant to
// the reason are read.
type Update struct {
	Snapshot  *Snapshot
	Overrides rule.Overrides   // ReasonConfig
	Ignores   []IgnoreRecord   // ReasonIgnore
	Model     rule.ModelClient // ReasonModel; nil disables validation
}

// IgnoreRecord suppresses findings matched by rule id and exact matched
// text. An empty ParagraphHash applies document-wide; otherwise the record
// binds to one paragraph's content fingerprint.
type IgnoreRecord struct {
	RuleID        string
	Matched       string
	ParagraphHash string
}

// ParagraphHash fingerprints paragraph content for ignore-record scoping.
func ParagraphHash(text string) string {
	return fmt.Sprintf("%016x", cache.FNV64(text))
}

func (rec IgnoreRecord) matches(f rule.Finding, paraHash string) bool {
	if rec.RuleID != f.RuleID || rec.Matched != f.Matched {
		return false
	}
	return rec.ParagraphHash == "" || rec.ParagraphHash == paraHash
}

// Annotation is one renderable span. From and To are document-absolute.
type Annotation struct {
	From    int
	To      int
	Class   string
	Finding rule.Finding
}

// UpdateFunc receives each committed render: the ordered annotation set, the
// flattened finding list, and whether contextual validation is still
// outstanding.
type UpdateFunc func(annotations []Annotation, findings []rule.Finding, validationPending bool)

// offsetTable translates paragraph-relative rune offsets to document
// positions, shifting past inline content. Spans are kept sorted by offset
// so translation is a prefix walk.
type offsetTable struct {
	base   int
	spans  []InlineSpan
	prefix []int // cumulative widths
}

func newOffsetTable(p Paragraph) offsetTable {
	spans := make([]InlineSpan, len(p.Inline))
	copy(spans, p.Inline)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Offset < spans[j].Offset })
	prefix := make([]int, len(spans))
	sum := 0
	for i, s := range spans {
		sum += s.Width
		prefix[i] = sum
	}
	return offsetTable{base: p.Pos, spans: spans, prefix: prefix}
}

func (t offsetTable) docPos(off int) int {
	shift := 0
	for i, s := range t.spans {
		if s.Offset > off {
			break
		}
		shift = t.prefix[i]
	}
	return t.base + off + shift
}

func (t offsetTable) docRange(r tokenize.TextRange) tokenize.TextRange {
	return tokenize.NewRange(t.docPos(r.Start), t.docPos(r.End))
}

// docLen is the number of document positions the paragraph occupies.
func docLen(p Paragraph) int {
	n := len([]rune(p.Text))
	for _, s := range p.Inline {
		n += s.Width
	}
	return n
}

// SplitParagraphs builds a Snapshot-ready paragraph list from plain text,
// one paragraph per line. Layout coordinates stay zero.
func SplitParagraphs(text string) []Paragraph {
	lines := strings.Split(text, "\n")
	out := make([]Paragraph, len(lines))
	pos := 0
	for i, line := range lines {
		out[i] = Paragraph{Index: i, Text: line, Pos: pos}
		pos += len([]rune(line)) + 1 // newline occupies one position
	}
	return out
}
