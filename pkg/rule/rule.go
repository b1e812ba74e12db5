// Package rule holds the lint detector catalog and the runner that
// dispatches paragraphs and documents to the right detector variant.
//
// Rules come in four capability variants modeled as a closed tagged type:
// lexical (raw text), morphological (text plus tokens), document-level
// (all paragraphs, with or without tokens), and contextual (model-backed).
// Exactly one entry-point function is set per rule, matching its Kind.
package rule

import (
	"context"

	"github.com/kakimori/gokosei/pkg/tokenize"
)

// Severity ranks a finding.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// String returns the configuration-file spelling.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Validation tracks the contextual-validation state of a finding.
type Validation int

const (
	// ValidationNone marks findings that never go through validation.
	ValidationNone Validation = iota
	// ValidationPending marks findings awaiting a model verdict; they are
	// hidden from rendered output while a validator is active.
	ValidationPending
	// ValidationConfirmed marks findings the model upheld.
	ValidationConfirmed
	// ValidationDismissed marks findings the model rejected; they stay
	// hidden permanently.
	ValidationDismissed
)

// Finding is one detected issue.
type Finding struct {
	RuleID     string
	Severity   Severity
	Message    string // Japanese, user-facing
	MessageEN  string // localized variant
	Range      tokenize.TextRange
	Suggestion string // empty when no replacement applies
	Matched    string // exact matched text, used by ignore records and validation
	Citation   string // style-guide reference, may be empty
	Validation Validation
	Absolute   bool // Range is document-absolute rather than paragraph-relative
}

// Kind discriminates the four rule variants.
type Kind int

const (
	KindLexical Kind = iota
	KindMorphological
	KindDocument
	KindContextual
)

// Sentence is a document-absolute sentence span handed to contextual rules.
type Sentence struct {
	Text      string
	Range     tokenize.TextRange // document-absolute rune offsets
	Paragraph int
}

// ModelClient is the inference boundary contextual rules call into.
// Implementations must surface context cancellation as ctx.Err(), not as a
// generic failure, so a cancelled pass is distinguishable from a broken one.
type ModelClient interface {
	Infer(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ModelAvailability is implemented by clients that can report whether their
// backend is loaded and reachable. The pipeline probes it before a validation
// pass and skips the pass, leaving findings pending, when the backend is
// down instead of burning an inference call to find out.
type ModelAvailability interface {
	Available(ctx context.Context) bool
}

// Rule is a named, versioned detector. The function matching Kind is set;
// all others are nil. Document rules set exactly one of Document and
// DocumentTokens depending on whether they need morphology.
type Rule struct {
	ID       string
	Version  string
	Kind     Kind
	Citation string
	Defaults Config

	Lexical        func(text string, cfg Config) []Finding
	Morph          func(text string, toks []tokenize.Token, cfg Config) []Finding
	Document       func(paras []string, cfg Config) map[int][]Finding
	DocumentTokens func(paras []string, toks [][]tokenize.Token, cfg Config) map[int][]Finding
	Contextual     func(ctx context.Context, sents []Sentence, cfg Config, client ModelClient) ([]Finding, error)
}

// NeedsTokens reports whether running this rule requires tokenization.
func (r Rule) NeedsTokens() bool {
	return r.Kind == KindMorphological || r.DocumentTokens != nil
}
