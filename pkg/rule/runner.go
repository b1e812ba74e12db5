package rule

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kakimori/gokosei/pkg/tokenize"
)

// Runner executes a resolved rule set. A panicking or failing rule never
// takes down a pass: its findings are dropped for that run and the others
// still report.
type Runner struct {
	rules   []Rule
	configs map[string]Config
	log     *slog.Logger
}

// NewRunner resolves overrides onto the rule defaults. Overrides for unknown
// rule ids are ignored. Rule order is preserved, which together with each
// rule's own deterministic output keeps whole passes deterministic.
func NewRunner(rules []Rule, overrides Overrides, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	configs := make(map[string]Config, len(rules))
	for _, r := range rules {
		cfg := r.Defaults
		if ov, ok := overrides[r.ID]; ok {
			cfg = resolve(r.Defaults, ov)
		}
		configs[r.ID] = cfg
	}
	return &Runner{rules: rules, configs: configs, log: log}
}

// ConfigFor returns the resolved configuration for a rule id.
func (rn *Runner) ConfigFor(id string) (Config, bool) {
	cfg, ok := rn.configs[id]
	return cfg, ok
}

// Rules returns the catalog in execution order.
func (rn *Runner) Rules() []Rule {
	return rn.rules
}

// HasMorphologicalRules reports whether any enabled rule needs tokens.
func (rn *Runner) HasMorphologicalRules() bool {
	for _, r := range rn.rules {
		if rn.configs[r.ID].Enabled && r.NeedsTokens() {
			return true
		}
	}
	return false
}

// HasDocumentRules reports whether any enabled document-level rule exists.
func (rn *Runner) HasDocumentRules() bool {
	for _, r := range rn.rules {
		if rn.configs[r.ID].Enabled && r.Kind == KindDocument {
			return true
		}
	}
	return false
}

// HasContextualRules reports whether any enabled contextual rule exists.
func (rn *Runner) HasContextualRules() bool {
	for _, r := range rn.rules {
		if rn.configs[r.ID].Enabled && r.Kind == KindContextual {
			return true
		}
	}
	return false
}

// RunLexical runs the lexical rules over one paragraph.
func (rn *Runner) RunLexical(text string) []Finding {
	var out []Finding
	for _, r := range rn.rules {
		cfg := rn.configs[r.ID]
		if !cfg.Enabled || r.Lexical == nil || r.Kind != KindLexical {
			continue
		}
		out = append(out, rn.safeRun(r, cfg, func() []Finding {
			return r.Lexical(text, cfg)
		})...)
	}
	return out
}

// RunWithTokens runs the lexical and morphological rules over one paragraph.
func (rn *Runner) RunWithTokens(text string, toks []tokenize.Token) []Finding {
	out := rn.RunLexical(text)
	for _, r := range rn.rules {
		cfg := rn.configs[r.ID]
		if !cfg.Enabled || r.Morph == nil {
			continue
		}
		out = append(out, rn.safeRun(r, cfg, func() []Finding {
			return r.Morph(text, toks, cfg)
		})...)
	}
	return out
}

// RunDocument runs the document-level rules that need no morphology.
// Results are keyed by paragraph index with paragraph-relative ranges.
func (rn *Runner) RunDocument(paras []string) map[int][]Finding {
	out := make(map[int][]Finding)
	for _, r := range rn.rules {
		cfg := rn.configs[r.ID]
		if !cfg.Enabled || r.Document == nil {
			continue
		}
		rn.safeRunDoc(r, cfg, out, func() map[int][]Finding {
			return r.Document(paras, cfg)
		})
	}
	return out
}

// RunDocumentTokens runs the document-level rules that need morphology.
// toks must be index-aligned with paras.
func (rn *Runner) RunDocumentTokens(paras []string, toks [][]tokenize.Token) map[int][]Finding {
	out := make(map[int][]Finding)
	for _, r := range rn.rules {
		cfg := rn.configs[r.ID]
		if !cfg.Enabled || r.DocumentTokens == nil {
			continue
		}
		rn.safeRunDoc(r, cfg, out, func() map[int][]Finding {
			return r.DocumentTokens(paras, toks, cfg)
		})
	}
	return out
}

// RunContextual runs the model-backed rules over document sentences.
// Context cancellation aborts the whole pass; any other per-rule error is
// logged and the remaining rules still run.
func (rn *Runner) RunContextual(ctx context.Context, sents []Sentence, client ModelClient) ([]Finding, error) {
	var out []Finding
	for _, r := range rn.rules {
		cfg := rn.configs[r.ID]
		if !cfg.Enabled || r.Contextual == nil {
			continue
		}
		findings, err := rn.safeRunContextual(ctx, r, cfg, sents, client)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			rn.log.Warn("contextual rule failed", "rule", r.ID, "error", err)
			continue
		}
		for i := range findings {
			rn.stamp(&findings[i], r, cfg)
			// Model output is its own verdict; never re-validate it.
			findings[i].Validation = ValidationConfirmed
		}
		out = append(out, findings...)
	}
	return out, nil
}

// safeRun executes one rule body, recovering panics, and stamps identity
// fields onto whatever it produced.
func (rn *Runner) safeRun(r Rule, cfg Config, fn func() []Finding) (out []Finding) {
	defer func() {
		if rec := recover(); rec != nil {
			rn.log.Error("rule panicked", "rule", r.ID, "panic", rec)
			out = nil
		}
	}()
	out = fn()
	for i := range out {
		rn.stamp(&out[i], r, cfg)
	}
	return out
}

func (rn *Runner) safeRunDoc(r Rule, cfg Config, dst map[int][]Finding, fn func() map[int][]Finding) {
	defer func() {
		if rec := recover(); rec != nil {
			rn.log.Error("rule panicked", "rule", r.ID, "panic", rec)
		}
	}()
	for para, findings := range fn() {
		for i := range findings {
			rn.stamp(&findings[i], r, cfg)
		}
		dst[para] = append(dst[para], findings...)
	}
}

func (rn *Runner) safeRunContextual(ctx context.Context, r Rule, cfg Config, sents []Sentence, client ModelClient) (out []Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			rn.log.Error("rule panicked", "rule", r.ID, "panic", rec)
			out, err = nil, nil
		}
	}()
	return r.Contextual(ctx, sents, cfg, client)
}

func (rn *Runner) stamp(f *Finding, r Rule, cfg Config) {
	f.RuleID = r.ID
	f.Severity = cfg.Severity
	if f.Citation == "" {
		f.Citation = r.Citation
	}
	// Paragraph-scoped findings queue for contextual validation unless the
	// rule opts out; document-level findings are structural and skip it.
	if (r.Kind == KindLexical || r.Kind == KindMorphological) && !cfg.SkipValidation {
		f.Validation = ValidationPending
	}
}
