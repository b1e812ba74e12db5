package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kakimori/gokosei/pkg/cache"
	"github.com/kakimori/gokosei/pkg/rule"
	"github.com/kakimori/gokosei/pkg/tokenize"
	"github.com/kakimori/gokosei/pkg/validate"
)

const (
	// DefaultDebounce coalesces edit bursts before a scan runs.
	DefaultDebounce = 500 * time.Millisecond
	// ViewportBuffer extends the visible paragraph set on both sides.
	ViewportBuffer = 2
	// FallbackParagraphs are scanned when no paragraph resolves against the
	// viewport, e.g. before layout settles.
	FallbackParagraphs = 3
	// DefaultFindingCacheSize bounds the per-paragraph finding cache.
	DefaultFindingCacheSize = 512
)

// paraEntry is one cached per-paragraph result. morph records whether
// morphology was available when it was computed, so a lexical-only entry is
// recomputed once the analyzer becomes ready.
type paraEntry struct {
	findings []rule.Finding
	morph    bool
}

// Conductor owns the annotation pipeline of one editor instance. Caches are
// not shared across instances.
type Conductor struct {
	tok       *tokenize.Service
	rules     []rule.Rule
	overrides rule.Overrides
	onUpdate  UpdateFunc
	onError   func(error)
	log       *slog.Logger
	debounce  time.Duration

	// version tags each scan; a pass whose version is superseded before it
	// commits discards its results unconditionally.
	version atomic.Uint64

	mu          sync.Mutex
	runner      *rule.Runner
	snapshot    Snapshot
	ignores     []IgnoreRecord
	fullScan    bool
	timer       *time.Timer
	model       rule.ModelClient
	validator   *validate.Validator
	docFindings map[int][]rule.Finding
	contextual  []rule.Finding
	closed      bool

	paraFindings *cache.Hashed[paraEntry]

	// emitMu serializes render callbacks so commits cannot interleave.
	emitMu sync.Mutex

	valMu     sync.Mutex
	valCancel context.CancelFunc

	initErr sync.Once
}

// Option configures a Conductor.
type Option func(*Conductor)

// WithDebounce overrides the scan debounce window.
func WithDebounce(d time.Duration) Option {
	return func(c *Conductor) { c.debounce = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conductor) { c.log = l }
}

// WithModel enables the contextual validation pass.
func WithModel(m rule.ModelClient) Option {
	return func(c *Conductor) { c.model = m }
}

// WithRules replaces the built-in catalog.
func WithRules(rules []rule.Rule) Option {
	return func(c *Conductor) { c.rules = rules }
}

// WithOverrides supplies the initial rule configuration.
func WithOverrides(ov rule.Overrides) Option {
	return func(c *Conductor) { c.overrides = ov }
}

// WithIgnores supplies the initial ignore records.
func WithIgnores(recs []IgnoreRecord) Option {
	return func(c *Conductor) { c.ignores = recs }
}

// WithOnError sets the callback for initialization failures, reported once.
func WithOnError(fn func(error)) Option {
	return func(c *Conductor) { c.onError = fn }
}

// New builds a Conductor around a tokenization service. onUpdate receives
// every committed render and may be nil for batch use.
func New(tok *tokenize.Service, onUpdate UpdateFunc, opts ...Option) *Conductor {
	c := &Conductor{
		tok:         tok,
		rules:       rule.Catalog(),
		onUpdate:    onUpdate,
		log:         slog.Default(),
		debounce:    DefaultDebounce,
		docFindings: make(map[int][]rule.Finding),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.paraFindings = cache.NewHashed[paraEntry](DefaultFindingCacheSize, nil)
	c.runner = rule.NewRunner(c.rules, c.overrides, c.log)
	if c.model != nil {
		c.validator = validate.New(c.model, c.log)
	}
	return c
}

// Start begins asynchronous analyzer initialization and schedules the first
// full scan. Initialization failure degrades to lexical-only operation and
// is reported once through the error callback.
func (c *Conductor) Start(ctx context.Context, snap Snapshot) {
	c.mu.Lock()
	c.snapshot = snap
	c.fullScan = true
	needMorph := c.runner.HasMorphologicalRules()
	c.mu.Unlock()

	if needMorph {
		go func() {
			if err := c.tok.Init(ctx); err != nil {
				c.reportInitError(err)
				return
			}
			// Rescan so lexical-only entries pick up morphology.
			c.schedule()
		}()
	}
	c.schedule()
}

// Close stops the debounce timer and cancels any in-flight validation pass.
func (c *Conductor) Close() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()
	c.cancelValidation()
}

// Notify pushes an external change into the pipeline. The reason decides the
// invalidation scope; only the matching Update fields are read.
func (c *Conductor) Notify(reason Reason, u Update) {
	switch reason {
	case ReasonEdit:
		c.mu.Lock()
		if u.Snapshot != nil {
			c.snapshot = *u.Snapshot
		}
		c.mu.Unlock()
		c.schedule()

	case ReasonConfig:
		c.mu.Lock()
		c.runner = rule.NewRunner(c.rules, u.Overrides, c.log)
		if u.Snapshot != nil {
			c.snapshot = *u.Snapshot
		}
		c.fullScan = true
		c.mu.Unlock()
		// Findings depend on configuration; tokens do not and survive.
		c.paraFindings.Clear()
		c.schedule()

	case ReasonRefresh:
		c.cancelValidation()
		c.mu.Lock()
		if u.Snapshot != nil {
			c.snapshot = *u.Snapshot
		}
		c.fullScan = true
		c.docFindings = make(map[int][]rule.Finding)
		c.contextual = nil
		c.mu.Unlock()
		c.paraFindings.Clear()
		c.tok.ClearCache()
		// Blank immediately so stale annotations never show during the rescan.
		c.emit(c.version.Add(1), nil, nil, false)
		c.schedule()

	case ReasonIgnore:
		c.mu.Lock()
		c.ignores = append([]IgnoreRecord(nil), u.Ignores...)
		c.mu.Unlock()
		// Re-filter cached results; nothing is recomputed.
		c.render(c.version.Load())

	case ReasonModel:
		c.mu.Lock()
		c.model = u.Model
		if u.Model != nil {
			// A different model may judge differently: fresh outcome cache.
			c.validator = validate.New(u.Model, c.log)
		} else {
			c.validator = nil
		}
		snap := c.snapshot
		c.mu.Unlock()
		v := c.version.Load()
		c.render(v)
		c.startValidation(v, snap)
	}
}

// schedule arms the debounce timer, superseding any pending scan.
func (c *Conductor) schedule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.scan(c.version.Add(1))
	})
}

// scan runs one pass at version v. If a newer pass starts meanwhile, this
// one computes into the shared caches (which stay valid: they are keyed by
// content) but never commits its merged output.
func (c *Conductor) scan(v uint64) {
	c.mu.Lock()
	snap := c.snapshot
	full := c.fullScan
	c.fullScan = false
	runner := c.runner
	c.mu.Unlock()

	wantMorph := runner.HasMorphologicalRules() && c.tok.Ready()

	targets := c.targetSet(snap, full)
	it := targets.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		if i >= len(snap.Paragraphs) {
			break
		}
		text := snap.Paragraphs[i].Text
		if entry, ok := c.paraFindings.Get(text); ok && entry.morph == wantMorph {
			continue
		}
		c.paraFindings.Set(text, c.computePara(runner, text, wantMorph))
	}

	// Document-level tiers always cover the whole paragraph set; the
	// cross-paragraph aggregate cannot be cached per paragraph.
	texts := make([]string, len(snap.Paragraphs))
	for i, p := range snap.Paragraphs {
		texts[i] = p.Text
	}
	doc := c.runDocumentTiers(runner, texts, wantMorph)

	if c.version.Load() != v {
		return
	}
	c.mu.Lock()
	if c.version.Load() != v {
		c.mu.Unlock()
		return
	}
	c.docFindings = doc
	c.mu.Unlock()

	c.render(v)
	c.startValidation(v, snap)
}

func (c *Conductor) computePara(runner *rule.Runner, text string, wantMorph bool) paraEntry {
	if wantMorph {
		toks, err := c.tok.Tokenize(text)
		if err == nil {
			return paraEntry{findings: runner.RunWithTokens(text, toks), morph: true}
		}
		c.log.Warn("tokenization failed, lexical tier only", "error", err)
	}
	return paraEntry{findings: runner.RunLexical(text)}
}

func (c *Conductor) runDocumentTiers(runner *rule.Runner, texts []string, wantMorph bool) map[int][]rule.Finding {
	doc := runner.RunDocument(texts)
	if !wantMorph {
		return doc
	}
	perPara := make([][]tokenize.Token, len(texts))
	for i, text := range texts {
		toks, err := c.tok.Tokenize(text)
		if err != nil {
			return doc
		}
		perPara[i] = toks
	}
	for i, fs := range runner.RunDocumentTokens(texts, perPara) {
		doc[i] = append(doc[i], fs...)
	}
	return doc
}

// targetSet picks the paragraphs to reprocess: everything on a full scan,
// otherwise viewport hits widened by the buffer, plus the caret paragraph,
// falling back to the document head when nothing resolves.
func (c *Conductor) targetSet(snap Snapshot, full bool) *roaring.Bitmap {
	targets := roaring.New()
	n := len(snap.Paragraphs)
	if n == 0 {
		return targets
	}
	if full {
		targets.AddRange(0, uint64(n))
		return targets
	}

	vp := snap.Viewport
	for _, p := range snap.Paragraphs {
		if vp.Bottom > vp.Top && p.Bottom >= vp.Top && p.Top <= vp.Bottom {
			lo := max(0, p.Index-ViewportBuffer)
			hi := min(n, p.Index+ViewportBuffer+1)
			targets.AddRange(uint64(lo), uint64(hi))
		}
	}
	if snap.Caret >= 0 {
		for _, p := range snap.Paragraphs {
			if snap.Caret >= p.Pos && snap.Caret <= p.Pos+docLen(p) {
				targets.Add(uint32(p.Index))
				break
			}
		}
	}
	if targets.IsEmpty() {
		targets.AddRange(0, uint64(min(n, FallbackParagraphs)))
	}
	return targets
}

// render merges cached per-paragraph and document-level findings for every
// paragraph (not only the latest target set, so off-screen annotations
// persist), filters ignores, gates on validation state, translates spans to
// document-absolute coordinates and commits.
func (c *Conductor) render(v uint64) {
	anns, flat, pending := c.assemble()
	c.emit(v, anns, flat, pending)
}

func (c *Conductor) assemble() ([]Annotation, []rule.Finding, bool) {
	c.mu.Lock()
	snap := c.snapshot
	doc := c.docFindings
	ignores := append([]IgnoreRecord(nil), c.ignores...)
	contextual := append([]rule.Finding(nil), c.contextual...)
	validator := c.validator
	c.mu.Unlock()

	var anns []Annotation
	var flat []rule.Finding
	pendingLeft := false

	for _, p := range snap.Paragraphs {
		var fs []rule.Finding
		if entry, ok := c.paraFindings.Get(p.Text); ok {
			fs = append(fs, entry.findings...)
		}
		fs = append(fs, doc[p.Index]...)
		if len(fs) == 0 {
			continue
		}
		table := newOffsetTable(p)
		hash := ParagraphHash(p.Text)
		for _, f := range fs {
			if ignored(f, hash, ignores) {
				continue
			}
			switch f.Validation {
			case rule.ValidationDismissed:
				continue
			case rule.ValidationPending:
				// The validator's outcome cache is authoritative: hidden
				// until confirmed, permanently hidden when dismissed, shown
				// as-is when no validation pass is configured.
				if validator != nil {
					confirmed, known := validator.Outcome(p.Text, f)
					if !known {
						pendingLeft = true
						continue
					}
					if !confirmed {
						continue
					}
					f.Validation = rule.ValidationConfirmed
				}
			}
			abs := f
			abs.Range = table.docRange(f.Range)
			abs.Absolute = true
			anns = append(anns, annotation(abs))
			flat = append(flat, abs)
		}
	}

	for _, f := range contextual {
		if ignored(f, "", ignores) {
			continue
		}
		anns = append(anns, annotation(f))
		flat = append(flat, f)
	}

	sort.SliceStable(anns, func(i, j int) bool {
		if anns[i].From != anns[j].From {
			return anns[i].From < anns[j].From
		}
		return anns[i].To < anns[j].To
	})
	sort.SliceStable(flat, func(i, j int) bool {
		if flat[i].Range.Start != flat[j].Range.Start {
			return flat[i].Range.Start < flat[j].Range.Start
		}
		return flat[i].Range.End < flat[j].Range.End
	})
	return anns, flat, pendingLeft
}

func annotation(f rule.Finding) Annotation {
	return Annotation{
		From:    f.Range.Start,
		To:      f.Range.End,
		Class:   "lint-" + f.Severity.String(),
		Finding: f,
	}
}

func ignored(f rule.Finding, paraHash string, recs []IgnoreRecord) bool {
	for _, rec := range recs {
		if rec.matches(f, paraHash) {
			return true
		}
	}
	return false
}

// emit commits a render if v is still the latest version.
func (c *Conductor) emit(v uint64, anns []Annotation, flat []rule.Finding, pending bool) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.version.Load() != v {
		return
	}
	if c.onUpdate != nil {
		c.onUpdate(anns, flat, pending)
	}
}

// startValidation kicks the contextual pass when there is pending work. At
// most one pass is in flight; a new trigger cancels the previous one.
func (c *Conductor) startValidation(v uint64, snap Snapshot) {
	c.mu.Lock()
	validator := c.validator
	model := c.model
	runner := c.runner
	c.mu.Unlock()
	if validator == nil || !modelReady(context.Background(), model) {
		return
	}

	needs := runner.HasContextualRules()
	if !needs {
		for _, p := range snap.Paragraphs {
			if entry, ok := c.paraFindings.Get(p.Text); ok && unresolved(validator, p.Text, entry.findings) {
				needs = true
				break
			}
		}
	}
	if !needs {
		return
	}

	c.valMu.Lock()
	if c.valCancel != nil {
		c.valCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.valCancel = cancel
	c.valMu.Unlock()

	go c.validationPass(ctx, v, snap, runner, validator, model)
}

// validationPass runs the two ordered jobs: resolve pending findings, then
// the contextual-only rules. Cancellation discards partial results silently.
func (c *Conductor) validationPass(ctx context.Context, v uint64, snap Snapshot, runner *rule.Runner, validator *validate.Validator, model rule.ModelClient) {
	for _, p := range snap.Paragraphs {
		entry, ok := c.paraFindings.Get(p.Text)
		if !ok || !unresolved(validator, p.Text, entry.findings) {
			continue
		}
		// Run populates the validator's outcome cache; render reads it back.
		if _, err := validator.Run(ctx, p.Text, entry.findings); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, validate.ErrUnavailable) {
				return
			}
			c.log.Warn("validation pass failed", "error", err)
			return
		}
		if c.version.Load() != v {
			return
		}
	}

	if runner.HasContextualRules() && model != nil {
		findings, err := runner.RunContextual(ctx, documentSentences(snap), model)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				c.log.Warn("contextual rules failed", "error", err)
			}
			return
		}
		if c.version.Load() != v {
			return
		}
		c.mu.Lock()
		c.contextual = findings
		c.mu.Unlock()
	}

	if c.version.Load() != v {
		return
	}
	c.render(v)
}

func (c *Conductor) cancelValidation() {
	c.valMu.Lock()
	if c.valCancel != nil {
		c.valCancel()
		c.valCancel = nil
	}
	c.valMu.Unlock()
}

func (c *Conductor) reportInitError(err error) {
	c.initErr.Do(func() {
		err = fmt.Errorf("conductor: analyzer initialization: %w", err)
		c.log.Error("initialization failed", "error", err)
		if c.onError != nil {
			c.onError(err)
		}
	})
}

// modelReady probes backend availability when the client reports it.
func modelReady(ctx context.Context, m rule.ModelClient) bool {
	if a, ok := m.(rule.ModelAvailability); ok {
		return a.Available(ctx)
	}
	return true
}

// unresolved reports whether any pending finding lacks a cached verdict.
func unresolved(v *validate.Validator, text string, findings []rule.Finding) bool {
	for _, f := range findings {
		if f.Validation != rule.ValidationPending {
			continue
		}
		if _, known := v.Outcome(text, f); !known {
			return true
		}
	}
	return false
}

func documentSentences(snap Snapshot) []rule.Sentence {
	var out []rule.Sentence
	for _, p := range snap.Paragraphs {
		table := newOffsetTable(p)
		for _, sr := range tokenize.SplitSentences(p.Text) {
			out = append(out, rule.Sentence{
				Text:      sr.Slice(p.Text),
				Range:     table.docRange(sr),
				Paragraph: p.Index,
			})
		}
	}
	return out
}

// RunOnce performs one synchronous full pass outside the debounced pipeline
// and returns document-absolute findings. Batch callers (CLI, tests) use it
// instead of Start/Notify.
func (c *Conductor) RunOnce(ctx context.Context, paras []Paragraph) ([]rule.Finding, error) {
	snap := Snapshot{Paragraphs: paras, Caret: -1}
	c.mu.Lock()
	c.snapshot = snap
	runner := c.runner
	validator := c.validator
	model := c.model
	c.mu.Unlock()

	if runner.HasMorphologicalRules() {
		if err := c.tok.Init(ctx); err != nil {
			c.reportInitError(err)
		}
	}

	wantMorph := runner.HasMorphologicalRules() && c.tok.Ready()
	texts := make([]string, len(paras))
	for i, p := range paras {
		texts[i] = p.Text
		if entry, ok := c.paraFindings.Get(p.Text); ok && entry.morph == wantMorph {
			continue
		}
		c.paraFindings.Set(p.Text, c.computePara(runner, p.Text, wantMorph))
	}

	doc := c.runDocumentTiers(runner, texts, wantMorph)
	c.mu.Lock()
	c.docFindings = doc
	c.mu.Unlock()

	if validator != nil && modelReady(ctx, model) {
		for _, p := range paras {
			entry, ok := c.paraFindings.Get(p.Text)
			if !ok || !unresolved(validator, p.Text, entry.findings) {
				continue
			}
			if _, err := validator.Run(ctx, p.Text, entry.findings); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil, err
				}
				break // unresolved findings stay hidden as pending
			}
		}
		if runner.HasContextualRules() && model != nil {
			findings, err := runner.RunContextual(ctx, documentSentences(snap), model)
			if err == nil {
				c.mu.Lock()
				c.contextual = findings
				c.mu.Unlock()
			} else if errors.Is(err, context.Canceled) {
				return nil, err
			}
		}
	}

	_, flat, _ := c.assemble()
	return flat, nil
}
