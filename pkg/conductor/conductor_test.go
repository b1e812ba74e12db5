package conductor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakimori/gokosei/pkg/rule"
	"github.com/kakimori/gokosei/pkg/tokenize"
)

// countingAnalyzer emits one noun token per rune and counts invocations.
type countingAnalyzer struct {
	calls int32
}

func (a *countingAnalyzer) Tokenize(text string) []tokenize.Morpheme {
	atomic.AddInt32(&a.calls, 1)
	var out []tokenize.Morpheme
	for _, r := range text {
		out = append(out, tokenize.Morpheme{Surface: string(r), POS: []string{"名詞", "一般"}})
	}
	return out
}

func newTokService(t *testing.T) (*tokenize.Service, *countingAnalyzer) {
	t.Helper()
	a := &countingAnalyzer{}
	s := tokenize.NewService(func() (tokenize.Analyzer, error) { return a, nil })
	require.NoError(t, s.Init(context.Background()))
	return s, a
}

const (
	denseText = "あ、い、う、え、お、かきくけこ。"
)

func longText() string {
	return strings.Repeat("あ", 55) + "。"
}

func TestRunOnceEndToEnd(t *testing.T) {
	s, a := newTokService(t)
	c := New(s, nil)

	paras := SplitParagraphs(denseText + "\n" + longText())
	first, err := c.RunOnce(context.Background(), paras)
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, "comma-density", first[0].RuleID)
	assert.Equal(t, tokenize.NewRange(0, 16), first[0].Range)
	assert.Equal(t, "long-sentence", first[1].RuleID)
	// Second paragraph starts past the 16 runes and the newline position.
	assert.Equal(t, tokenize.NewRange(17, 17+56), first[1].Range)

	// Rerun without changes: identical output, no extra tokenizer work.
	callsAfterFirst := atomic.LoadInt32(&a.calls)
	second, err := c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, atomic.LoadInt32(&a.calls))
}

func TestRunOnceEmptyParagraph(t *testing.T) {
	s, _ := newTokService(t)
	c := New(s, nil)

	findings, err := c.RunOnce(context.Background(), SplitParagraphs(""))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestStaleScanNeverCommits(t *testing.T) {
	s, _ := newTokService(t)

	var mu sync.Mutex
	var commits int
	c := New(s, func([]Annotation, []rule.Finding, bool) {
		mu.Lock()
		commits++
		mu.Unlock()
	}, WithDebounce(time.Hour))

	c.mu.Lock()
	c.snapshot = Snapshot{Paragraphs: SplitParagraphs(denseText), Caret: -1}
	c.fullScan = true
	c.mu.Unlock()

	older := c.version.Add(1)
	newer := c.version.Add(1)

	// The superseded pass finishes later but must not commit.
	c.scan(older)
	mu.Lock()
	assert.Equal(t, 0, commits)
	mu.Unlock()

	c.scan(newer)
	mu.Lock()
	assert.Equal(t, 1, commits)
	mu.Unlock()
}

func TestIgnoreSurvivesFullRescan(t *testing.T) {
	s, _ := newTokService(t)
	c := New(s, nil, WithDebounce(time.Hour))
	paras := SplitParagraphs(denseText)

	findings, err := c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	c.Notify(ReasonIgnore, Update{Ignores: []IgnoreRecord{
		{RuleID: "comma-density", Matched: findings[0].Matched},
	}})
	findings, err = c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	assert.Empty(t, findings)

	// A cache-clearing refresh recomputes everything; the record still holds.
	c.Notify(ReasonRefresh, Update{})
	findings, err = c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestIgnoreParagraphScope(t *testing.T) {
	s, _ := newTokService(t)
	c := New(s, nil)
	paras := SplitParagraphs(denseText + "\n" + denseText + "あ")

	// Scope the record to the first paragraph only. The second paragraph has
	// different text, so its finding survives.
	c.Notify(ReasonIgnore, Update{Ignores: []IgnoreRecord{
		{RuleID: "comma-density", Matched: denseText, ParagraphHash: ParagraphHash(denseText)},
	}})
	findings, err := c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	// The surviving finding sits in the second paragraph (Pos 17).
	assert.Equal(t, 17, findings[0].Range.Start)
}

func TestIgnoreChangeDoesNotRecompute(t *testing.T) {
	s, a := newTokService(t)
	c := New(s, nil, WithDebounce(time.Hour))
	paras := SplitParagraphs(denseText)

	_, err := c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	calls := atomic.LoadInt32(&a.calls)

	c.Notify(ReasonIgnore, Update{Ignores: []IgnoreRecord{{RuleID: "comma-density", Matched: denseText}}})
	assert.Equal(t, calls, atomic.LoadInt32(&a.calls))
}

func TestConfigChangeKeepsTokenCache(t *testing.T) {
	s, a := newTokService(t)
	c := New(s, nil, WithDebounce(time.Hour))
	paras := SplitParagraphs(denseText)

	findings, err := c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	calls := atomic.LoadInt32(&a.calls)

	disabled := false
	c.Notify(ReasonConfig, Update{Overrides: rule.Overrides{
		"comma-density": {Enabled: &disabled},
	}})
	findings, err = c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	assert.Empty(t, findings)
	// Finding caches were cleared, token cache was not.
	assert.Equal(t, calls, atomic.LoadInt32(&a.calls))
}

type gateModel struct {
	resp  string
	err   error
	calls int32
}

func (m *gateModel) Infer(ctx context.Context, prompt string, maxTokens int) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return "", m.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.resp, nil
}

func TestValidationGating(t *testing.T) {
	s, _ := newTokService(t)
	paras := SplitParagraphs(denseText)

	// Confirmed: rendered.
	c := New(s, nil, WithModel(&gateModel{resp: `[{"id":1,"valid":true}]`}))
	findings, err := c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, rule.ValidationConfirmed, findings[0].Validation)

	// Dismissed: permanently hidden.
	c = New(s, nil, WithModel(&gateModel{resp: `[{"id":1,"valid":false}]`}))
	findings, err = c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	assert.Empty(t, findings)

	// Model unreachable: finding stays pending and hidden.
	c = New(s, nil, WithModel(&gateModel{err: errors.New("connection refused")}))
	findings, err = c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	assert.Empty(t, findings)

	// No validation pass configured: pending findings render as-is.
	c = New(s, nil)
	findings, err = c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, rule.ValidationPending, findings[0].Validation)
}

// offlineModel reports an unloaded backend.
type offlineModel struct {
	gateModel
}

func (m *offlineModel) Available(ctx context.Context) bool { return false }

func TestModelUnavailableSkipsValidation(t *testing.T) {
	s, _ := newTokService(t)
	m := &offlineModel{gateModel{resp: `[{"id":1,"valid":true}]`}}
	c := New(s, nil, WithModel(m))

	findings, err := c.RunOnce(context.Background(), SplitParagraphs(denseText))
	require.NoError(t, err)
	// Findings stay pending and hidden; the backend is never asked.
	assert.Empty(t, findings)
	assert.Equal(t, int32(0), atomic.LoadInt32(&m.calls))
}

func TestModelChangeInvalidatesOutcomesOnly(t *testing.T) {
	s, a := newTokService(t)
	paras := SplitParagraphs(denseText)

	c := New(s, nil, WithDebounce(time.Hour), WithModel(&gateModel{resp: `[{"id":1,"valid":false}]`}))
	findings, err := c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	assert.Empty(t, findings)
	calls := atomic.LoadInt32(&a.calls)

	// The new model gets asked afresh and confirms.
	c.Notify(ReasonModel, Update{Model: &gateModel{resp: `[{"id":1,"valid":true}]`}})
	findings, err = c.RunOnce(context.Background(), paras)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	// No tokenizer work happened; only the outcome cache was dropped.
	assert.Equal(t, calls, atomic.LoadInt32(&a.calls))
}

func TestScheduledPipeline(t *testing.T) {
	s, _ := newTokService(t)

	type commit struct {
		anns    []Annotation
		pending bool
	}
	updates := make(chan commit, 16)
	c := New(s, func(anns []Annotation, _ []rule.Finding, pending bool) {
		updates <- commit{anns, pending}
	}, WithDebounce(5*time.Millisecond))
	defer c.Close()

	c.Start(context.Background(), Snapshot{Paragraphs: SplitParagraphs(denseText), Caret: -1})

	select {
	case got := <-updates:
		require.Len(t, got.anns, 1)
		assert.Equal(t, "comma-density", got.anns[0].Finding.RuleID)
		assert.Equal(t, "lint-warning", got.anns[0].Class)
		assert.False(t, got.pending)
	case <-time.After(2 * time.Second):
		t.Fatal("no annotation update committed")
	}
}

func TestDebounceCoalescesBursts(t *testing.T) {
	s, _ := newTokService(t)

	var commits int32
	c := New(s, func([]Annotation, []rule.Finding, bool) {
		atomic.AddInt32(&commits, 1)
	}, WithDebounce(30*time.Millisecond))
	defer c.Close()

	snap := Snapshot{Paragraphs: SplitParagraphs(denseText), Caret: -1}
	c.Start(context.Background(), snap)
	for i := 0; i < 10; i++ {
		c.Notify(ReasonEdit, Update{Snapshot: &snap})
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&commits))
}

func TestTargetSet(t *testing.T) {
	s, _ := newTokService(t)
	c := New(s, nil)

	paras := make([]Paragraph, 20)
	pos := 0
	for i := range paras {
		paras[i] = Paragraph{
			Index: i, Text: "段落",
			Pos: pos,
			Top: float64(i * 20), Bottom: float64(i*20 + 18),
		}
		pos += 3
	}

	// Rows 5..9 visible; buffer widens to 3..11.
	snap := Snapshot{Paragraphs: paras, Viewport: Viewport{Top: 100, Bottom: 199}, Caret: -1}
	targets := c.targetSet(snap, false)
	assert.Equal(t, uint64(9), targets.GetCardinality())
	assert.True(t, targets.Contains(3))
	assert.True(t, targets.Contains(11))
	assert.False(t, targets.Contains(2))
	assert.False(t, targets.Contains(12))

	// The caret paragraph always joins the set.
	snap.Caret = paras[15].Pos
	targets = c.targetSet(snap, false)
	assert.True(t, targets.Contains(15))

	// Before layout settles nothing resolves; the head is scanned.
	snap = Snapshot{Paragraphs: paras, Caret: -1}
	targets = c.targetSet(snap, false)
	assert.Equal(t, uint64(FallbackParagraphs), targets.GetCardinality())
	assert.True(t, targets.Contains(0))

	// Full scans cover everything.
	targets = c.targetSet(snap, true)
	assert.Equal(t, uint64(len(paras)), targets.GetCardinality())
}

func TestOffsetTableInlineContent(t *testing.T) {
	p := Paragraph{
		Index: 0,
		Text:  "前後",
		Pos:   100,
		// An embed of width 5 sits between the two characters.
		Inline: []InlineSpan{{Offset: 1, Width: 5}},
	}
	table := newOffsetTable(p)

	assert.Equal(t, 100, table.docPos(0))
	assert.Equal(t, 106, table.docPos(1))
	assert.Equal(t, tokenize.NewRange(100, 107), table.docRange(tokenize.NewRange(0, 2)))
	assert.Equal(t, 7, docLen(p))
}

func TestSplitParagraphs(t *testing.T) {
	paras := SplitParagraphs("一行目\n二行目")
	require.Len(t, paras, 2)
	assert.Equal(t, 0, paras[0].Pos)
	assert.Equal(t, "一行目", paras[0].Text)
	// The newline occupies one document position.
	assert.Equal(t, 4, paras[1].Pos)
	assert.Equal(t, 1, paras[1].Index)
}

func TestRefreshBlanksImmediately(t *testing.T) {
	s, _ := newTokService(t)

	updates := make(chan int, 16)
	c := New(s, func(anns []Annotation, _ []rule.Finding, _ bool) {
		updates <- len(anns)
	}, WithDebounce(time.Hour))

	c.mu.Lock()
	c.snapshot = Snapshot{Paragraphs: SplitParagraphs(denseText), Caret: -1}
	c.fullScan = true
	c.mu.Unlock()
	c.scan(c.version.Add(1))
	require.Equal(t, 1, <-updates)

	// Refresh blanks the rendered set before any rescan completes.
	c.Notify(ReasonRefresh, Update{})
	assert.Equal(t, 0, <-updates)
}
