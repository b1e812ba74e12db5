// Package validate runs pending findings past a local language model and
// records whether each one holds up in context. Verdicts are cached per
// (paragraph, rule, matched text) so unchanged paragraphs never re-ask.
package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/kakimori/gokosei/pkg/cache"
	"github.com/kakimori/gokosei/pkg/rule"
)

// ErrUnavailable reports that no model client is configured or reachable.
var ErrUnavailable = errors.New("validate: model unavailable")

// DefaultCacheSize bounds the verdict cache.
const DefaultCacheSize = 1024

// Validator batches the pending findings of a paragraph into one model call
// and maps the verdicts back. Safe for concurrent use.
type Validator struct {
	client   rule.ModelClient
	outcomes *cache.Cache[string, bool] // key -> confirmed
	log      *slog.Logger
}

// New builds a Validator around a model client. client may be nil; Run then
// returns ErrUnavailable and findings stay pending.
func New(client rule.ModelClient, log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{
		client:   client,
		outcomes: cache.New[string, bool](DefaultCacheSize),
		log:      log,
	}
}

// Run resolves the pending findings of one paragraph. Cached verdicts apply
// without a model call; the rest go out in a single batched prompt. Findings
// the model fails to rule on stay pending. The input slice is not mutated.
func (v *Validator) Run(ctx context.Context, paraText string, findings []rule.Finding) ([]rule.Finding, error) {
	out := slices.Clone(findings)

	var ask []int
	for i, f := range out {
		if f.Validation != rule.ValidationPending {
			continue
		}
		if confirmed, ok := v.outcomes.Get(v.key(paraText, f)); ok {
			out[i].Validation = verdictState(confirmed)
			continue
		}
		ask = append(ask, i)
	}
	if len(ask) == 0 {
		return out, nil
	}
	if v.client == nil {
		return out, ErrUnavailable
	}

	resp, err := v.client.Infer(ctx, buildPrompt(paraText, out, ask), 256)
	if err != nil {
		return out, err
	}
	for _, vd := range parseVerdicts(resp) {
		if vd.ID < 1 || vd.ID > len(ask) {
			continue
		}
		i := ask[vd.ID-1]
		out[i].Validation = verdictState(vd.Valid)
		v.outcomes.Set(v.key(paraText, out[i]), vd.Valid)
	}
	return out, nil
}

// Outcome reports a cached verdict, if any.
func (v *Validator) Outcome(paraText string, f rule.Finding) (confirmed, known bool) {
	return v.outcomes.Get(v.key(paraText, f))
}

// Invalidate drops all cached verdicts. Called when the model changes, since
// a different model may judge differently.
func (v *Validator) Invalidate() {
	v.outcomes.Clear()
}

// Stats exposes verdict-cache counters.
func (v *Validator) Stats() cache.Stats {
	return v.outcomes.Stats()
}

func (v *Validator) key(paraText string, f rule.Finding) string {
	return fmt.Sprintf("%x:%s:%s", cache.FNV64(paraText), f.RuleID, f.Matched)
}

func verdictState(confirmed bool) rule.Validation {
	if confirmed {
		return rule.ValidationConfirmed
	}
	return rule.ValidationDismissed
}

type verdict struct {
	ID    int  `json:"id"`
	Valid bool `json:"valid"`
}

func buildPrompt(paraText string, findings []rule.Finding, ask []int) string {
	var b strings.Builder
	b.WriteString("次の文章に対する校正指摘が、文脈上正しいか判定してください。\n")
	b.WriteString(`出力は JSON 配列のみ: [{"id":1,"valid":true}]` + "\n\n")
	b.WriteString("文章:\n")
	b.WriteString(paraText)
	b.WriteString("\n\n指摘:\n")
	for n, i := range ask {
		f := findings[i]
		fmt.Fprintf(&b, "%d. 「%s」: %s\n", n+1, f.Matched, f.Message)
	}
	return b.String()
}

// parseVerdicts tolerates prose around the JSON array; anything unparsable
// yields no verdicts and the findings stay pending.
func parseVerdicts(resp string) []verdict {
	start := strings.Index(resp, "[")
	end := strings.LastIndex(resp, "]")
	if start < 0 || end <= start {
		return nil
	}
	var out []verdict
	if err := json.Unmarshal([]byte(resp[start:end+1]), &out); err != nil {
		return nil
	}
	return out
}
