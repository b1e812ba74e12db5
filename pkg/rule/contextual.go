package rule

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kakimori/gokosei/pkg/tokenize"
)

func homophoneCheckRule() Rule {
	return Rule{
		ID:       "homophone-check",
		Version:  "0.3.0",
		Kind:     KindContextual,
		Defaults: Config{
			Enabled:  true,
			Severity: SeverityWarning,
			Options: map[string]any{
				"max_output":    512,
				"max_sentences": 40, // keep the prompt inside small-model context
			},
		},
		Contextual: runHomophoneCheck,
	}
}

// homophoneVerdict is one row of the model's JSON answer.
type homophoneVerdict struct {
	Sentence   int    `json:"sentence"`
	Word       string `json:"word"`
	Suggestion string `json:"suggestion"`
	Reason     string `json:"reason"`
}

func runHomophoneCheck(ctx context.Context, sents []Sentence, cfg Config, client ModelClient) ([]Finding, error) {
	if len(sents) == 0 || client == nil {
		return nil, nil
	}
	if max := cfg.Int("max_sentences", 40); len(sents) > max {
		sents = sents[:max]
	}

	resp, err := client.Infer(ctx, buildHomophonePrompt(sents), cfg.Int("max_output", 512))
	if err != nil {
		return nil, err
	}
	return parseHomophoneResponse(resp, sents), nil
}

func buildHomophonePrompt(sents []Sentence) string {
	var b strings.Builder
	b.WriteString("以下の文章から、文脈に合わない同音異義語の誤変換を探してください。\n")
	b.WriteString("確実な誤りのみを報告し、見つからない場合は [] を返してください。\n")
	b.WriteString(`出力は JSON 配列のみ: [{"sentence":1,"word":"誤","suggestion":"正","reason":"理由"}]` + "\n\n")
	for i, s := range sents {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Text)
	}
	return b.String()
}

// parseHomophoneResponse extracts the JSON array from a possibly chatty
// completion and maps each verdict back onto a document-absolute span.
// Verdicts that reference an unknown sentence or a word not present in it
// are dropped rather than guessed at.
func parseHomophoneResponse(resp string, sents []Sentence) []Finding {
	start := strings.Index(resp, "[")
	end := strings.LastIndex(resp, "]")
	if start < 0 || end <= start {
		return nil
	}
	var verdicts []homophoneVerdict
	if err := json.Unmarshal([]byte(resp[start:end+1]), &verdicts); err != nil {
		return nil
	}

	var out []Finding
	for _, v := range verdicts {
		if v.Sentence < 1 || v.Sentence > len(sents) || v.Word == "" {
			continue
		}
		sent := sents[v.Sentence-1]
		idx := strings.Index(sent.Text, v.Word)
		if idx < 0 {
			continue
		}
		off := len([]rune(sent.Text[:idx]))
		wordLen := len([]rune(v.Word))
		msg := v.Reason
		if msg == "" {
			msg = fmt.Sprintf("同音異義語の誤変換の可能性: 「%s」", v.Word)
		}
		out = append(out, Finding{
			Message:    msg,
			MessageEN:  fmt.Sprintf("possible homophone misconversion: %q", v.Word),
			Range:      tokenize.NewRange(sent.Range.Start+off, sent.Range.Start+off+wordLen),
			Matched:    v.Word,
			Suggestion: v.Suggestion,
			Absolute:   true,
		})
	}
	return out
}
