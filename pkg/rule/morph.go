package rule

import (
	"fmt"
	"strings"

	"github.com/kakimori/gokosei/pkg/tokenize"
)

func raNukiRule() Rule {
	return Rule{
		ID:       "ra-nuki",
		Version:  "1.1.0",
		Kind:     KindMorphological,
		Citation: "文化庁 国語審議会",
		Defaults: Config{Enabled: true, Severity: SeverityWarning},
		Morph:    runRaNuki,
	}
}

// runRaNuki flags 一段/カ変 verbs in 未然形 directly followed by the
// auxiliary れる. The correct potential form for those verbs takes られる.
func runRaNuki(text string, toks []tokenize.Token, cfg Config) []Finding {
	var out []Finding
	for i := 0; i+1 < len(toks); i++ {
		v := toks[i]
		if v.POS != "動詞" || v.CForm != "未然形" {
			continue
		}
		ichidan := strings.Contains(v.CType, "一段")
		kahen := strings.Contains(v.CType, "カ変")
		if !ichidan && !kahen {
			continue
		}
		next := toks[i+1]
		if next.POS != "助動詞" || next.Base != "れる" {
			continue
		}
		out = append(out, Finding{
			Message:    fmt.Sprintf("ら抜き言葉です: 「%s%s」", v.Surface, next.Surface),
			MessageEN:  "dropped-ra potential form",
			Range:      tokenize.NewRange(v.Range.Start, next.Range.End),
			Matched:    v.Surface + next.Surface,
			Suggestion: v.Surface + "ら" + next.Surface,
		})
	}
	return out
}

func particleRunRule() Rule {
	return Rule{
		ID:       "particle-run",
		Version:  "1.0.0",
		Kind:     KindMorphological,
		Citation: "JTF 4.2.5",
		Defaults: Config{
			Enabled:  true,
			Severity: SeverityInfo,
			Options: map[string]any{
				"particle": "の",
				"max":      2, // occurrences allowed per sentence
			},
		},
		Morph: runParticleRun,
	}
}

// runParticleRun flags sentences where the same case particle repeats more
// than max times, a classic readability smell with 「の」.
func runParticleRun(text string, toks []tokenize.Token, cfg Config) []Finding {
	particle := cfg.String("particle", "の")
	max := cfg.Int("max", 2)

	var out []Finding
	for _, sr := range tokenize.SplitSentences(text) {
		var hits []tokenize.Token
		for _, t := range toks {
			if t.Range.Start < sr.Start || t.Range.End > sr.End {
				continue
			}
			if t.POS == "助詞" && t.Surface == particle {
				hits = append(hits, t)
			}
		}
		if len(hits) <= max {
			continue
		}
		out = append(out, Finding{
			Message:   fmt.Sprintf("一文に「%s」が%d回使われています", particle, len(hits)),
			MessageEN: fmt.Sprintf("particle %q appears %d times in one sentence", particle, len(hits)),
			Range:     tokenize.NewRange(hits[0].Range.Start, hits[len(hits)-1].Range.End),
			Matched:   particle,
		})
	}
	return out
}

func conjunctionLeadRule() Rule {
	return Rule{
		ID:       "conjunction-lead",
		Version:  "1.0.0",
		Kind:     KindMorphological,
		Citation: "JTF 4.2.1",
		Defaults: Config{Enabled: true, Severity: SeverityInfo},
		Morph:    runConjunctionLead,
	}
}

// runConjunctionLead flags consecutive sentences opening with the same
// conjunction. The first occurrence passes; the repeat is flagged.
func runConjunctionLead(text string, toks []tokenize.Token, cfg Config) []Finding {
	var out []Finding
	prev := ""
	for _, sr := range tokenize.SplitSentences(text) {
		lead := ""
		var leadTok tokenize.Token
		for _, t := range toks {
			if t.Range.Start < sr.Start || t.Range.End > sr.End {
				continue
			}
			if t.POS == "接続詞" {
				lead = t.Base
				if lead == "" {
					lead = t.Surface
				}
				leadTok = t
			}
			break // only the sentence-initial token matters
		}
		if lead != "" && lead == prev {
			out = append(out, Finding{
				Message:   fmt.Sprintf("接続詞「%s」が連続しています", leadTok.Surface),
				MessageEN: fmt.Sprintf("consecutive sentences start with %q", leadTok.Surface),
				Range:     leadTok.Range,
				Matched:   leadTok.Surface,
			})
		}
		prev = lead
	}
	return out
}
