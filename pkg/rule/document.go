package rule

import (
	"fmt"
	"sort"

	"github.com/kakimori/gokosei/pkg/tokenize"
)

// variantGroups lists spelling variants of the same word, canonical form
// first. The canonical form wins ties when the document splits evenly.
var variantGroups = [][]string{
	{"行う", "行なう"},
	{"表す", "表わす"},
	{"子供", "子ども", "こども"},
	{"引っ越し", "引越し", "引越"},
	{"問い合わせ", "問合わせ", "問合せ"},
	{"取り扱い", "取扱い", "取扱"},
	{"お問い合わせ", "お問合せ"},
	{"分かる", "わかる", "判る", "解る"},
	{"できる", "出来る"},
	{"さまざま", "様々"},
	{"いろいろ", "色々"},
}

func phrasingConsistencyRule() Rule {
	return Rule{
		ID:       "phrasing-consistency",
		Version:  "2.0.0",
		Kind:     KindDocument,
		Citation: "JTF 1.1.2",
		Defaults: Config{Enabled: true, Severity: SeverityInfo},
		Document: runPhrasingConsistency,
	}
}

type variantHit struct {
	para int
	r    tokenize.TextRange
	form string
}

// runPhrasingConsistency scans the whole document per variant group and
// flags every occurrence of a minority spelling, suggesting the majority
// one. Longer forms are matched first so 引越 inside 引越し is not counted
// twice. Ties go to the group's canonical (first-listed) form.
func runPhrasingConsistency(paras []string, cfg Config) map[int][]Finding {
	out := make(map[int][]Finding)
	for _, group := range variantGroups {
		byLen := make([]string, len(group))
		copy(byLen, group)
		sort.SliceStable(byLen, func(i, j int) bool {
			return len([]rune(byLen[i])) > len([]rune(byLen[j]))
		})

		var hits []variantHit
		counts := make(map[string]int, len(group))
		for pi, text := range paras {
			runes := []rune(text)
			for i := 0; i < len(runes); {
				matched := false
				for _, form := range byLen {
					fr := []rune(form)
					if i+len(fr) <= len(runes) && string(runes[i:i+len(fr)]) == form {
						hits = append(hits, variantHit{pi, tokenize.NewRange(i, i+len(fr)), form})
						counts[form]++
						i += len(fr)
						matched = true
						break
					}
				}
				if !matched {
					i++
				}
			}
		}

		distinct := 0
		for _, form := range group {
			if counts[form] > 0 {
				distinct++
			}
		}
		if distinct < 2 {
			continue
		}

		// Strict > keeps the canonical form on an exact tie.
		winner, best := "", 0
		for _, form := range group {
			if counts[form] > best {
				winner, best = form, counts[form]
			}
		}

		for _, h := range hits {
			if h.form == winner {
				continue
			}
			out[h.para] = append(out[h.para], Finding{
				Message:    fmt.Sprintf("表記ゆれです: 「%s」が優勢です", winner),
				MessageEN:  fmt.Sprintf("inconsistent spelling; %q is dominant", winner),
				Range:      h.r,
				Matched:    h.form,
				Suggestion: winner,
			})
		}
	}
	return out
}

func styleConsistencyRule() Rule {
	return Rule{
		ID:       "style-consistency",
		Version:  "1.1.0",
		Kind:     KindDocument,
		Citation: "JTF 1.1.1",
		Defaults: Config{
			Enabled:  true,
			Severity: SeverityWarning,
			Options: map[string]any{
				"prefer": "polite", // tie-breaker: polite or plain
			},
		},
		DocumentTokens: runStyleConsistency,
	}
}

type styleEnding struct {
	para    int
	r       tokenize.TextRange
	polite  bool
	surface string
}

// runStyleConsistency counts です・ます against だ・である sentence endings
// across the document and flags every ending on the minority side. On an
// exact split the configured preference decides which side is "correct".
func runStyleConsistency(paras []string, toks [][]tokenize.Token, cfg Config) map[int][]Finding {
	var endings []styleEnding
	polite, plain := 0, 0
	for pi, tl := range toks {
		for _, t := range tl {
			if t.POS != "助動詞" {
				continue
			}
			switch t.Base {
			case "です", "ます":
				endings = append(endings, styleEnding{pi, t.Range, true, t.Surface})
				polite++
			case "だ":
				endings = append(endings, styleEnding{pi, t.Range, false, t.Surface})
				plain++
			}
		}
	}
	if polite == 0 || plain == 0 {
		return nil
	}

	politeWins := polite > plain
	if polite == plain {
		politeWins = cfg.String("prefer", "polite") == "polite"
	}

	out := make(map[int][]Finding)
	msg := "文体が混在しています（です・ます調に統一）"
	msgEN := "mixed writing style; unify on desu/masu"
	if !politeWins {
		msg = "文体が混在しています（だ・である調に統一）"
		msgEN = "mixed writing style; unify on da/dearu"
	}
	for _, e := range endings {
		if e.polite == politeWins {
			continue
		}
		out[e.para] = append(out[e.para], Finding{
			Message:   msg,
			MessageEN: msgEN,
			Range:     e.r,
			Matched:   e.surface,
		})
	}
	return out
}
