package rule

import (
	"fmt"
	"strings"
	"unicode/utf8"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"

	"github.com/kakimori/gokosei/pkg/tokenize"
)

func commaDensityRule() Rule {
	return Rule{
		ID:       "comma-density",
		Version:  "1.1.0",
		Kind:     KindLexical,
		Citation: "JTF 4.1.3",
		Defaults: Config{
			Enabled:  true,
			Severity: SeverityWarning,
			Options: map[string]any{
				"max_ratio":  0.125, // commas per rune
				"min_length": 8,     // sentences shorter than this never flag
			},
		},
		Lexical: runCommaDensity,
	}
}

func runCommaDensity(text string, cfg Config) []Finding {
	maxRatio := cfg.Float("max_ratio", 0.125)
	minLen := cfg.Int("min_length", 8)

	var out []Finding
	for _, sr := range tokenize.SplitSentences(text) {
		sent := sr.Slice(text)
		runes := []rune(sent)
		if len(runes) < minLen {
			continue
		}
		commas := 0
		for _, r := range runes {
			if r == '、' {
				commas++
			}
		}
		if commas == 0 {
			continue
		}
		if float64(commas)/float64(len(runes)) > maxRatio {
			out = append(out, Finding{
				Message:   fmt.Sprintf("一文に読点が多すぎます（%d個）", commas),
				MessageEN: fmt.Sprintf("too many commas in one sentence (%d)", commas),
				Range:     sr,
				Matched:   sent,
			})
		}
	}
	return out
}

func longSentenceRule() Rule {
	return Rule{
		ID:       "long-sentence",
		Version:  "1.0.0",
		Kind:     KindLexical,
		Citation: "JTF 4.1.1",
		Defaults: Config{
			Enabled:  true,
			Severity: SeverityInfo,
			Options: map[string]any{
				"max_length": 50, // runes, flagged only when the sentence has no comma
			},
		},
		Lexical: runLongSentence,
	}
}

func runLongSentence(text string, cfg Config) []Finding {
	maxLen := cfg.Int("max_length", 50)

	var out []Finding
	for _, sr := range tokenize.SplitSentences(text) {
		if sr.Len() < maxLen {
			continue
		}
		sent := sr.Slice(text)
		if strings.ContainsRune(sent, '、') {
			continue
		}
		out = append(out, Finding{
			Message:   fmt.Sprintf("読点のない長い文です（%d文字）", sr.Len()),
			MessageEN: fmt.Sprintf("long sentence without a comma (%d chars)", sr.Len()),
			Range:     sr,
			Matched:   sent,
		})
	}
	return out
}

// redundantEntry pairs a wordy phrase with its tighter replacement.
type redundantEntry struct {
	Phrase      string
	Replacement string
}

var redundantPhrases = []redundantEntry{
	{"頭痛が痛い", "頭が痛い"},
	{"馬から落馬", "落馬"},
	{"後で後悔", "後悔"},
	{"まず最初に", "最初に"},
	{"一番最初", "最初"},
	{"一番最後", "最後"},
	{"必ず必要", "必要"},
	{"返事を返す", "返事をする"},
	{"違和感を感じ", "違和感を覚え"},
	{"過半数を超え", "過半数に達し"},
	{"被害を被", "被害を受け"},
	{"することができます", "できます"},
	{"することが可能です", "できます"},
	{"ということになります", "となります"},
}

func redundantExpressionRule() Rule {
	patterns := make([]string, len(redundantPhrases))
	for i, e := range redundantPhrases {
		patterns[i] = e.Phrase
	}
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		MatchKind: ahocorasick.LeftMostLongestMatch,
	})
	ac := builder.Build(patterns)

	return Rule{
		ID:       "redundant-expression",
		Version:  "1.2.0",
		Kind:     KindLexical,
		Citation: "JTF 4.3.2",
		Defaults: Config{Enabled: true, Severity: SeverityWarning},
		Lexical: func(text string, cfg Config) []Finding {
			var out []Finding
			for _, m := range ac.FindAll(text) {
				matched := text[m.Start():m.End()]
				entry := redundantPhrases[m.Pattern()]
				// Automaton offsets are bytes; spans are rune-indexed.
				start := utf8.RuneCountInString(text[:m.Start()])
				f := Finding{
					Message:   fmt.Sprintf("冗長な表現です: 「%s」", matched),
					MessageEN: fmt.Sprintf("redundant expression: %q", matched),
					Range:     tokenize.NewRange(start, start+utf8.RuneCountInString(matched)),
					Matched:   matched,
				}
				if entry.Replacement != "" {
					f.Suggestion = entry.Replacement
				}
				out = append(out, f)
			}
			return out
		},
	}
}

func ellipsisStyleRule() Rule {
	return Rule{
		ID:       "ellipsis-style",
		Version:  "1.0.0",
		Kind:     KindLexical,
		Citation: "JTF 2.1.9",
		Defaults: Config{
			Enabled:        true,
			Severity:       SeverityInfo,
			SkipValidation: true, // purely orthographic, no context needed
		},
		Lexical: runEllipsisStyle,
	}
}

// runEllipsisStyle flags runs of 三点リーダー of odd length. Convention is
// pairs: ……, not … or ……….
func runEllipsisStyle(text string, cfg Config) []Finding {
	runes := []rune(text)
	var out []Finding
	for i := 0; i < len(runes); {
		if runes[i] != '…' {
			i++
			continue
		}
		j := i
		for j < len(runes) && runes[j] == '…' {
			j++
		}
		if (j-i)%2 != 0 {
			out = append(out, Finding{
				Message:    "三点リーダーは偶数個で使います",
				MessageEN:  "ellipsis should come in pairs",
				Range:      tokenize.NewRange(i, j),
				Matched:    strings.Repeat("…", j-i),
				Suggestion: strings.Repeat("…", j-i+1),
			})
		}
		i = j
	}
	return out
}
