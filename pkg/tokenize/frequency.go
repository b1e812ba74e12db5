package tokenize

import "sort"

// DefaultExcludedCategories are the functional categories dropped from
// word-frequency reports. Matched against both the primary and secondary
// category of each token.
var DefaultExcludedCategories = []string{
	"助詞", "助動詞", "記号", "補助記号", "フィラー", "数", "代名詞", "接続詞",
}

// FrequencyOptions controls the word-frequency variant.
type FrequencyOptions struct {
	// ExcludeCategories overrides DefaultExcludedCategories when non-nil.
	ExcludeCategories []string
	// Limit truncates the result; zero means no limit.
	Limit int
}

// WordCount is one row of a frequency report.
type WordCount struct {
	Word  string // dictionary form, falling back to surface form
	POS   string
	Count int
}

// Frequency tokenizes a full document and counts content words grouped by
// dictionary form, sorted descending by count. Ties order lexicographically
// so identical input always yields identical output.
func (s *Service) Frequency(paragraphs []string, opts FrequencyOptions) ([]WordCount, error) {
	excluded := opts.ExcludeCategories
	if excluded == nil {
		excluded = DefaultExcludedCategories
	}
	skip := make(map[string]bool, len(excluded))
	for _, c := range excluded {
		skip[c] = true
	}

	counts := make(map[string]*WordCount)
	for _, text := range paragraphs {
		toks, err := s.Tokenize(text)
		if err != nil {
			return nil, err
		}
		for _, t := range toks {
			if skip[t.POS] || skip[t.POSSub] {
				continue
			}
			word := t.Base
			if word == "" {
				word = t.Surface
			}
			if word == "" {
				continue
			}
			if wc, ok := counts[word]; ok {
				wc.Count++
			} else {
				counts[word] = &WordCount{Word: word, POS: t.POS, Count: 1}
			}
		}
	}

	out := make([]WordCount, 0, len(counts))
	for _, wc := range counts {
		out = append(out, *wc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
