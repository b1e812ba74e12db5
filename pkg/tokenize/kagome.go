package tokenize

import (
	"fmt"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// NewKagomeAnalyzer builds the default analyzer on the bundled IPA
// dictionary. Loading the dictionary is the slow part, which is why this is
// a Service factory rather than a constructor argument.
func NewKagomeAnalyzer() (Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("tokenize: kagome: %w", err)
	}
	return &kagomeAnalyzer{t: t}, nil
}

type kagomeAnalyzer struct {
	t *tokenizer.Tokenizer
}

func (k *kagomeAnalyzer) Tokenize(text string) []Morpheme {
	ktoks := k.t.Tokenize(text)
	out := make([]Morpheme, 0, len(ktoks))
	for _, kt := range ktoks {
		m := Morpheme{
			Surface: kt.Surface,
			POS:     kt.POS(),
		}
		if base, ok := kt.BaseForm(); ok {
			m.Base = base
		}
		if reading, ok := kt.Reading(); ok {
			m.Reading = reading
		}
		if features := kt.Features(); len(features) > 5 {
			m.CType = features[4]
			m.CForm = features[5]
		}
		out = append(out, m)
	}
	return out
}
