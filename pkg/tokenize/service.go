package tokenize

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kakimori/gokosei/pkg/cache"
)

// ErrNotInitialized is returned by Tokenize before Init has completed.
// The caller degrades to lexical-only analysis rather than failing the pass.
var ErrNotInitialized = errors.New("tokenize: analyzer not initialized")

// DefaultCacheSize bounds the token cache per service instance.
const DefaultCacheSize = 256

// Service turns paragraphs into character-accurate tokens.
//
// Pipeline: clean noise characters (tracking a position map), run the
// analyzer on the cleaned text, recompute offsets by accumulating surface
// lengths, remap spans back to original coordinates, merge user-dictionary
// entries, and cache the result keyed by the original text.
type Service struct {
	factory func() (Analyzer, error)
	group   singleflight.Group

	mu       sync.RWMutex
	analyzer Analyzer
	userDict *UserDict

	tokens *cache.Hashed[[]Token]
}

// NewService creates a Service. The factory performs the slow analyzer
// construction (dictionary loading) and is invoked from Init, never inline.
func NewService(factory func() (Analyzer, error)) *Service {
	return &Service{
		factory: factory,
		tokens:  cache.NewHashed[[]Token](DefaultCacheSize, nil),
	}
}

// Init constructs the analyzer. It is idempotent, and concurrent callers
// share a single in-flight construction rather than starting redundant
// loads. The context only bounds this caller's wait; a load in progress
// completes regardless.
func (s *Service) Init(ctx context.Context) error {
	s.mu.RLock()
	ready := s.analyzer != nil
	s.mu.RUnlock()
	if ready {
		return nil
	}

	ch := s.group.DoChan("init", func() (interface{}, error) {
		a, err := s.factory()
		if err != nil {
			return nil, fmt.Errorf("tokenize: analyzer init: %w", err)
		}
		s.mu.Lock()
		s.analyzer = a
		s.mu.Unlock()
		return a, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Ready reports whether Init has completed successfully.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyzer != nil
}

// SetUserDict installs the user dictionary applied after offset remapping.
// The token cache is cleared since merged results depend on the dictionary.
func (s *Service) SetUserDict(d *UserDict) {
	s.mu.Lock()
	s.userDict = d
	s.mu.Unlock()
	s.tokens.Clear()
}

// Tokenize returns the tokens for a paragraph. Identical input yields
// content-equal output, and repeated calls are served from cache without
// re-invoking the analyzer.
func (s *Service) Tokenize(text string) ([]Token, error) {
	if cached, ok := s.tokens.Get(text); ok {
		return cached, nil
	}

	s.mu.RLock()
	analyzer := s.analyzer
	userDict := s.userDict
	s.mu.RUnlock()
	if analyzer == nil {
		return nil, ErrNotInitialized
	}

	cleaned, posMap := Clean(text)
	morphs := analyzer.Tokenize(cleaned)
	toks := assemble(morphs, posMap)
	if userDict != nil {
		toks = userDict.Merge(toks)
	}

	s.tokens.Set(text, toks)
	return toks, nil
}

// ClearCache drops all cached token sequences.
func (s *Service) ClearCache() {
	s.tokens.Clear()
}

// CacheStats returns token cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.tokens.Stats()
}

// assemble recomputes token offsets by accumulating surface-form rune
// lengths over the cleaned text, then remaps each span through the position
// map back to original coordinates. Analyzer-native offsets are never used.
func assemble(morphs []Morpheme, posMap []int) []Token {
	toks := make([]Token, 0, len(morphs))
	pos := 0
	for _, m := range morphs {
		n := len([]rune(m.Surface))
		start, end := pos, pos+n
		pos = end

		if start >= len(posMap) || end >= len(posMap) {
			// Analyzer produced more text than it was given; stop rather
			// than emit spans pointing outside the paragraph.
			break
		}

		// The exclusive end maps through the token's last rune; noise
		// stripped between tokens stays outside every span. The sentinel
		// only serves empty surfaces.
		origStart := posMap[start]
		origEnd := origStart
		if n > 0 {
			origEnd = posMap[end-1] + 1
		}

		t := Token{
			Surface: m.Surface,
			Base:    m.Base,
			Reading: m.Reading,
			CType:   m.CType,
			CForm:   m.CForm,
			Range:   NewRange(origStart, origEnd),
		}
		if len(m.POS) > 0 {
			t.POS = m.POS[0]
		}
		if len(m.POS) > 1 {
			t.POSSub = m.POS[1]
		}
		if t.Base == "" {
			t.Base = t.Surface
		}
		toks = append(toks, t)
	}
	return toks
}
