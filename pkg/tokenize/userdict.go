package tokenize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hack-pad/hackpadfs"
)

// UserDictEntry is one user-supplied word. Merging collapses the analyzer's
// segmentation of the surface into a single token carrying this entry's
// category and reading.
type UserDictEntry struct {
	Surface string
	POS     string
	Reading string
}

// UserDict holds user-supplied words for post-analysis merging.
type UserDict struct {
	entries map[string]UserDictEntry
	maxLen  int // longest entry surface in runes, bounds the merge window
}

// NewUserDict builds a dictionary from entries. Blank surfaces are ignored.
func NewUserDict(entries []UserDictEntry) *UserDict {
	d := &UserDict{entries: make(map[string]UserDictEntry, len(entries))}
	for _, e := range entries {
		if e.Surface == "" {
			continue
		}
		if e.POS == "" {
			e.POS = "名詞"
		}
		d.entries[e.Surface] = e
		if n := len([]rune(e.Surface)); n > d.maxLen {
			d.maxLen = n
		}
	}
	return d
}

// Len returns the number of entries.
func (d *UserDict) Len() int {
	return len(d.entries)
}

// Entries returns the entries sorted by surface form.
func (d *UserDict) Entries() []UserDictEntry {
	out := make([]UserDictEntry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Surface < out[j].Surface })
	return out
}

// Merge scans tokens left to right. At each position it tries candidate
// dictionary words longest-first by concatenating consecutive token
// surfaces; on an exact match the run collapses into one token carrying the
// entry's category and reading. Runs after offset remapping, so the merged
// span is simply first.Start to last.End in original coordinates.
func (d *UserDict) Merge(toks []Token) []Token {
	if d == nil || len(d.entries) == 0 || len(toks) == 0 {
		return toks
	}

	out := make([]Token, 0, len(toks))
	i := 0
	for i < len(toks) {
		merged, consumed := d.matchAt(toks, i)
		if consumed > 0 {
			out = append(out, merged)
			i += consumed
			continue
		}
		out = append(out, toks[i])
		i++
	}
	return out
}

// matchAt tries the longest run of tokens starting at i whose concatenated
// surfaces form a dictionary entry.
func (d *UserDict) matchAt(toks []Token, i int) (Token, int) {
	var b strings.Builder
	runLen := 0
	// Find the widest window that could still match.
	end := i
	for end < len(toks) && runLen < d.maxLen {
		runLen += len([]rune(toks[end].Surface))
		end++
	}

	for j := end; j > i; j-- {
		b.Reset()
		for k := i; k < j; k++ {
			b.WriteString(toks[k].Surface)
		}
		entry, ok := d.entries[b.String()]
		if !ok {
			continue
		}
		return Token{
			Surface: entry.Surface,
			POS:     entry.POS,
			POSSub:  "固有名詞",
			Base:    entry.Surface,
			Reading: entry.Reading,
			Range:   NewRange(toks[i].Range.Start, toks[j-1].Range.End),
		}, j - i
	}
	return Token{}, 0
}

// LoadUserDict reads a dictionary file through the given filesystem. The
// format is one entry per line, "surface,pos,reading", with pos and reading
// optional; '#' starts a comment. The filesystem is injected so the WASM
// host can pass an IndexedDB-backed FS and the CLI an OS one.
func LoadUserDict(fsys hackpadfs.FS, path string) (*UserDict, error) {
	data, err := hackpadfs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("tokenize: user dict %q: %w", path, err)
	}

	var entries []UserDictEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ",", 3)
		e := UserDictEntry{Surface: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			e.POS = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			e.Reading = strings.TrimSpace(parts[2])
		}
		entries = append(entries, e)
	}
	return NewUserDict(entries), nil
}
