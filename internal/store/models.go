// Package store provides SQLite-backed persistence for gokosei: ignore
// records and user-dictionary entries survive across sessions.
package store

// IgnoreRecord marks a finding the user dismissed. An empty ParagraphHash
// means the record applies document-wide; otherwise it binds to the content
// hash of one paragraph and stops applying once that paragraph changes.
type IgnoreRecord struct {
	ID            int64  `json:"id"`
	RuleID        string `json:"ruleId"`
	Matched       string `json:"matched"`
	ParagraphHash string `json:"paragraphHash,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
}

// UserDictEntry is one user-dictionary word.
type UserDictEntry struct {
	Surface   string `json:"surface"`
	POS       string `json:"pos"`
	Reading   string `json:"reading"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}
