// Package domain defines the core lexicon types, normalization rules, and
// the error taxonomy shared by the indexing and query pipelines. It acts as
// the validation gate at pipeline entry points.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Placeholder is the glyph used in the source workbook to mean
// "repeat the headword" inside a gloss.
const Placeholder = "～"

// RawRow is one tabular row as read from the lexicon workbook, before
// normalization. Line is the 1-based row number, kept for error reporting.
type RawRow struct {
	Word   string
	GlossA string
	GlossB string
	IPA    string
	PX     string
	Line   int
}

// LexiconEntry is a canonical lexicon record. Meaning never contains the
// placeholder glyph; ID is derived from content, not row position, so
// re-indexing the same lexeme is idempotent.
type LexiconEntry struct {
	ID      string `json:"id"`
	Word    string `json:"word"`
	Meaning string `json:"meaning"`
	IPA     string `json:"ipa"`
	PX      string `json:"px"`
}

// SearchResult is a single similarity hit: the stored entry plus its score
// under the collection's distance metric.
type SearchResult struct {
	Entry LexiconEntry `json:"entry"`
	Score float32      `json:"score"`
}

// EntryID derives a stable point ID from the headword. dup disambiguates
// repeated headwords (0 for the first occurrence) so that duplicates get
// distinct but still deterministic IDs.
func EntryID(word string, dup int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("pxlex:%s:%d", word, dup))).String()
}

// EmbeddingInput is the text embedded for an entry at indexing time:
// headword and meaning joined by a single space. Queries embed the raw
// question text alone.
func EmbeddingInput(e LexiconEntry) string {
	return e.Word + " " + e.Meaning
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged message of a generation prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
