package domain

import "strings"

// Normalize converts a raw workbook row into a canonical LexiconEntry.
//
// The gloss is split across two source columns: the second, when present,
// is concatenated onto the first. An empty gloss falls back to the headword
// itself. Every occurrence of the placeholder glyph in the gloss is replaced
// with the headword. A row without a headword is rejected, since the
// headword is the primary key material.
func Normalize(row RawRow) (LexiconEntry, error) {
	word := strings.TrimSpace(row.Word)
	if word == "" {
		return LexiconEntry{}, &RowError{Line: row.Line, Word: row.Word, Err: ErrMissingHeadword}
	}

	meaning := row.GlossA
	if row.GlossB != "" {
		meaning = row.GlossA + row.GlossB
	}
	if strings.TrimSpace(meaning) == "" {
		meaning = word
	}
	meaning = strings.ReplaceAll(meaning, Placeholder, word)

	return LexiconEntry{
		Word:    word,
		Meaning: meaning,
		IPA:     row.IPA,
		PX:      row.PX,
	}, nil
}
