package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeCombinesGlosses(t *testing.T) {
	entry, err := Normalize(RawRow{Word: "阿肥土", GlossA: "大胖子，", GlossB: "含戏谑意", IPA: "ap1 pui21 thɔu453", PX: "a1 bui2 tou3", Line: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Meaning != "大胖子，含戏谑意" {
		t.Fatalf("meaning = %q", entry.Meaning)
	}
}

func TestNormalizeSingleGlossExact(t *testing.T) {
	// No second gloss column: meaning must equal the first column exactly.
	entry, err := Normalize(RawRow{Word: "阿肥", GlossA: "胖子", IPA: "ap1 pui13", PX: "a1 bui2", Line: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Meaning != "胖子" {
		t.Fatalf("meaning = %q, want %q", entry.Meaning, "胖子")
	}
	if entry.IPA != "ap1 pui13" || entry.PX != "a1 bui2" {
		t.Fatalf("transcriptions not carried: %+v", entry)
	}
}

func TestNormalizeReplacesPlaceholder(t *testing.T) {
	cases := []struct {
		glossA, glossB string
		want           string
	}{
		{"～的样子", "", "白肥的样子"},
		{"像～一样", "，很～", "像白肥一样，很白肥"},
		{"～～", "", "白肥白肥"},
	}
	for _, tc := range cases {
		entry, err := Normalize(RawRow{Word: "白肥", GlossA: tc.glossA, GlossB: tc.glossB, Line: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(entry.Meaning, Placeholder) {
			t.Fatalf("placeholder survived in %q", entry.Meaning)
		}
		if entry.Meaning != tc.want {
			t.Fatalf("meaning = %q, want %q", entry.Meaning, tc.want)
		}
	}
}

func TestNormalizeEmptyGlossFallsBackToWord(t *testing.T) {
	entry, err := Normalize(RawRow{Word: "阿肥", Line: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Meaning != "阿肥" {
		t.Fatalf("meaning = %q, want headword fallback", entry.Meaning)
	}
}

func TestNormalizeRejectsMissingHeadword(t *testing.T) {
	_, err := Normalize(RawRow{GlossA: "胖子", Line: 7})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrMissingHeadword) {
		t.Fatalf("expected ErrMissingHeadword, got %v", err)
	}
	var re *RowError
	if !errors.As(err, &re) || re.Line != 7 {
		t.Fatalf("expected RowError with line 7, got %v", err)
	}
}

func TestEntryIDStable(t *testing.T) {
	a := EntryID("阿肥", 0)
	b := EntryID("阿肥", 0)
	if a != b {
		t.Fatalf("same word produced different IDs: %s vs %s", a, b)
	}
	if EntryID("阿肥", 1) == a {
		t.Fatal("disambiguator must change the ID")
	}
	if EntryID("白肥", 0) == a {
		t.Fatal("different words must get different IDs")
	}
}

func TestEmbeddingInput(t *testing.T) {
	got := EmbeddingInput(LexiconEntry{Word: "阿肥", Meaning: "胖子"})
	if got != "阿肥 胖子" {
		t.Fatalf("embedding input = %q", got)
	}
}
