package ingest

import "testing"

func TestNormalizeCell(t *testing.T) {
	cases := map[string]string{
		"  Ball   in\tdirt ": "Ball in dirt",
		"９５.２":             "95.2",
		"Ａｃｕñａ":            "Acuña",
		"line\nbreak":       "line break",
		"":                  "",
	}
	for in, want := range cases {
		if got := NormalizeCell(in); got != want {
			t.Fatalf("NormalizeCell(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRowHashStability(t *testing.T) {
	base := RowHash([]string{"1", "Ball", "95.2"})

	if got := RowHash([]string{" 1 ", "Ball  ", "95.2"}); got != base {
		t.Fatalf("expected whitespace-insensitive hash")
	}
	if got := RowHash([]string{"１", "Ball", "９５.２"}); got != base {
		t.Fatalf("expected full-width digits to hash like ASCII")
	}
	if got := RowHash([]string{"1", "Strike", "95.2"}); got == base {
		t.Fatalf("expected different content to change the hash")
	}
	if RowHash([]string{"a b", "c"}) == RowHash([]string{"a", "b c"}) {
		t.Fatalf("expected cell boundaries to matter")
	}
	if len(base) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(base))
	}
}
