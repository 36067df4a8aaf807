package search

import "testing"

// ---------- Options + defaultConfig ----------
func TestOptionsAndDefaults(t *testing.T) {
	def := defaultConfig()
	if def.threshold != 0.5 {
		t.Fatalf("default threshold = %v", def.threshold)
	}
	if _, ok := def.stopwords["the"]; !ok {
		t.Fatalf("default stopwords missing 'the': %#v", def.stopwords)
	}

	cfg := def
	WithThreshold(0.8)(&cfg)
	if cfg.threshold != 0.8 {
		t.Fatalf("WithThreshold failed: %v", cfg.threshold)
	}
	WithThreshold(1.5)(&cfg) // no-op
	WithThreshold(-1)(&cfg)  // no-op
	if cfg.threshold != 0.8 {
		t.Fatalf("out of range threshold should be ignored: %v", cfg.threshold)
	}

	WithStopwords([]string{"  The ", "", "ÉDITION"})(&cfg)
	if _, ok := cfg.stopwords["edition"]; !ok {
		t.Fatalf("WithStopwords should normalize: %#v", cfg.stopwords)
	}
	WithStopwords(nil)(&cfg)
	if cfg.stopwords != nil {
		t.Fatalf("empty stopwords should disable removal")
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Pokémon™ Violet":      "pokemon violet",
		"ÖKAMI HD":             "okami hd",
		"Mario Kart® 8 Deluxe": "mario kart 8 deluxe",
		"":                     "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRank_OrderAndTies(t *testing.T) {
	m := NewMatcher()
	cands := []Candidate{
		{ID: "1", Title: "Hades II"},
		{ID: "2", Title: "Unrelated Puzzle"},
		{ID: "3", Title: "HADES"},
		{ID: "4", Title: "Hades™"},
	}

	got := m.Rank("Hades", cands)
	if len(got) != 3 {
		t.Fatalf("expected 3 scored candidates, got %d: %+v", len(got), got)
	}
	// Two perfect matches: the shorter title wins.
	if got[0].ID != "3" || got[1].ID != "4" || got[0].Score != 1 {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[2].ID != "1" || got[2].Score != 0.5 {
		t.Fatalf("expected partial match last: %+v", got[2])
	}
}

func TestRank_EmptyInputs(t *testing.T) {
	m := NewMatcher()
	if m.Rank("", []Candidate{{ID: "1", Title: "x"}}) != nil {
		t.Fatalf("empty query should rank nothing")
	}
	if m.Rank("zelda", nil) != nil {
		t.Fatalf("no candidates should rank nothing")
	}
	if m.Rank("the", []Candidate{{ID: "1", Title: "The"}}) != nil {
		t.Fatalf("stop-word-only query should rank nothing")
	}
}

func TestBest_Threshold(t *testing.T) {
	cands := []Candidate{
		{ID: "70010000000001", Title: "The Legend of Zelda: Tears of the Kingdom"},
		{ID: "70010000000002", Title: "Zelda Puzzle Pack"},
	}

	m := NewMatcher()
	best, ok := m.Best("Legend of Zelda Tears of the Kingdom", cands)
	if !ok || best.ID != "70010000000001" {
		t.Fatalf("expected first candidate, got %+v ok=%v", best, ok)
	}

	if _, ok := m.Best("Metroid Dread", cands); ok {
		t.Fatalf("no overlap must not match")
	}

	strict := NewMatcher(WithThreshold(0.9))
	if _, ok := strict.Best("Zelda", cands); ok {
		t.Fatalf("partial match below threshold must not match")
	}
}
