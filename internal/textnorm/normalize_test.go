package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lowercase", "ПРИВЕТ", "привет"},
		{"stretched", "Приииивет", "привет"},
		{"homoglyph at", "сп@м", "спам"},
		{"homoglyph dollar", "$пам", "спам"},
		{"latin o and zero", "к0т", "кот"},
		{"stretch plus homoglyph", "СПАААМ", "спам"},
		{"stress mark folds", "спа́м", "спам"},
		{"short i survives", "чай", "чай"},
		{"stretched short i", "чаааай", "чай"},
		{"yo folds to ye", "ёлка", "елка"},
		{"passthrough", "просто", "просто"},
		{"punctuation only", "?!.", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"спам", "Приииивет", "сп@м", "hello", "к0шка", "чай"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestNormalizeObfuscationRoundTrip(t *testing.T) {
	// Each character replaced by a member of its own substitution class
	// must fold back to the canonical lexicon form.
	tests := []struct {
		obfuscated string
		canonical  string
	}{
		{"cп@m", "спам"},
		{"реклaмa", "реклама"},
		{"kaзuно", "казино"},
		{"aдmuн", "админ"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.obfuscated); got != tt.canonical {
			t.Errorf("Normalize(%q) = %q, want %q", tt.obfuscated, got, tt.canonical)
		}
	}
}

func TestCollapseRepeats(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a", "a"},
		{"aab", "ab"},
		{"heeeellooo", "helo"},
		{"abab", "abab"}, // reappearing letters survive, only runs collapse
	}
	for _, tt := range tests {
		if got := collapseRepeats(tt.in); got != tt.want {
			t.Errorf("collapseRepeats(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
