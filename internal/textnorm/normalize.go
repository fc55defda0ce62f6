// Package textnorm canonicalizes adversarially obfuscated chat text so
// that lexicon matching sees through character stretching, homoglyph
// swaps and decorative punctuation.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// substitution maps a class of look-alike characters back to one
// canonical Russian letter. Order matters: each pass runs on the output
// of the previous one, and the table is applied exactly once, never to a
// fixed point.
type substitution struct {
	canon string
	class *regexp.Regexp
}

var subTable = []substitution{
	{"а", regexp.MustCompile(`[@аa]`)},
	{"б", regexp.MustCompile(`[б6b]`)},
	{"в", regexp.MustCompile(`[вbv]`)},
	{"г", regexp.MustCompile(`[гrg]`)},
	{"д", regexp.MustCompile(`[дd]`)},
	{"е", regexp.MustCompile(`[еeё]`)},
	{"ж", regexp.MustCompile(`[жz*]`)},
	{"з", regexp.MustCompile(`[з3z]`)},
	{"и", regexp.MustCompile(`[иui]`)},
	{"й", regexp.MustCompile(`[йui]`)},
	{"к", regexp.MustCompile(`[кk]`)},
	{"л", regexp.MustCompile(`[лl]`)},
	{"м", regexp.MustCompile(`[мm]`)},
	{"н", regexp.MustCompile(`[нhn]`)},
	{"о", regexp.MustCompile(`[оo0]`)},
	{"п", regexp.MustCompile(`[пnp]`)},
	{"р", regexp.MustCompile(`[рrp]`)},
	{"с", regexp.MustCompile(`[сcs5$]`)},
	{"т", regexp.MustCompile(`[тmt]`)},
	{"у", regexp.MustCompile(`[уyu]`)},
	{"ф", regexp.MustCompile(`[фf]`)},
	{"х", regexp.MustCompile(`[хxh]`)},
	{"ц", regexp.MustCompile(`[цcu]`)},
	{"ч", regexp.MustCompile(`[чch]`)},
	{"ш", regexp.MustCompile(`[шщ]`)},
	{"ь", regexp.MustCompile(`[ьb]`)},
	{"ы", regexp.MustCompile(`[ыi]`)},
	{"э", regexp.MustCompile(`[эe]`)},
	{"ю", regexp.MustCompile(`[юyu]`)},
	{"я", regexp.MustCompile(`[яr]`)},
	{" ", regexp.MustCompile(`[.,!?&)(\\/*_"';®-]`)},
}

// Normalize canonicalizes a single token: lower-case, fold combining
// marks ("а́" → "а"), collapse immediately repeated characters
// ("прииивет" → "привет"), then run the look-alike substitution table.
// Characters outside every substitution class pass through unchanged.
// Empty input is a no-op.
func Normalize(word string) string {
	if word == "" {
		return ""
	}
	w := strings.ToLower(word)
	w = foldMarks(w)
	w = collapseRepeats(w)
	for _, sub := range subTable {
		w = sub.class.ReplaceAllString(w, sub.canon)
	}
	return w
}

// foldMarks strips the combining acute accent so stressed vowels fold
// into their base letter ("спа́м" → "спам"). Only U+0301 is removed:
// a full combining-mark sweep would decompose й into и and the breve
// would never recompose.
func foldMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isStressMark)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isStressMark(r rune) bool { return r == '\u0301' }

// collapseRepeats drops every character equal to its predecessor, so a
// stretched run collapses to one character. A letter reappearing later
// in the word is untouched; this is not full de-duplication.
func collapseRepeats(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
