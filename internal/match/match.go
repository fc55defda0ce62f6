// Package match scores normalized message tokens against per-tenant
// watchlists using an order-independent fuzzy similarity ratio.
package match

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/saiinc/lynxguard/internal/tenant"
	"github.com/saiinc/lynxguard/internal/textnorm"
)

// Category is one trigger watchlist with its own acceptance threshold.
type Category string

const (
	CategoryPing      Category = "ping"
	CategoryProfanity Category = "profanity"
	CategoryDeletion  Category = "deletion"
)

// Acceptance thresholds per category. Ping and deletion demand an exact
// match after normalization; profanity tolerates edit-distance noise.
const (
	ThresholdPing      = 100
	ThresholdProfanity = 87
	ThresholdDeletion  = 100
)

// Match is the verdict for one token that cleared its category threshold.
type Match struct {
	Token    string // normalized token that matched
	Score    int    // 0..100
	Entry    string // lexicon entry it matched against
	Category Category
}

// Score returns the token-sort similarity of a and b scaled to 0..100.
// Whitespace-split tokens of each string are sorted and rejoined before
// the edit-distance ratio, so identical token multisets score 100
// regardless of order.
func Score(a, b string) int {
	return fuzzy.TokenSortRatio(a, b)
}

// FilterWord scans the message token by token and returns the first
// lexicon entry at or above its category threshold, ping list first,
// profanity list second, in lexicon order. Categories whose tenant
// toggle is off are not scored at all. Returns nil when nothing clears
// a threshold.
func FilterWord(text string, t *tenant.Tenant) *Match {
	checkPing := t.Enabled(tenant.TogglePing)
	checkProfanity := t.Enabled(tenant.ToggleFilter)
	if !checkPing && !checkProfanity {
		return nil
	}
	for _, tok := range strings.Fields(text) {
		w := textnorm.Normalize(tok)
		if w == "" {
			continue
		}
		if checkPing {
			if m := scanLexicon(w, t.Ping, ThresholdPing, CategoryPing); m != nil {
				return m
			}
		}
		if checkProfanity {
			if m := scanLexicon(w, t.Profanity, ThresholdProfanity, CategoryProfanity); m != nil {
				return m
			}
		}
	}
	return nil
}

// DeleteWord checks the message against the tenant's deletion list.
// Exact match after normalization only.
func DeleteWord(text string, t *tenant.Tenant) *Match {
	if !t.Enabled(tenant.ToggleDelete) {
		return nil
	}
	for _, tok := range strings.Fields(text) {
		w := textnorm.Normalize(tok)
		if w == "" {
			continue
		}
		if m := scanLexicon(w, t.Deletion, ThresholdDeletion, CategoryDeletion); m != nil {
			return m
		}
	}
	return nil
}

// scanLexicon short-circuits on the first entry over threshold. It does
// not search for the best match; latency stays bounded by lexicon size.
func scanLexicon(word string, lexicon []string, threshold int, cat Category) *Match {
	for _, entry := range lexicon {
		if s := Score(entry, word); s >= threshold {
			return &Match{Token: word, Score: s, Entry: entry, Category: cat}
		}
	}
	return nil
}
