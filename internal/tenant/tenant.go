// Package tenant owns the per-chat moderation state: watchlists,
// feature toggles, greeting content and the escalation-chat binding.
package tenant

import (
	"math/rand/v2"

	"github.com/saiinc/lynxguard/internal/content"
)

// Known feature-toggle names. Anything else in a persisted config is a
// load-time warning and is dropped from the typed table.
const (
	ToggleFilter    = "filter"     // profanity trigger category
	TogglePing      = "ping"       // admin-ping trigger category
	ToggleDelete    = "delete"     // deletion-word category
	ToggleHello     = "hello"      // greet joining members
	ToggleGoodbye   = "goodbye"    // announce leaving members
	ToggleNightMute = "night_mute" // scheduled quiet hours
	ToggleQA        = "qa"         // copy anonymous-admin posts to support chat
	ToggleRP        = "rp"         // role-play verb replies
	ToggleAntispam  = "antispam"   // link checks on forwarded-post comments
	ToggleHelpers   = "helpers"    // keyword-triggered canned replies
)

// KnownToggles is the validation set for persisted configs.
var KnownToggles = map[string]bool{
	ToggleFilter:    true,
	TogglePing:      true,
	ToggleDelete:    true,
	ToggleHello:     true,
	ToggleGoodbye:   true,
	ToggleNightMute: true,
	ToggleQA:        true,
	ToggleRP:        true,
	ToggleAntispam:  true,
	ToggleHelpers:   true,
}

// Toggle is one feature switch plus the replies announced when an admin
// flips it. State is the effective value; a transient override keeps
// the persisted value in saved so config() never writes the override.
type Toggle struct {
	State     bool
	AnswerOn  string
	AnswerOff string

	overridden bool
	saved      bool
}

// Helper is one keyword-triggered canned reply.
type Helper struct {
	Command string
	Content string
	Delay   bool
}

// Tenant is the full moderation state of one chat community. A Tenant
// is immutable after publication through the registry; every change
// builds a fresh record and swaps it in, so an in-flight pipeline run
// always observes one consistent snapshot.
type Tenant struct {
	ID            int64
	SupportChatID int64
	Toggles       map[string]Toggle
	Profanity     []string
	Ping          []string
	Deletion      []string
	Hello         string // with {member_name} placeholder
	HelloSpoilers string
	Goodbyes      []string
	RolePlay      map[string]string
	Helpers       []Helper
}

// Enabled reports whether a named toggle is on. Unknown or absent
// toggles are off.
func (t *Tenant) Enabled(name string) bool {
	return t.Toggles[name].State
}

// RandomGoodbye picks one farewell, or "" when none are configured.
func (t *Tenant) RandomGoodbye() string {
	if len(t.Goodbyes) == 0 {
		return ""
	}
	return t.Goodbyes[rand.IntN(len(t.Goodbyes))]
}

// clone deep-copies the tenant so a mutation never leaks into the
// published snapshot.
func (t *Tenant) clone() *Tenant {
	c := *t
	c.Toggles = make(map[string]Toggle, len(t.Toggles))
	for k, v := range t.Toggles {
		c.Toggles[k] = v
	}
	return &c
}

// config converts the tenant back to its persisted form.
func (t *Tenant) config() content.TenantConfig {
	cfg := content.TenantConfig{
		SupportChat:   t.SupportChatID,
		AdminCommands: make(map[string]content.ToggleConfig, len(t.Toggles)),
	}
	for name, tog := range t.Toggles {
		state := tog.State
		if tog.overridden {
			state = tog.saved
		}
		cfg.AdminCommands[name] = content.ToggleConfig{
			State:     state,
			AnswerOn:  tog.AnswerOn,
			AnswerOff: tog.AnswerOff,
		}
	}
	return cfg
}
