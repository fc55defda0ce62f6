package tenant

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/saiinc/lynxguard/internal/content"
)

// ErrUnknownTenant is returned by Resolve for a chat id that is neither
// a primary chat nor a bound support chat. Resolve never creates a
// tenant implicitly.
var ErrUnknownTenant = errors.New("unknown tenant")

// Registry owns all Tenant records and the support-chat reverse index.
// Records are replaced wholesale, never mutated in place.
type Registry struct {
	store content.Store

	mu        sync.RWMutex
	tenants   map[int64]*Tenant
	bySupport map[int64]int64 // support chat id → tenant id
}

func NewRegistry(store content.Store) *Registry {
	return &Registry{
		store:     store,
		tenants:   map[int64]*Tenant{},
		bySupport: map[int64]int64{},
	}
}

// LoadAll bulk-loads every tenant directory. Tenants whose config fails
// to load are skipped with a log record; everything else keeps loading.
func (r *Registry) LoadAll() error {
	ids, err := r.store.TenantIDs()
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	loaded := make(map[int64]*Tenant, len(ids))
	var loadedMu sync.Mutex
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			t, err := r.build(id)
			if err != nil {
				slog.Warn("tenant skipped", "tenant", id, "error", err)
				return nil
			}
			loadedMu.Lock()
			loaded[id] = t
			loadedMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	r.tenants = loaded
	r.rebuildIndexLocked()
	r.mu.Unlock()

	slog.Info("tenants loaded", "count", len(loaded))
	return nil
}

// LoadOne re-reads one tenant's on-disk content and replaces its record
// wholesale. The reverse index is rebuilt atomically with the swap.
func (r *Registry) LoadOne(id int64) (*Tenant, error) {
	t, err := r.build(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.tenants[id] = t
	r.rebuildIndexLocked()
	r.mu.Unlock()
	slog.Info("tenant reloaded", "tenant", id)
	return t, nil
}

// Resolve looks a chat id up as a primary chat first, then as a bound
// support chat via the reverse index.
func (r *Registry) Resolve(chatID int64) (*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tenants[chatID]; ok {
		return t, nil
	}
	if id, ok := r.bySupport[chatID]; ok {
		if t, ok := r.tenants[id]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("chat %d: %w", chatID, ErrUnknownTenant)
}

// Get returns a tenant by primary id only.
func (r *Registry) Get(id int64) (*Tenant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	return t, ok
}

// All returns the current tenant snapshots, ordered by id.
func (r *Registry) All() []*Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetToggle flips one toggle, persists the full config and publishes
// the new snapshot. Persist failure leaves the old snapshot visible, so
// the change is atomic from the caller's perspective. The second return
// reports whether the state actually changed; flipping to the current
// state is a silent no-op.
func (r *Registry) SetToggle(id int64, name string, state bool) (*Tenant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.tenants[id]
	if !ok {
		return nil, false, fmt.Errorf("tenant %d: %w", id, ErrUnknownTenant)
	}
	tog, ok := old.Toggles[name]
	if !ok {
		return nil, false, fmt.Errorf("tenant %d has no toggle %q", id, name)
	}
	if tog.State == state {
		return old, false, nil
	}
	next := old.clone()
	tog.State = state
	tog.overridden = false
	next.Toggles[name] = tog
	if err := r.store.WriteTenantConfig(id, next.config()); err != nil {
		return nil, false, fmt.Errorf("persist toggle %s: %w", name, err)
	}
	r.tenants[id] = next
	return next, true, nil
}

// SetToggleTransient flips a toggle in memory without persisting. The
// persisted state is remembered so a later SetToggle on another toggle
// never writes the override to disk. Used by the quiet-hours jobs for
// hello/goodbye suppression; the override dissolves on the next
// ClearTransientToggles or reload.
func (r *Registry) SetToggleTransient(id int64, name string, state bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.tenants[id]
	if !ok {
		return
	}
	tog := old.Toggles[name]
	if tog.State == state {
		return
	}
	next := old.clone()
	if !tog.overridden {
		tog.saved = tog.State
		tog.overridden = true
	}
	tog.State = state
	next.Toggles[name] = tog
	r.tenants[id] = next
}

// ClearTransientToggles restores every transiently overridden toggle to
// its persisted state and publishes the restored snapshot.
func (r *Registry) ClearTransientToggles(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.tenants[id]
	if !ok {
		return
	}
	changed := false
	next := old.clone()
	for name, tog := range next.Toggles {
		if !tog.overridden {
			continue
		}
		tog.State = tog.saved
		tog.overridden = false
		next.Toggles[name] = tog
		changed = true
	}
	if changed {
		r.tenants[id] = next
	}
}

// build assembles a fresh Tenant from the content store. The config
// file is mandatory; every other file degrades to an empty category
// with a warning.
func (r *Registry) build(id int64) (*Tenant, error) {
	cfg, err := r.store.TenantConfig(id)
	if err != nil {
		return nil, err
	}

	t := &Tenant{
		ID:            id,
		SupportChatID: cfg.SupportChat,
		Toggles:       make(map[string]Toggle, len(cfg.AdminCommands)),
	}
	for name, tc := range cfg.AdminCommands {
		if !KnownToggles[name] {
			slog.Warn("unknown toggle in tenant config", "tenant", id, "toggle", name)
			continue
		}
		t.Toggles[name] = Toggle{State: tc.State, AnswerOn: tc.AnswerOn, AnswerOff: tc.AnswerOff}
	}

	lex, err := r.store.Lexicons(id)
	if err != nil {
		slog.Warn("lexicons unavailable", "tenant", id, "error", err)
	}
	t.Profanity, t.Ping, t.Deletion = lex.Profanity, lex.Ping, lex.Deletion

	msgs, err := r.store.Messages(id)
	if err != nil {
		slog.Warn("messages unavailable", "tenant", id, "error", err)
	}
	t.Hello, t.HelloSpoilers, t.Goodbyes = msgs.Hello, msgs.HelloSpoilers, msgs.Goodbyes

	helpers, err := r.store.Helpers(id)
	if err != nil {
		slog.Warn("helpers unavailable", "tenant", id, "error", err)
	}
	for _, h := range helpers {
		t.Helpers = append(t.Helpers, Helper{Command: h.Command, Content: h.Content, Delay: h.Delay})
	}

	rp, err := r.store.RolePlay(id)
	if err != nil {
		slog.Warn("roleplay unavailable", "tenant", id, "error", err)
	}
	t.RolePlay = rp

	return t, nil
}

// rebuildIndexLocked replaces the whole reverse index. Callers hold mu.
func (r *Registry) rebuildIndexLocked() {
	idx := make(map[int64]int64, len(r.tenants))
	for id, t := range r.tenants {
		if t.SupportChatID != 0 {
			if prev, dup := idx[t.SupportChatID]; dup {
				slog.Warn("duplicate support chat binding", "support_chat", t.SupportChatID, "tenant", id, "already_bound", prev)
				continue
			}
			idx[t.SupportChatID] = id
		}
	}
	r.bySupport = idx
}
