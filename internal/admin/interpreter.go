// Package admin interprets privileged control messages: listing and
// flipping feature toggles, and the per-tenant reload command.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/saiinc/lynxguard/internal/bus"
	"github.com/saiinc/lynxguard/internal/config"
	"github.com/saiinc/lynxguard/internal/quiet"
	"github.com/saiinc/lynxguard/internal/tenant"
	"github.com/saiinc/lynxguard/internal/transport"
)

// Interpreter parses admin commands against the configured prefix and
// applies exactly one state transition (or the list action) per command.
type Interpreter struct {
	reg   *tenant.Registry
	tr    transport.Transport
	sched *quiet.Scheduler
	cfg   config.AdminConfig

	// reloadGlobal re-reads the global bot configuration during the
	// reload command. Optional.
	reloadGlobal func() error
}

func NewInterpreter(reg *tenant.Registry, tr transport.Transport, sched *quiet.Scheduler, cfg config.AdminConfig, reloadGlobal func() error) *Interpreter {
	return &Interpreter{reg: reg, tr: tr, sched: sched, cfg: cfg, reloadGlobal: reloadGlobal}
}

// SetVocabulary replaces the command vocabulary. Called from the update
// dispatch goroutine during a global config reload.
func (i *Interpreter) SetVocabulary(cfg config.AdminConfig) { i.cfg = cfg }

// Matches reports whether the message text is shaped like an admin
// command for this interpreter's prefix.
func (i *Interpreter) Matches(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), i.cfg.CommandPrefix)
}

// Handle executes one admin command for the given tenant. Non-admin
// senders get the configured refusal and no mutation happens.
func (i *Interpreter) Handle(ctx context.Context, msg bus.InboundMessage, t *tenant.Tenant) ([]bus.Action, error) {
	if !i.isPrivileged(ctx, msg) {
		return []bus.Action{bus.Send(msg.ChatID, i.cfg.NoPermission)}, nil
	}

	cmd := strings.TrimPrefix(strings.TrimSpace(msg.Text), i.cfg.CommandPrefix)
	switch {
	case cmd == "":
		return []bus.Action{bus.Send(msg.ChatID, i.listToggles(t))}, nil

	case cmd == i.cfg.ReloadKeyword:
		return i.reload(msg.ChatID, t)

	case strings.HasSuffix(cmd, "_on"):
		return i.setToggle(t, msg.ChatID, strings.TrimSuffix(cmd, "_on"), true)

	case strings.HasSuffix(cmd, "_off"):
		return i.setToggle(t, msg.ChatID, strings.TrimSuffix(cmd, "_off"), false)
	}

	slog.Debug("unrecognized admin command", "tenant", t.ID, "command", cmd)
	return nil, nil
}

// isPrivileged accepts tenant admins/owners and the chat posting as its
// own anonymous-admin identity. A failed capability check denies.
func (i *Interpreter) isPrivileged(ctx context.Context, msg bus.InboundMessage) bool {
	if msg.SenderChatID != 0 && msg.SenderChatID == msg.ChatID {
		return true
	}
	ok, err := i.tr.IsAdmin(ctx, msg.ChatID, msg.UserID)
	if err != nil {
		slog.Warn("admin capability check failed", "chat", msg.ChatID, "user", msg.UserID, "error", err)
		return false
	}
	return ok
}

// listToggles renders every togglable feature and its current state.
func (i *Interpreter) listToggles(t *tenant.Tenant) string {
	names := make([]string, 0, len(t.Toggles))
	for name := range t.Toggles {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Функции:\n")
	for _, name := range names {
		state := "off"
		if t.Toggles[name].State {
			state = "on"
		}
		fmt.Fprintf(&b, "%s%s: %s\n", i.cfg.CommandPrefix, name, state)
	}
	return strings.TrimRight(b.String(), "\n")
}

// setToggle flips one feature. Flipping to the current state is a
// silent no-op: no reply, no persist. A successful flip persists the
// config, reconciles the scheduler and replies with the configured
// answer for the new state.
func (i *Interpreter) setToggle(t *tenant.Tenant, chatID int64, name string, state bool) ([]bus.Action, error) {
	next, changed, err := i.reg.SetToggle(t.ID, name, state)
	if err != nil {
		slog.Warn("toggle flip failed", "tenant", t.ID, "toggle", name, "error", err)
		return nil, nil
	}
	if !changed {
		return nil, nil
	}
	if err := i.sched.Reconcile(next); err != nil {
		slog.Warn("scheduler reconcile failed", "tenant", t.ID, "error", err)
	}

	tog := next.Toggles[name]
	answer := tog.AnswerOff
	if state {
		answer = tog.AnswerOn
	}
	if answer == "" {
		answer = fmt.Sprintf("%s: %v", name, state)
	}
	slog.Info("toggle flipped", "tenant", t.ID, "toggle", name, "state", state)
	return []bus.Action{bus.Send(chatID, answer)}, nil
}

// reload re-reads the tenant's on-disk content and the global bot
// config, replaces the in-memory record wholesale and reconciles the
// scheduler for that tenant.
func (i *Interpreter) reload(chatID int64, t *tenant.Tenant) ([]bus.Action, error) {
	if i.reloadGlobal != nil {
		if err := i.reloadGlobal(); err != nil {
			slog.Warn("global config reload failed", "error", err)
		}
	}
	next, err := i.reg.LoadOne(t.ID)
	if err != nil {
		slog.Warn("tenant reload failed", "tenant", t.ID, "error", err)
		return []bus.Action{bus.Send(chatID, "Ошибка перезагрузки.")}, nil
	}
	if err := i.sched.Reconcile(next); err != nil {
		slog.Warn("scheduler reconcile failed", "tenant", t.ID, "error", err)
	}
	return []bus.Action{bus.Send(chatID, "Ok")}, nil
}
