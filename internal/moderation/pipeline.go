// Package moderation runs the per-message check pipeline: anonymous
// admin duplication, role-play replies, anti-spam link checks, trigger
// and deletion word matching. Each step degrades to a skip when its
// optional inputs are absent; nothing here aborts the dispatch loop.
package moderation

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saiinc/lynxguard/internal/bus"
	"github.com/saiinc/lynxguard/internal/match"
	"github.com/saiinc/lynxguard/internal/tenant"
	"github.com/saiinc/lynxguard/internal/transport"
)

// helperDelay is the pause before a delay-flagged helper reply goes
// out. Deferred, never blocking the dispatch path.
const helperDelay = 3 * time.Second

// Pipeline evaluates inbound messages against the owning tenant's
// configuration and emits moderation actions.
type Pipeline struct {
	reg         *tenant.Registry
	tr          transport.Transport
	warnKeyword string
}

func NewPipeline(reg *tenant.Registry, tr transport.Transport, warnKeyword string) *Pipeline {
	return &Pipeline{reg: reg, tr: tr, warnKeyword: warnKeyword}
}

// SetWarnKeyword replaces the admin warn keyword. Called from the
// update dispatch goroutine during a global config reload.
func (p *Pipeline) SetWarnKeyword(kw string) { p.warnKeyword = kw }

// Handle resolves the owning tenant and runs the checks in fixed order.
// Returns tenant.ErrUnknownTenant (wrapped) when the chat is unknown;
// the caller logs and drops the message.
func (p *Pipeline) Handle(ctx context.Context, msg bus.InboundMessage) ([]bus.Action, error) {
	t, err := p.reg.Resolve(msg.ChatID)
	if err != nil {
		return nil, err
	}

	var actions []bus.Action

	// Step 1: the chat posting as itself (anonymous admin). Copy into
	// the support chat as a side channel, not a verdict.
	if t.Enabled(tenant.ToggleQA) && msg.SenderChatID != 0 && msg.SenderChatID == msg.ChatID && t.SupportChatID != 0 {
		actions = append(actions, bus.Action{
			Kind:       bus.ActionCopy,
			FromChatID: msg.ChatID,
			MessageID:  msg.MessageID,
			ChatID:     t.SupportChatID,
		})
	}

	// Step 2: role-play verb replies.
	if a, ok := p.rolePlay(msg, t); ok {
		actions = append(actions, a)
	}

	// Step 3: helper keyword replies.
	if a, ok := p.helperReply(msg, t); ok {
		actions = append(actions, a)
	}

	// Step 4: anti-spam. A deleting verdict ends the run: the message
	// is gone, later steps have nothing to examine.
	spamActions, deleted := p.antiSpam(ctx, msg, t)
	actions = append(actions, spamActions...)
	if deleted {
		return actions, nil
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return actions, nil
	}

	// Step 5: trigger words.
	if m := match.FilterWord(text, t); m != nil {
		actions = append(actions, p.alert(msg, t, m)...)
		return actions, nil
	}

	// Step 6: deletion words, only when no trigger matched.
	if m := match.DeleteWord(text, t); m != nil {
		actions = append(actions, p.alert(msg, t, m)...)
		actions = append(actions, bus.Delete(msg.ChatID, msg.MessageID))
	}

	return actions, nil
}

// rolePlay formats a reply for "verb @target ..." messages that answer
// another message. Templates substitute {actor}, {target} and {rest}.
func (p *Pipeline) rolePlay(msg bus.InboundMessage, t *tenant.Tenant) (bus.Action, bool) {
	if !t.Enabled(tenant.ToggleRP) || msg.Reply == nil || len(t.RolePlay) == 0 || msg.Text == "" {
		return bus.Action{}, false
	}
	fields := strings.Fields(msg.Text)
	tmpl, ok := t.RolePlay[strings.ToLower(fields[0])]
	if !ok {
		return bus.Action{}, false
	}
	rest := strings.Join(fields[1:], " ")
	reply := strings.NewReplacer(
		"{actor}", mention(msg.UserID, msg.FirstName, msg.Username),
		"{target}", mention(msg.Reply.UserID, msg.Reply.FirstName, msg.Reply.Username),
		"{rest}", html.EscapeString(rest),
	).Replace(tmpl)
	return bus.SendHTML(msg.ChatID, reply), true
}

// helperReply answers messages whose text equals a configured helper
// command. Delay-flagged helpers go out deferred.
func (p *Pipeline) helperReply(msg bus.InboundMessage, t *tenant.Tenant) (bus.Action, bool) {
	if !t.Enabled(tenant.ToggleHelpers) || msg.Text == "" {
		return bus.Action{}, false
	}
	text := strings.TrimSpace(msg.Text)
	for _, h := range t.Helpers {
		if strings.EqualFold(text, h.Command) {
			a := bus.Send(msg.ChatID, h.Content)
			if h.Delay {
				a.Delay = helperDelay
			}
			return a, true
		}
	}
	return bus.Action{}, false
}

// antiSpam handles comment replies under auto-forwarded posts. A link
// from a non-admin is removed and escalated; the configured warn
// keyword from an admin escalates the quoted offender without deleting.
// The second return reports whether the message was deleted.
func (p *Pipeline) antiSpam(ctx context.Context, msg bus.InboundMessage, t *tenant.Tenant) ([]bus.Action, bool) {
	if !t.Enabled(tenant.ToggleAntispam) || msg.Reply == nil || t.SupportChatID == 0 {
		return nil, false
	}

	if msg.Reply.AutoForward && msg.HasLink {
		isAdmin, err := p.tr.IsAdmin(ctx, msg.ChatID, msg.UserID)
		if err != nil {
			slog.Warn("admin check failed, skipping anti-spam step", "chat", msg.ChatID, "user", msg.UserID, "error", err)
			return nil, false
		}
		if !isAdmin {
			notice := fmt.Sprintf("Ссылка в комментариях от %s удалена.", displayName(msg.FirstName, msg.Username))
			return []bus.Action{
				bus.Send(t.SupportChatID, notice),
				bus.Forward(msg.ChatID, msg.MessageID, t.SupportChatID),
				bus.Delete(msg.ChatID, msg.MessageID),
			}, true
		}
		return nil, false
	}

	if p.warnKeyword != "" && msg.Text != "" && strings.Contains(msg.Text, p.warnKeyword) {
		isAdmin, err := p.tr.IsAdmin(ctx, msg.ChatID, msg.UserID)
		if err != nil {
			slog.Warn("admin check failed, skipping warn step", "chat", msg.ChatID, "user", msg.UserID, "error", err)
			return nil, false
		}
		if isAdmin {
			notice := fmt.Sprintf("Предупреждение от %s для %s:\n%s",
				displayName(msg.FirstName, msg.Username),
				displayName(msg.Reply.FirstName, msg.Reply.Username),
				msg.Reply.Text)
			return []bus.Action{bus.Send(t.SupportChatID, notice)}, false
		}
	}

	return nil, false
}

// alert builds the escalation-chat actions for a trigger or deletion
// match: forward the offending message when the source chat allows it,
// otherwise repost a redacted copy, always followed by the structured
// verdict line.
func (p *Pipeline) alert(msg bus.InboundMessage, t *tenant.Tenant, m *match.Match) []bus.Action {
	event := uuid.NewString()
	slog.Info("trigger match",
		"event", event,
		"tenant", t.ID,
		"category", m.Category,
		"token", m.Token,
		"entry", m.Entry,
		"score", m.Score,
	)
	if t.SupportChatID == 0 {
		return nil
	}

	verdict := fmt.Sprintf("%s | %d%% | %s | %s | от %s",
		m.Token, m.Score, m.Entry, m.Category, displayName(msg.FirstName, msg.Username))

	var actions []bus.Action
	if msg.Protected {
		quoted := msg.Text
		if quoted == "" {
			quoted = msg.Caption
		}
		actions = append(actions, bus.Send(t.SupportChatID, fmt.Sprintf("Защищённый чат %d, пересылка недоступна. Текст:\n%s", msg.ChatID, quoted)))
	} else {
		actions = append(actions, bus.Forward(msg.ChatID, msg.MessageID, t.SupportChatID))
	}
	actions = append(actions, bus.Send(t.SupportChatID, verdict))
	return actions
}

// mention renders an HTML user mention that works without a username.
func mention(userID int64, firstName, username string) string {
	name := firstName
	if name == "" && username != "" {
		name = "@" + username
	}
	if name == "" {
		name = fmt.Sprintf("id%d", userID)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}

func displayName(firstName, username string) string {
	if username != "" {
		return "@" + username
	}
	if firstName != "" {
		return firstName
	}
	return "неизвестный"
}
