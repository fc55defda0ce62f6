package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mymmrac/telego"

	"github.com/saiinc/lynxguard/internal/bus"
	"github.com/saiinc/lynxguard/internal/tenant"
	"github.com/saiinc/lynxguard/internal/transport"
)

// handleUpdate routes one Telegram update through the moderation core.
// A panic while evaluating a single update is caught and logged; the
// update yields no verdict and the dispatch loop keeps running.
func (c *Channel) handleUpdate(ctx context.Context, update telego.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("update handling panicked", "update_id", update.UpdateID, "panic", r)
		}
	}()

	switch {
	case update.Message != nil:
		c.handleMessage(ctx, update.Message, false)
	case update.EditedMessage != nil:
		c.handleMessage(ctx, update.EditedMessage, true)
	case update.ChatMember != nil:
		c.handleMemberUpdate(ctx, update.ChatMember)
	case update.MyChatMember != nil:
		slog.Info("bot membership changed",
			"chat_id", update.MyChatMember.Chat.ID,
			"status", update.MyChatMember.NewChatMember.MemberStatus(),
		)
	default:
		slog.Debug("telegram update skipped", "update_id", update.UpdateID)
	}
}

func (c *Channel) handleMessage(ctx context.Context, message *telego.Message, edited bool) {
	if message.Chat.Type == "private" {
		c.forwardPrivate(ctx, message)
		return
	}
	if message.Chat.Type != "group" && message.Chat.Type != "supergroup" {
		return
	}

	msg := toInbound(message, edited)

	if c.interpreter.Matches(msg.Text) {
		t, err := c.registry.Resolve(msg.ChatID)
		if err != nil {
			slog.Warn("admin command from unknown chat dropped", "chat_id", msg.ChatID)
			return
		}
		actions, err := c.interpreter.Handle(ctx, msg, t)
		if err != nil {
			slog.Warn("admin command failed", "chat_id", msg.ChatID, "error", err)
			return
		}
		c.execute(ctx, actions)
		return
	}

	actions, err := c.pipeline.Handle(ctx, msg)
	if err != nil {
		if errors.Is(err, tenant.ErrUnknownTenant) {
			slog.Warn("message from unknown chat dropped", "chat_id", msg.ChatID)
			return
		}
		slog.Warn("pipeline failed", "chat_id", msg.ChatID, "error", err)
		return
	}
	c.execute(ctx, actions)
}

func (c *Channel) handleMemberUpdate(ctx context.Context, cmu *telego.ChatMemberUpdated) {
	was := isMember(cmu.OldChatMember)
	is := isMember(cmu.NewChatMember)
	if was == is {
		return
	}

	user := cmu.NewChatMember.MemberUser()
	mu := bus.MemberUpdate{
		ChatID:    cmu.Chat.ID,
		UserID:    user.ID,
		FirstName: user.FirstName,
		Username:  user.Username,
		Joined:    !was && is,
		Left:      was && !is,
	}

	actions, err := c.pipeline.HandleMember(ctx, mu)
	if err != nil {
		if errors.Is(err, tenant.ErrUnknownTenant) {
			slog.Warn("member update from unknown chat dropped", "chat_id", mu.ChatID)
			return
		}
		slog.Warn("member handling failed", "chat_id", mu.ChatID, "error", err)
		return
	}
	c.execute(ctx, actions)
}

// execute dispatches actions in issue order. Failures are logged and
// the remaining actions still go out, at most once each, no rollback.
// Delayed actions fire from a timer and never block dispatch.
func (c *Channel) execute(ctx context.Context, actions []bus.Action) {
	for _, a := range actions {
		if a.Delay > 0 {
			deferred := a
			deferred.Delay = 0
			time.AfterFunc(a.Delay, func() {
				c.run(context.Background(), deferred)
			})
			continue
		}
		c.run(ctx, a)
	}
}

func (c *Channel) run(ctx context.Context, a bus.Action) {
	var err error
	switch a.Kind {
	case bus.ActionSend:
		err = c.dispatch.Send(ctx, a.ChatID, a.Text, a.ParseMode)
	case bus.ActionForward:
		err = c.dispatch.Forward(ctx, a.FromChatID, a.MessageID, a.ChatID)
	case bus.ActionCopy:
		err = c.dispatch.Copy(ctx, a.FromChatID, a.MessageID, a.ChatID)
	case bus.ActionDelete:
		err = c.dispatch.Delete(ctx, a.ChatID, a.MessageID)
	case bus.ActionRestrict:
		err = c.dispatch.Restrict(ctx, a.ChatID, a.UserID, permsFor(a.Mute), a.Until)
	case bus.ActionSetPermissions:
		err = c.dispatch.SetChatPermissions(ctx, a.ChatID, permsFor(a.Mute))
	default:
		slog.Warn("unknown action kind", "kind", a.Kind)
		return
	}
	if err != nil {
		slog.Warn("action dispatch failed", "kind", a.Kind, "chat_id", a.ChatID, "error", err)
	}
}

// forwardPrivate relays a private message sent to the bot into the
// configured operator chat. Without one, private messages are dropped.
func (c *Channel) forwardPrivate(ctx context.Context, message *telego.Message) {
	if c.operatorChat == 0 {
		slog.Debug("private message dropped, no operator chat configured", "chat_id", message.Chat.ID)
		return
	}
	if err := c.dispatch.Forward(ctx, message.Chat.ID, message.MessageID, c.operatorChat); err != nil {
		slog.Warn("private message forward failed", "chat_id", message.Chat.ID, "error", err)
	}
}

// permsFor maps an action's mute flag to a permission set.
func permsFor(mute bool) transport.Permissions {
	if mute {
		return transport.None()
	}
	return transport.Full()
}

// toInbound flattens a telego message into the transport-independent
// inbound form the core consumes.
func toInbound(m *telego.Message, edited bool) bus.InboundMessage {
	msg := bus.InboundMessage{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Text:      m.Text,
		Caption:   m.Caption,
		Edited:    edited,
		Protected: m.HasProtectedContent,
		HasLink:   hasLinkEntity(m),
	}
	if m.From != nil {
		msg.UserID = m.From.ID
		msg.FirstName = m.From.FirstName
		msg.Username = m.From.Username
	}
	if m.SenderChat != nil {
		msg.SenderChatID = m.SenderChat.ID
	}
	if r := m.ReplyToMessage; r != nil {
		reply := &bus.ReplyInfo{
			MessageID:   r.MessageID,
			Text:        r.Text,
			AutoForward: r.IsAutomaticForward,
		}
		if r.From != nil {
			reply.UserID = r.From.ID
			reply.FirstName = r.From.FirstName
			reply.Username = r.From.Username
		}
		if r.SenderChat != nil {
			reply.SenderChatID = r.SenderChat.ID
		}
		msg.Reply = reply
	}
	return msg
}

func hasLinkEntity(m *telego.Message) bool {
	for _, ents := range [][]telego.MessageEntity{m.Entities, m.CaptionEntities} {
		for _, e := range ents {
			if e.Type == "url" || e.Type == "text_link" {
				return true
			}
		}
	}
	return false
}

// isMember interprets a chat member status as "participates in the
// chat". Restricted members still count while is_member holds.
func isMember(cm telego.ChatMember) bool {
	switch cm.MemberStatus() {
	case telego.MemberStatusCreator, telego.MemberStatusAdministrator, telego.MemberStatusMember:
		return true
	case telego.MemberStatusRestricted:
		if r, ok := cm.(*telego.ChatMemberRestricted); ok {
			return r.IsMember
		}
		return false
	default:
		return false
	}
}
