// Package telegram implements the transport boundary over the Telegram
// Bot API and runs the long-polling update listener.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/saiinc/lynxguard/internal/transport"
)

// Transport is the telego-backed implementation of transport.Transport.
type Transport struct {
	bot *telego.Bot
}

// NewTransport creates a Bot API client. proxy may be empty.
func NewTransport(token, proxy string) (*Transport, error) {
	var opts []telego.BotOption
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Transport{bot: bot}, nil
}

func (t *Transport) Send(ctx context.Context, chatID int64, text, format string) error {
	msg := tu.Message(tu.ID(chatID), text)
	if format != "" {
		msg.ParseMode = format
	}
	_, err := t.bot.SendMessage(ctx, msg)
	return err
}

func (t *Transport) Forward(ctx context.Context, fromChat int64, messageID int, dest int64) error {
	_, err := t.bot.ForwardMessage(ctx, &telego.ForwardMessageParams{
		ChatID:     tu.ID(dest),
		FromChatID: tu.ID(fromChat),
		MessageID:  messageID,
	})
	return err
}

func (t *Transport) Copy(ctx context.Context, fromChat int64, messageID int, dest int64) error {
	_, err := t.bot.CopyMessage(ctx, &telego.CopyMessageParams{
		ChatID:     tu.ID(dest),
		FromChatID: tu.ID(fromChat),
		MessageID:  messageID,
	})
	return err
}

func (t *Transport) Delete(ctx context.Context, chatID int64, messageID int) error {
	return t.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
}

func (t *Transport) Restrict(ctx context.Context, chatID, userID int64, perms transport.Permissions, until time.Time) error {
	return t.bot.RestrictChatMember(ctx, &telego.RestrictChatMemberParams{
		ChatID:      tu.ID(chatID),
		UserID:      userID,
		Permissions: toChatPermissions(perms),
		UntilDate:   until.Unix(),
	})
}

func (t *Transport) SetChatPermissions(ctx context.Context, chatID int64, perms transport.Permissions) error {
	return t.bot.SetChatPermissions(ctx, &telego.SetChatPermissionsParams{
		ChatID:      tu.ID(chatID),
		Permissions: toChatPermissions(perms),
	})
}

func (t *Transport) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := t.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	if err != nil {
		return false, fmt.Errorf("get chat member: %w", err)
	}
	status := member.MemberStatus()
	return status == telego.MemberStatusCreator || status == telego.MemberStatusAdministrator, nil
}

func toChatPermissions(p transport.Permissions) telego.ChatPermissions {
	return telego.ChatPermissions{
		CanSendMessages:       telego.ToPtr(p.CanSendMessages),
		CanSendAudios:         telego.ToPtr(p.CanSendMedia),
		CanSendDocuments:      telego.ToPtr(p.CanSendMedia),
		CanSendPhotos:         telego.ToPtr(p.CanSendMedia),
		CanSendVideos:         telego.ToPtr(p.CanSendMedia),
		CanSendVideoNotes:     telego.ToPtr(p.CanSendMedia),
		CanSendVoiceNotes:     telego.ToPtr(p.CanSendMedia),
		CanSendPolls:          telego.ToPtr(p.CanSendPolls),
		CanSendOtherMessages:  telego.ToPtr(p.CanSendOther),
		CanAddWebPagePreviews: telego.ToPtr(p.CanAddWebPagePreviews),
		CanChangeInfo:         telego.ToPtr(p.CanChangeInfo),
		CanInviteUsers:        telego.ToPtr(p.CanInviteUsers),
		CanPinMessages:        telego.ToPtr(p.CanPinMessages),
	}
}
