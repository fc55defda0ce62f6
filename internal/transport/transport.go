// Package transport defines the outward-facing collaborator through
// which the moderation core talks to the chat platform. The core issues
// calls and treats them as best-effort; it never retries.
package transport

import (
	"context"
	"time"
)

// Permissions is the subset of chat member permissions the core toggles
// during quiet hours and restrictions.
type Permissions struct {
	CanSendMessages       bool
	CanSendMedia          bool
	CanSendPolls          bool
	CanSendOther          bool
	CanAddWebPagePreviews bool
	CanInviteUsers        bool
	CanPinMessages        bool
	CanChangeInfo         bool
}

// None revokes everything. Used by the quiet-hours mute job.
func None() Permissions { return Permissions{} }

// Full restores the default member permission set.
func Full() Permissions {
	return Permissions{
		CanSendMessages:       true,
		CanSendMedia:          true,
		CanSendPolls:          true,
		CanSendOther:          true,
		CanAddWebPagePreviews: true,
		CanInviteUsers:        true,
	}
}

// Transport is the chat platform boundary. All calls are asynchronous
// from the core's point of view; the core assumes no ordering between
// two dispatched actions beyond the order it issued them.
type Transport interface {
	Send(ctx context.Context, chatID int64, text, format string) error
	Forward(ctx context.Context, fromChat int64, messageID int, dest int64) error
	Copy(ctx context.Context, fromChat int64, messageID int, dest int64) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	Restrict(ctx context.Context, chatID, userID int64, perms Permissions, until time.Time) error
	SetChatPermissions(ctx context.Context, chatID int64, perms Permissions) error
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}
