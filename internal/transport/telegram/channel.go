package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/mymmrac/telego"

	"github.com/saiinc/lynxguard/internal/admin"
	"github.com/saiinc/lynxguard/internal/moderation"
	"github.com/saiinc/lynxguard/internal/tenant"
	"github.com/saiinc/lynxguard/internal/transport"
)

// Channel connects to Telegram via long polling and feeds updates into
// the moderation core. Actions go out through dispatch, which is the
// same Transport the polling connection belongs to.
type Channel struct {
	transport    *Transport
	dispatch     transport.Transport
	pipeline     *moderation.Pipeline
	interpreter  *admin.Interpreter
	registry     *tenant.Registry
	operatorChat int64

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

func NewChannel(tr *Transport, pipeline *moderation.Pipeline, interpreter *admin.Interpreter, registry *tenant.Registry, operatorChat int64) *Channel {
	return &Channel{
		transport:    tr,
		dispatch:     tr,
		pipeline:     pipeline,
		interpreter:  interpreter,
		registry:     registry,
		operatorChat: operatorChat,
	}
}

// Start begins long polling for Telegram updates. Updates are handled
// one at a time; a tenant's record is therefore never read and swapped
// from two message handlers at once.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.transport.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout: 30,
		AllowedUpdates: []string{
			"message",
			"edited_message",
			"chat_member",
			"my_chat_member",
		},
	})
	if err != nil {
		cancel()
		return err
	}

	slog.Info("telegram bot connected", "username", c.transport.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				c.handleUpdate(pollCtx, update)
			}
		}
	}()

	return nil
}

// Stop cancels the long-polling context and waits for the polling
// goroutine to exit so Telegram releases the getUpdates lock.
func (c *Channel) Stop() {
	slog.Info("stopping telegram bot")
	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}
}
