package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/saiinc/lynxguard/internal/bus"
	"github.com/saiinc/lynxguard/internal/tenant"
)

// spoilerGreetDelay separates the plain greeting from the follow-up
// spoiler-rules greeting so the two don't arrive as one wall of text.
const spoilerGreetDelay = 10 * time.Second

// memberPlaceholder is the named substitution slot in greeting content.
const memberPlaceholder = "{member_name}"

// HandleMember greets joining members and announces leaving ones,
// gated by the hello/goodbye toggles.
func (p *Pipeline) HandleMember(ctx context.Context, mu bus.MemberUpdate) ([]bus.Action, error) {
	t, err := p.reg.Resolve(mu.ChatID)
	if err != nil {
		return nil, err
	}

	var actions []bus.Action
	switch {
	case mu.Joined && t.Enabled(tenant.ToggleHello) && t.Hello != "":
		name := mention(mu.UserID, mu.FirstName, mu.Username)
		actions = append(actions, bus.SendHTML(mu.ChatID, strings.ReplaceAll(t.Hello, memberPlaceholder, name)))
		if t.HelloSpoilers != "" {
			follow := bus.SendHTML(mu.ChatID, strings.ReplaceAll(t.HelloSpoilers, memberPlaceholder, name))
			follow.Delay = spoilerGreetDelay
			actions = append(actions, follow)
		}

	case mu.Left && t.Enabled(tenant.ToggleGoodbye):
		if farewell := t.RandomGoodbye(); farewell != "" {
			actions = append(actions, bus.SendHTML(mu.ChatID, farewell))
		}
	}
	return actions, nil
}
