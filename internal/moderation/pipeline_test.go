package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/saiinc/lynxguard/internal/bus"
	"github.com/saiinc/lynxguard/internal/content"
	"github.com/saiinc/lynxguard/internal/tenant"
	"github.com/saiinc/lynxguard/internal/transport"
)

type fakeTransport struct {
	admin    bool
	adminErr error
}

func (f *fakeTransport) Send(ctx context.Context, chatID int64, text, format string) error { return nil }
func (f *fakeTransport) Forward(ctx context.Context, fromChat int64, messageID int, dest int64) error {
	return nil
}
func (f *fakeTransport) Copy(ctx context.Context, fromChat int64, messageID int, dest int64) error {
	return nil
}
func (f *fakeTransport) Delete(ctx context.Context, chatID int64, messageID int) error { return nil }
func (f *fakeTransport) Restrict(ctx context.Context, chatID, userID int64, perms transport.Permissions, until time.Time) error {
	return nil
}
func (f *fakeTransport) SetChatPermissions(ctx context.Context, chatID int64, perms transport.Permissions) error {
	return nil
}
func (f *fakeTransport) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	return f.admin, f.adminErr
}

type fakeStore struct {
	cfgs     map[int64]content.TenantConfig
	lex      map[int64]content.Lexicons
	msgs     map[int64]content.Messages
	helpers  map[int64][]content.Helper
	roleplay map[int64]map[string]string
}

func (f *fakeStore) TenantIDs() ([]int64, error) {
	ids := make([]int64, 0, len(f.cfgs))
	for id := range f.cfgs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) TenantConfig(id int64) (content.TenantConfig, error) {
	cfg, ok := f.cfgs[id]
	if !ok {
		return content.TenantConfig{}, fmt.Errorf("no config for %d", id)
	}
	return cfg, nil
}

func (f *fakeStore) Lexicons(id int64) (content.Lexicons, error)   { return f.lex[id], nil }
func (f *fakeStore) Messages(id int64) (content.Messages, error)   { return f.msgs[id], nil }
func (f *fakeStore) Helpers(id int64) ([]content.Helper, error)    { return f.helpers[id], nil }
func (f *fakeStore) RolePlay(id int64) (map[string]string, error)  { return f.roleplay[id], nil }
func (f *fakeStore) WriteTenantConfig(int64, content.TenantConfig) error { return nil }

// newTestPipeline builds a pipeline over a single tenant (chat 100,
// support chat 900) with every feature enabled.
func newTestPipeline(t *testing.T, tr transport.Transport) *Pipeline {
	t.Helper()
	toggles := map[string]content.ToggleConfig{}
	for name := range tenant.KnownToggles {
		toggles[name] = content.ToggleConfig{State: true}
	}
	fs := &fakeStore{
		cfgs: map[int64]content.TenantConfig{
			100: {SupportChat: 900, AdminCommands: toggles},
		},
		lex: map[int64]content.Lexicons{
			100: {
				Profanity: []string{"спам"},
				Ping:      []string{"админ"},
				Deletion:  []string{"казино"},
			},
		},
		msgs: map[int64]content.Messages{
			100: {
				Hello:         "Привет, {member_name}!",
				HelloSpoilers: "Спойлеры прячем, {member_name}.",
				Goodbyes:      []string{"Пока."},
			},
		},
		helpers: map[int64][]content.Helper{
			100: {
				{Command: "!правила", Content: "Правила чата."},
				{Command: "!faq", Content: "Вопросы и ответы.", Delay: true},
			},
		},
		roleplay: map[int64]map[string]string{
			100: {"обнять": "{actor} обнимает {target} {rest}"},
		},
	}
	reg := tenant.NewRegistry(fs)
	if err := reg.LoadAll(); err != nil {
		t.Fatal(err)
	}
	return NewPipeline(reg, tr, "#warn")
}

func inbound(text string) bus.InboundMessage {
	return bus.InboundMessage{ChatID: 100, MessageID: 5, UserID: 7, FirstName: "Анна", Username: "anna", Text: text}
}

func kinds(actions []bus.Action) []bus.ActionKind {
	out := make([]bus.ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func TestUnknownChatIsDropped(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})
	msg := inbound("привет")
	msg.ChatID = 555

	_, err := p.Handle(context.Background(), msg)
	if !errors.Is(err, tenant.ErrUnknownTenant) {
		t.Fatalf("err = %v, want ErrUnknownTenant", err)
	}
}

func TestCleanMessageYieldsNoActions(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})

	actions, err := p.Handle(context.Background(), inbound("доброе утро"))
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 0 {
		t.Fatalf("actions = %+v, want none", actions)
	}
}

func TestAnonymousAdminPostIsCopied(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})
	msg := inbound("объявление")
	msg.SenderChatID = msg.ChatID

	actions, err := p.Handle(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 || actions[0].Kind != bus.ActionCopy || actions[0].ChatID != 900 {
		t.Fatalf("actions = %+v, want one copy to the support chat", actions)
	}
	if actions[0].FromChatID != 100 || actions[0].MessageID != 5 {
		t.Errorf("copy source = %d/%d, want 100/5", actions[0].FromChatID, actions[0].MessageID)
	}
}

func TestRolePlayReply(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})
	msg := inbound("обнять крепко")
	msg.Reply = &bus.ReplyInfo{MessageID: 4, UserID: 8, FirstName: "Борис"}

	actions, err := p.Handle(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 || actions[0].Kind != bus.ActionSend || actions[0].ParseMode != "HTML" {
		t.Fatalf("actions = %+v, want one HTML send", actions)
	}
	out := actions[0].Text
	for _, want := range []string{`tg://user?id=7`, `tg://user?id=8`, "обнимает", "крепко"} {
		if !strings.Contains(out, want) {
			t.Errorf("reply %q missing %q", out, want)
		}
	}
}

func TestRolePlayRequiresReplyTarget(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})

	actions, err := p.Handle(context.Background(), inbound("обнять крепко"))
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 0 {
		t.Fatalf("actions = %+v, want none without a reply target", actions)
	}
}

func TestHelperReply(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})

	actions, err := p.Handle(context.Background(), inbound("!Правила"))
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 || actions[0].Text != "Правила чата." {
		t.Fatalf("actions = %+v, want the helper reply", actions)
	}
	if actions[0].Delay != 0 {
		t.Errorf("delay = %v, want immediate", actions[0].Delay)
	}
}

func TestHelperReplyDelayed(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})

	actions, err := p.Handle(context.Background(), inbound("!faq"))
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 || actions[0].Delay != helperDelay {
		t.Fatalf("actions = %+v, want one reply delayed by %v", actions, helperDelay)
	}
}

func TestAntiSpamDeletesLinkFromNonAdmin(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{admin: false})
	msg := inbound("заходи на спам сайт")
	msg.HasLink = true
	msg.Reply = &bus.ReplyInfo{MessageID: 1, AutoForward: true}

	actions, err := p.Handle(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	want := []bus.ActionKind{bus.ActionSend, bus.ActionForward, bus.ActionDelete}
	got := kinds(actions)
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", got, want)
		}
	}
	// The run ends on deletion: the profanity in the text must not
	// produce a second escalation.
	for _, a := range actions {
		if a.Kind == bus.ActionSend && strings.Contains(a.Text, "%") {
			t.Errorf("verdict emitted after a deleting anti-spam verdict: %q", a.Text)
		}
	}
}

func TestAntiSpamIgnoresLinkFromAdmin(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{admin: true})
	msg := inbound("ссылка на регламент")
	msg.HasLink = true
	msg.Reply = &bus.ReplyInfo{MessageID: 1, AutoForward: true}

	actions, err := p.Handle(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 0 {
		t.Fatalf("actions = %+v, want none for an admin link", actions)
	}
}

func TestAntiSpamSkipsOnCapabilityCheckFailure(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{adminErr: fmt.Errorf("api down")})
	msg := inbound("ссылка")
	msg.HasLink = true
	msg.Reply = &bus.ReplyInfo{MessageID: 1, AutoForward: true}

	actions, err := p.Handle(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range actions {
		if a.Kind == bus.ActionDelete {
			t.Fatalf("message deleted despite failed capability check: %+v", actions)
		}
	}
}

func TestWarnKeywordEscalatesQuotedOffender(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{admin: true})
	msg := inbound("#warn реклама")
	msg.Reply = &bus.ReplyInfo{MessageID: 2, UserID: 9, FirstName: "Виктор", Text: "покупайте у нас"}

	actions, err := p.Handle(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 || actions[0].Kind != bus.ActionSend || actions[0].ChatID != 900 {
		t.Fatalf("actions = %+v, want one escalation send", actions)
	}
	if !strings.Contains(actions[0].Text, "покупайте у нас") {
		t.Errorf("escalation %q missing the quoted offender text", actions[0].Text)
	}
}

func TestSetWarnKeywordApplies(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{admin: true})
	p.SetWarnKeyword("#alarm")

	msg := inbound("#alarm сюда")
	msg.Reply = &bus.ReplyInfo{MessageID: 2, UserID: 9, FirstName: "Виктор", Text: "нарушение"}

	actions, err := p.Handle(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 || actions[0].Kind != bus.ActionSend {
		t.Fatalf("actions = %+v, want one escalation with the new keyword", actions)
	}

	// The old keyword no longer triggers.
	old := inbound("#warn сюда")
	old.Reply = &bus.ReplyInfo{MessageID: 2, UserID: 9, Text: "нарушение"}
	actions, err = p.Handle(context.Background(), old)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 0 {
		t.Errorf("old keyword still escalates: %+v", actions)
	}
}

func TestTriggerMatchForwardsAndReports(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})

	actions, err := p.Handle(context.Background(), inbound("тут сп@м пишут"))
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 2 {
		t.Fatalf("actions = %+v, want forward + verdict", actions)
	}
	if actions[0].Kind != bus.ActionForward || actions[0].ChatID != 900 {
		t.Errorf("first action = %+v, want forward to support chat", actions[0])
	}
	verdict := actions[1]
	if verdict.Kind != bus.ActionSend || verdict.ChatID != 900 {
		t.Fatalf("second action = %+v, want verdict send", verdict)
	}
	for _, want := range []string{"спам", "100%", "profanity", "@anna"} {
		if !strings.Contains(verdict.Text, want) {
			t.Errorf("verdict %q missing %q", verdict.Text, want)
		}
	}
}

func TestProtectedChatRepostsInsteadOfForwarding(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})
	msg := inbound("спам")
	msg.Protected = true

	actions, err := p.Handle(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 2 {
		t.Fatalf("actions = %+v, want repost + verdict", actions)
	}
	if actions[0].Kind != bus.ActionSend || !strings.Contains(actions[0].Text, "спам") {
		t.Errorf("first action = %+v, want a repost carrying the text", actions[0])
	}
	for _, a := range actions {
		if a.Kind == bus.ActionForward {
			t.Error("protected chat content must not be forwarded")
		}
	}
}

func TestCaptionFallback(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})
	msg := inbound("")
	msg.Caption = "спам в подписи"

	actions, err := p.Handle(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 2 {
		t.Fatalf("actions = %+v, want forward + verdict from the caption", actions)
	}
}

func TestDeletionWordAlertsAndDeletes(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})

	actions, err := p.Handle(context.Background(), inbound("казино"))
	if err != nil {
		t.Fatal(err)
	}
	want := []bus.ActionKind{bus.ActionForward, bus.ActionSend, bus.ActionDelete}
	got := kinds(actions)
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", got, want)
		}
	}
	if actions[2].ChatID != 100 || actions[2].MessageID != 5 {
		t.Errorf("delete target = %d/%d, want 100/5", actions[2].ChatID, actions[2].MessageID)
	}
}

func TestTriggerWinsOverDeletion(t *testing.T) {
	// A trigger verdict ends the run before the deletion check.
	p := newTestPipeline(t, &fakeTransport{})

	actions, err := p.Handle(context.Background(), inbound("спам казино"))
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range actions {
		if a.Kind == bus.ActionDelete {
			t.Fatalf("message deleted despite an earlier trigger verdict: %+v", actions)
		}
	}
}

func TestSupportChatMessagesUseSameTenant(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})
	msg := inbound("спам")
	msg.ChatID = 900 // the bound support chat

	actions, err := p.Handle(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 2 {
		t.Fatalf("actions = %+v, want the same watchlists to apply in the support chat", actions)
	}
}

func TestMemberJoinGreeting(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})

	actions, err := p.HandleMember(context.Background(), bus.MemberUpdate{ChatID: 100, UserID: 7, FirstName: "Анна", Joined: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 2 {
		t.Fatalf("actions = %+v, want greeting + spoilers follow-up", actions)
	}
	if !strings.Contains(actions[0].Text, "Анна") || strings.Contains(actions[0].Text, memberPlaceholder) {
		t.Errorf("greeting %q should substitute the member name", actions[0].Text)
	}
	if actions[0].Delay != 0 || actions[1].Delay != spoilerGreetDelay {
		t.Errorf("delays = %v/%v, want 0/%v", actions[0].Delay, actions[1].Delay, spoilerGreetDelay)
	}
}

func TestMemberLeaveFarewell(t *testing.T) {
	p := newTestPipeline(t, &fakeTransport{})

	actions, err := p.HandleMember(context.Background(), bus.MemberUpdate{ChatID: 100, UserID: 7, Left: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 || actions[0].Text != "Пока." {
		t.Fatalf("actions = %+v, want the farewell", actions)
	}
}
