package bus

import "time"

// InboundMessage is the transport-independent view of one chat message
// handed to the moderation core. Chat and user ids are Telegram-style
// signed integers; zero means "absent".
type InboundMessage struct {
	ChatID       int64
	MessageID    int
	UserID       int64
	FirstName    string
	Username     string
	SenderChatID int64 // set when the message was posted as a chat identity (anonymous admin)
	Text         string
	Caption      string
	HasLink      bool // message carries a url or text_link entity
	Edited       bool
	Protected    bool // source chat has protected content, forwarding is blocked
	Reply        *ReplyInfo
}

// ReplyInfo describes the message an inbound message replies to.
type ReplyInfo struct {
	MessageID    int
	UserID       int64
	FirstName    string
	Username     string
	Text         string
	SenderChatID int64
	AutoForward  bool // reply target is an auto-forwarded channel post
}

// MemberUpdate is a join/leave event for one chat member.
type MemberUpdate struct {
	ChatID    int64
	UserID    int64
	FirstName string
	Username  string
	Joined    bool
	Left      bool
}

// ActionKind enumerates the outward effects the core can request.
type ActionKind string

const (
	ActionSend           ActionKind = "send"
	ActionForward        ActionKind = "forward"
	ActionCopy           ActionKind = "copy"
	ActionDelete         ActionKind = "delete"
	ActionRestrict       ActionKind = "restrict"
	ActionSetPermissions ActionKind = "set_permissions"
)

// Action is one dispatched moderation effect. Fields are interpreted per
// Kind; unused fields stay zero. Delay defers execution without blocking
// the dispatch path.
type Action struct {
	Kind       ActionKind
	ChatID     int64
	Text       string
	ParseMode  string
	FromChatID int64
	MessageID  int
	UserID     int64
	Mute       bool
	Until      time.Time
	Delay      time.Duration
}

// Send builds a plain-text send action.
func Send(chatID int64, text string) Action {
	return Action{Kind: ActionSend, ChatID: chatID, Text: text}
}

// SendHTML builds a send action with HTML formatting.
func SendHTML(chatID int64, text string) Action {
	return Action{Kind: ActionSend, ChatID: chatID, Text: text, ParseMode: "HTML"}
}

// Forward builds a forward action.
func Forward(fromChat int64, messageID int, dest int64) Action {
	return Action{Kind: ActionForward, FromChatID: fromChat, MessageID: messageID, ChatID: dest}
}

// Delete builds a delete action.
func Delete(chatID int64, messageID int) Action {
	return Action{Kind: ActionDelete, ChatID: chatID, MessageID: messageID}
}
