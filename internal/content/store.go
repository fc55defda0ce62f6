// Package content loads and persists per-tenant moderation content:
// watchlists, greetings, helper replies, role-play tables and the
// tenant config file.
package content

// Lexicons holds the three trigger watchlists of one tenant, in file
// order. Entries are lower-case and immutable once loaded.
type Lexicons struct {
	Profanity []string
	Ping      []string
	Deletion  []string
}

// Messages holds greeting and farewell content for one tenant. Hello
// carries a {member_name} placeholder.
type Messages struct {
	Hello         string
	HelloSpoilers string
	Goodbyes      []string
}

// Helper is one keyword-triggered canned reply.
type Helper struct {
	Command string `json:"command"`
	Content string `json:"content"`
	Delay   bool   `json:"delay"`
}

// ToggleConfig is the persisted form of one feature toggle.
type ToggleConfig struct {
	State     bool   `json:"state"`
	AnswerOn  string `json:"answer_on"`
	AnswerOff string `json:"answer_off"`
}

// TenantConfig is the flat persisted tenant configuration, rewritten in
// full on every toggle change.
type TenantConfig struct {
	SupportChat   int64                   `json:"support_chat"`
	AdminCommands map[string]ToggleConfig `json:"admin_commands"`
}

// Store is the content-loading collaborator consumed by the tenant
// registry. Implementations are file-backed in this repo.
type Store interface {
	TenantIDs() ([]int64, error)
	Lexicons(tenantID int64) (Lexicons, error)
	Messages(tenantID int64) (Messages, error)
	Helpers(tenantID int64) ([]Helper, error)
	RolePlay(tenantID int64) (map[string]string, error)
	TenantConfig(tenantID int64) (TenantConfig, error)
	WriteTenantConfig(tenantID int64, cfg TenantConfig) error
}
