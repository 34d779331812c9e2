package models

import "time"

// User is the identity half of a /auth/me response
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Organization is the tenant the current user belongs to
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan Plan   `json:"plan"`
}

// Me represents the identity and organization of the logged in user
type Me struct {
	User         User         `json:"user"`
	Organization Organization `json:"organization"`
}

// TokenPair is returned by login, register and refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
}

// Conversation is a summary entry of the assistant's conversation history
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ChatRole is the author of a chat message
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// Source is a document excerpt an assistant answer was grounded on
type Source struct {
	DocumentID string `json:"document_id,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// ChatMessage is one entry of a chat transcript
type ChatMessage struct {
	Role    ChatRole `json:"role" yaml:"role"`
	Content string   `json:"content" yaml:"content"`
	Sources []Source `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// Document is an uploaded file indexed for retrieval
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Indexing states of a document
const (
	DocumentProcessing = "processing"
	DocumentReady      = "ready"
	DocumentFailed     = "failed"
)

// DocumentStatus is the indexing state of a single document
type DocumentStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Pending reports whether indexing has not finished yet
func (s DocumentStatus) Pending() bool {
	return s.Status == DocumentProcessing
}

// Role is a member's role inside an organization
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Invitable reports whether a new member may be invited with this role
func (r Role) Invitable() bool {
	return r == RoleAdmin || r == RoleMember
}

// Member is one seat of the organization
type Member struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberList is the team page payload
type MemberList struct {
	Members    []Member `json:"members"`
	SeatsUsed  int      `json:"seats_used"`
	SeatsLimit *int     `json:"seats_limit"`
}

// AuditLogItem is a single recorded action
type AuditLogItem struct {
	ID        int64                  `json:"id"`
	OrgID     string                 `json:"org_id"`
	UserID    *string                `json:"user_id"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"created_at"`
}

// AuditLogPage is one page of audit log results
type AuditLogPage struct {
	Items []AuditLogItem `json:"items"`
	Total int            `json:"total"`
}
