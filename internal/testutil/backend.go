// Package testutil provides an in-memory Aurora backend for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/strrl/aurora-cli/pkg/models"
)

// ChatScript controls the next /assistant/chat responses
type ChatScript struct {
	Status int      // 0 means 200
	Detail string   // error detail for non-200 statuses
	Frames []string // raw lines, each written followed by "\r\n\r\n"
}

type account struct {
	password string
	user     models.User
}

type planLimits struct {
	seats, queries, documents *int
}

func limitsFor(plan models.Plan) planLimits {
	n := func(v int) *int { return &v }
	switch plan {
	case models.PlanPro:
		return planLimits{seats: n(5), queries: n(500)}
	case models.PlanEnterprise:
		return planLimits{}
	default:
		return planLimits{seats: n(1), queries: n(50), documents: n(5)}
	}
}

// Backend is a stateful fake of the Aurora HTTP API with a single organization
type Backend struct {
	Server *httptest.Server

	mu            sync.Mutex
	org           models.Organization
	accounts      map[string]*account // by email
	access        map[string]string   // access token -> email
	refresh       map[string]string   // refresh token -> email
	resets        map[string]string   // reset token -> email
	invites       map[string]models.Role
	inviteEmails  map[string]string
	documents     []models.Document
	conversations []models.Conversation
	audit         []models.AuditLogItem
	aiQueries     int
	chat          ChatScript
	lastChat      map[string]interface{}
	refreshCalls  int
	refreshDelay  time.Duration
	hits          map[string]int
	tokenSeq      int
}

// NewBackend starts a fake backend, closed when the test ends
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		org:          models.Organization{ID: uuid.NewString(), Name: "Acme", Slug: "acme", Plan: models.PlanFree},
		accounts:     make(map[string]*account),
		access:       make(map[string]string),
		refresh:      make(map[string]string),
		resets:       make(map[string]string),
		invites:      make(map[string]models.Role),
		inviteEmails: make(map[string]string),
		hits:         make(map[string]int),
		chat:         ChatScript{Frames: []string{"data: Hello", "data:  world", "data: [DONE]"}},
	}
	b.Server = httptest.NewServer(b.router())
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL of the fake backend
func (b *Backend) URL() string {
	return b.Server.URL
}

func (b *Backend) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(b.count)

	r.HandleFunc("/auth/register", b.handleRegister).Methods("POST")
	r.HandleFunc("/auth/login", b.handleLogin).Methods("POST")
	r.HandleFunc("/auth/refresh", b.handleRefresh).Methods("POST")
	r.HandleFunc("/auth/password/reset", b.handlePasswordReset).Methods("POST")
	r.HandleFunc("/auth/password/reset/confirm", b.handlePasswordResetConfirm).Methods("POST")
	r.HandleFunc("/auth/me", b.authed(b.handleMe)).Methods("GET")

	r.HandleFunc("/usage/", b.authed(b.handleUsage)).Methods("GET")

	r.HandleFunc("/assistant/chat", b.authed(b.handleChat)).Methods("POST")
	r.HandleFunc("/assistant/conversations", b.authed(b.handleConversations)).Methods("GET")

	r.HandleFunc("/documents/", b.authed(b.handleDocuments)).Methods("GET")
	r.HandleFunc("/documents/upload", b.authed(b.handleUpload)).Methods("POST")
	r.HandleFunc("/documents/{id}/status", b.authed(b.handleDocumentStatus)).Methods("GET")
	r.HandleFunc("/documents/{id}", b.authed(b.handleDeleteDocument)).Methods("DELETE")

	r.HandleFunc("/team/", b.authed(b.handleTeam)).Methods("GET")
	r.HandleFunc("/team/invites", b.authed(b.handleInvite)).Methods("POST")
	r.HandleFunc("/team/invites/accept", b.handleAcceptInvite).Methods("POST")
	r.HandleFunc("/team/members/{id}/role", b.authed(b.handleMemberRole)).Methods("PATCH")
	r.HandleFunc("/team/members/{id}", b.authed(b.handleRemoveMember)).Methods("DELETE")

	r.HandleFunc("/billing/checkout-session", b.authed(b.handleCheckout)).Methods("POST")
	r.HandleFunc("/billing/portal", b.authed(b.handlePortal)).Methods("GET")

	r.HandleFunc("/settings/org", b.authed(b.handleRenameOrg)).Methods("PATCH")
	r.HandleFunc("/settings/org", b.authed(b.handleDeleteOrg)).Methods("DELETE")
	r.HandleFunc("/settings/profile/password", b.authed(b.handleChangePassword)).Methods("POST")

	r.HandleFunc("/audit-log/", b.authed(b.handleAuditLog)).Methods("GET")
	return r
}

// ----- test controls -----

// AddUser creates an account in the organization
func (b *Backend) AddUser(email, password string, role models.Role) models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(email, password, role)
}

func (b *Backend) addUserLocked(email, password string, role models.Role) models.User {
	u := models.User{ID: uuid.NewString(), Email: email, Role: role}
	b.accounts[email] = &account{password: password, user: u}
	return u
}

// SetPlan changes the organization's plan
func (b *Backend) SetPlan(plan models.Plan) {
	b.mu.Lock()
	b.org.Plan = plan
	b.mu.Unlock()
}

// Organization returns the current organization
func (b *Backend) Organization() models.Organization {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.org
}

// IssueTokens creates a valid token pair for an existing account
func (b *Backend) IssueTokens(email string) models.TokenPair {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(email)
}

// ExpireAccessTokens invalidates every access token; refresh tokens stay valid
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	b.access = make(map[string]string)
	b.mu.Unlock()
}

// RevokeRefreshTokens invalidates every refresh token
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	b.refresh = make(map[string]string)
	b.mu.Unlock()
}

// SetRefreshDelay slows down /auth/refresh so concurrent callers overlap
func (b *Backend) SetRefreshDelay(d time.Duration) {
	b.mu.Lock()
	b.refreshDelay = d
	b.mu.Unlock()
}

// RefreshCalls returns how many times /auth/refresh was hit
func (b *Backend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

// Hits returns how many requests reached "METHOD /path"
func (b *Backend) Hits(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[method+" "+path]
}

// SetChat scripts the chat endpoint
func (b *Backend) SetChat(script ChatScript) {
	b.mu.Lock()
	b.chat = script
	b.mu.Unlock()
}

// LastChatRequest returns the decoded body of the last chat submission
func (b *Backend) LastChatRequest() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastChat
}

// SetAIQueries sets the current period's query count
func (b *Backend) SetAIQueries(n int) {
	b.mu.Lock()
	b.aiQueries = n
	b.mu.Unlock()
}

// AddConversation records a conversation in the history
func (b *Backend) AddConversation(title string) models.Conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now().UTC().Truncate(time.Second)
	c := models.Conversation{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
	b.conversations = append(b.conversations, c)
	return c
}

// ResetToken returns the mailed reset token for email, if any
func (b *Backend) ResetToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token, e := range b.resets {
		if e == email {
			return token
		}
	}
	return ""
}

// InviteToken returns the pending invite token for email, if any
func (b *Backend) InviteToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token, e := range b.inviteEmails {
		if e == email {
			return token
		}
	}
	return ""
}

// Password returns the stored password of an account
func (b *Backend) Password(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.accounts[email]; ok {
		return a.password
	}
	return ""
}

// FinishIndexing moves every processing document to status
func (b *Backend) FinishIndexing(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.documents {
		if b.documents[i].Status == models.DocumentProcessing {
			b.documents[i].Status = status
			b.documents[i].ChunkCount = 3
		}
	}
}

// Documents returns a copy of the stored documents
func (b *Backend) Documents() []models.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Document{}, b.documents...)
}

// ----- plumbing -----

func (b *Backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, a *account)

func (b *Backend) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		email, ok := b.access[token]
		a := b.accounts[email]
		b.mu.Unlock()
		if !ok || a == nil {
			writeError(w, http.StatusUnauthorized, "Could not validate credentials", "invalid_token")
			return
		}
		h(w, r, a)
	}
}

func (b *Backend) issueLocked(email string) models.TokenPair {
	b.tokenSeq++
	pair := models.TokenPair{
		AccessToken:  fmt.Sprintf("access-%d", b.tokenSeq),
		RefreshToken: fmt.Sprintf("refresh-%d", b.tokenSeq),
		TokenType:    "bearer",
	}
	b.access[pair.AccessToken] = email
	b.refresh[pair.RefreshToken] = email
	return pair
}

func (b *Backend) recordLocked(a *account, action string, details map[string]interface{}) {
	var userID *string
	if a != nil {
		id := a.user.ID
		userID = &id
	}
	b.audit = append(b.audit, models.AuditLogItem{
		ID:        int64(len(b.audit) + 1),
		OrgID:     b.org.ID,
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail, code string) {
	writeJSON(w, status, map[string]string{"detail": detail, "code": code})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid body", "validation_error")
		return false
	}
	return true
}

var statusOK = map[string]string{"status": "ok"}

// ----- handlers -----

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OrgName  string `json:"org_name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if len(in.Password) < 8 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"detail": []map[string]string{{"msg": "String should have at least 8 characters"}},
		})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[in.Email]; exists {
		writeError(w, http.StatusBadRequest, "Email already registered", "email_taken")
		return
	}
	b.org.Name = in.OrgName
	b.org.Slug = strings.ToLower(strings.ReplaceAll(in.OrgName, " ", "-"))
	a := b.addUserLocked(in.Email, in.Password, models.RoleOwner)
	b.recordLocked(b.accounts[a.Email], "org_created", nil)
	writeJSON(w, http.StatusOK, b.issueLocked(in.Email))
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a, exists := b.accounts[in.Email]
	if !exists || a.password != in.Password {
		writeError(w, http.StatusBadRequest, "Incorrect email or password", "bad_credentials")
		return
	}
	writeJSON(w, http.StatusOK, b.issueLocked(in.Email))
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeBody(w, r, &in) {
		return
	}

	b.mu.Lock()
	b.refreshCalls++
	delay := b.refreshDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	email, valid := b.refresh[in.RefreshToken]
	if !valid {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token", "invalid_token")
		return
	}
	delete(b.refresh, in.RefreshToken)
	writeJSON(w, http.StatusOK, b.issueLocked(email))
}

func (b *Backend) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	b.mu.Lock()
	if _, exists := b.accounts[in.Email]; exists {
		b.resets["reset-"+uuid.NewString()] = in.Email
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, statusOK)
}

func (b *Backend) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	email, valid := b.resets[in.Token]
	if !valid {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token", "invalid_token")
		return
	}
	delete(b.resets, in.Token)
	b.accounts[email].password = in.NewPassword
	writeJSON(w, http.StatusOK, statusOK)
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request, a *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, models.Me{User: a.user, Organization: b.org})
}

func (b *Backend) usageLocked() models.UsageMetrics {
	limits := limitsFor(b.org.Plan)
	u := models.UsageMetrics{
		Period:            time.Now().UTC().Format("2006-01"),
		AIQueriesUsed:     b.aiQueries,
		AIQueriesLimit:    limits.queries,
		DocumentsUploaded: len(b.documents),
		DocumentsLimit:    limits.documents,
		SeatsUsed:         len(b.accounts),
		SeatsLimit:        limits.seats,
		Warnings:          []string{},
	}
	warn := func(used int, limit *int, label string) {
		if limit == nil || *limit == 0 {
			return
		}
		ratio := float64(used) / float64(*limit)
		if ratio >= 0.8 && ratio < 1 {
			u.Warnings = append(u.Warnings, fmt.Sprintf("You've used %d%% of your %s limit this month.", int(ratio*100), label))
		}
	}
	warn(u.AIQueriesUsed, u.AIQueriesLimit, "AI query")
	warn(u.DocumentsUploaded, u.DocumentsLimit, "document upload")
	warn(u.SeatsUsed, u.SeatsLimit, "team seat")
	return u
}

func (b *Backend) handleUsage(w http.ResponseWriter, r *http.Request, a *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"usage": b.usageLocked()})
}

func (b *Backend) handleChat(w http.ResponseWriter, r *http.Request, a *account) {
	var in map[string]interface{}
	if !decodeBody(w, r, &in) {
		return
	}

	b.mu.Lock()
	b.lastChat = in
	script := b.chat
	limit := limitsFor(b.org.Plan).queries
	if script.Status == 0 && limit != nil && b.aiQueries >= *limit {
		script = ChatScript{Status: http.StatusTooManyRequests, Detail: "AI query limit exceeded for current plan. Upgrade to continue."}
	}
	if script.Status == 0 || script.Status == http.StatusOK {
		b.aiQueries++
		b.recordLocked(a, "ai_query", nil)
	}
	b.mu.Unlock()

	if script.Status != 0 && script.Status != http.StatusOK {
		writeError(w, script.Status, script.Detail, "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, frame := range script.Frames {
		if _, err := io.WriteString(w, frame+"\r\n\r\n"); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (b *Backend) handleConversations(w http.ResponseWriter, r *http.Request, a *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.org.Plan.Allows(models.FeatureHistory) {
		writeError(w, http.StatusForbidden, "Conversation history is available on Pro and Enterprise plans.", "plan_required")
		return
	}
	convs := append([]models.Conversation{}, b.conversations...)
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}

func (b *Backend) handleDocuments(w http.ResponseWriter, r *http.Request, a *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	docs := append([]models.Document{}, b.documents...)
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request, a *account) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file is required", "validation_error")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil || len(content) == 0 {
		writeError(w, http.StatusBadRequest, "Empty file", "empty_file")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if limit := limitsFor(b.org.Plan).documents; limit != nil && len(b.documents) >= *limit {
		writeError(w, http.StatusTooManyRequests, "Document limit reached for current plan.", "limit_exceeded")
		return
	}
	doc := models.Document{
		ID:        uuid.NewString(),
		Filename:  header.Filename,
		SizeBytes: int64(len(content)),
		Status:    models.DocumentProcessing,
		CreatedAt: time.Now().UTC(),
	}
	b.documents = append(b.documents, doc)
	b.recordLocked(a, "document_uploaded", map[string]interface{}{"filename": doc.Filename})
	writeJSON(w, http.StatusAccepted, models.DocumentStatus{ID: doc.ID, Status: doc.Status})
}

func (b *Backend) findDocumentLocked(id string) int {
	for i, d := range b.documents {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (b *Backend) handleDocumentStatus(w http.ResponseWriter, r *http.Request, a *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.findDocumentLocked(mux.Vars(r)["id"])
	if i < 0 {
		writeError(w, http.StatusNotFound, "Document not found", "not_found")
		return
	}
	d := b.documents[i]
	writeJSON(w, http.StatusOK, models.DocumentStatus{ID: d.ID, Status: d.Status})
}

func (b *Backend) handleDeleteDocument(w http.ResponseWriter, r *http.Request, a *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.findDocumentLocked(mux.Vars(r)["id"])
	if i < 0 {
		writeError(w, http.StatusNotFound, "Document not found", "not_found")
		return
	}
	b.documents = append(b.documents[:i], b.documents[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) membersLocked() []models.Member {
	members := make([]models.Member, 0, len(b.accounts))
	for _, acc := range b.accounts {
		members = append(members, models.Member{ID: acc.user.ID, Email: acc.user.Email, Role: acc.user.Role})
	}
	return members
}

func (b *Backend) handleTeam(w http.ResponseWriter, r *http.Request, a *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, models.MemberList{
		Members:    b.membersLocked(),
		SeatsUsed:  len(b.accounts),
		SeatsLimit: limitsFor(b.org.Plan).seats,
	})
}

func (b *Backend) handleInvite(w http.ResponseWriter, r *http.Request, a *account) {
	var in struct {
		Email string      `json:"email"`
		Role  models.Role `json:"role"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if a.user.Role == models.RoleMember {
		writeError(w, http.StatusForbidden, "Insufficient role", "forbidden")
		return
	}
	if _, exists := b.accounts[in.Email]; exists {
		writeError(w, http.StatusBadRequest, "User already in organization", "already_member")
		return
	}
	if seats := limitsFor(b.org.Plan).seats; seats != nil && len(b.accounts) >= *seats {
		writeError(w, http.StatusTooManyRequests, "Seat limit reached for current plan.", "limit_exceeded")
		return
	}
	token := "invite-" + uuid.NewString()
	b.invites[token] = in.Role
	b.inviteEmails[token] = in.Email
	b.recordLocked(a, "member_invited", map[string]interface{}{"email": in.Email})
	writeJSON(w, http.StatusOK, statusOK)
}

func (b *Backend) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	role, valid := b.invites[in.Token]
	if !valid {
		writeError(w, http.StatusBadRequest, "Invalid or expired invite", "invalid_token")
		return
	}
	email := b.inviteEmails[in.Token]
	delete(b.invites, in.Token)
	delete(b.inviteEmails, in.Token)
	b.addUserLocked(email, in.Password, role)
	writeJSON(w, http.StatusOK, b.issueLocked(email))
}

func (b *Backend) accountByIDLocked(id string) *account {
	for _, acc := range b.accounts {
		if acc.user.ID == id {
			return acc
		}
	}
	return nil
}

func (b *Backend) handleMemberRole(w http.ResponseWriter, r *http.Request, a *account) {
	var in struct {
		Role models.Role `json:"role"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	target := b.accountByIDLocked(mux.Vars(r)["id"])
	if target == nil {
		writeError(w, http.StatusNotFound, "Member not found", "not_found")
		return
	}
	if target == a && a.user.Role == models.RoleOwner && in.Role != models.RoleOwner {
		writeError(w, http.StatusBadRequest, "Owner cannot demote self", "invalid_operation")
		return
	}
	target.user.Role = in.Role
	writeJSON(w, http.StatusOK, statusOK)
}

func (b *Backend) handleRemoveMember(w http.ResponseWriter, r *http.Request, a *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	target := b.accountByIDLocked(mux.Vars(r)["id"])
	if target == nil {
		writeError(w, http.StatusNotFound, "Member not found", "not_found")
		return
	}
	if target == a {
		writeError(w, http.StatusBadRequest, "Owner cannot remove self", "invalid_operation")
		return
	}
	delete(b.accounts, target.user.Email)
	writeJSON(w, http.StatusOK, statusOK)
}

func (b *Backend) handleCheckout(w http.ResponseWriter, r *http.Request, a *account) {
	var in struct {
		Plan models.Plan `json:"plan"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Plan == models.PlanFree {
		writeError(w, http.StatusBadRequest, "Free plan does not require checkout", "invalid_plan")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": "https://checkout.example.test/" + string(in.Plan)})
}

func (b *Backend) handlePortal(w http.ResponseWriter, r *http.Request, a *account) {
	writeJSON(w, http.StatusOK, map[string]string{"url": "https://billing.example.test/portal"})
}

func (b *Backend) handleRenameOrg(w http.ResponseWriter, r *http.Request, a *account) {
	var in struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	b.mu.Lock()
	b.org.Name = in.Name
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, statusOK)
}

func (b *Backend) handleDeleteOrg(w http.ResponseWriter, r *http.Request, a *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a.user.Role != models.RoleOwner {
		writeError(w, http.StatusForbidden, "Insufficient role", "forbidden")
		return
	}
	b.accounts = make(map[string]*account)
	b.access = make(map[string]string)
	b.refresh = make(map[string]string)
	b.documents = nil
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleChangePassword(w http.ResponseWriter, r *http.Request, a *account) {
	var in struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if a.password != in.Current {
		writeError(w, http.StatusBadRequest, "Current password is incorrect", "bad_credentials")
		return
	}
	a.password = in.New
	writeJSON(w, http.StatusOK, statusOK)
}

func (b *Backend) handleAuditLog(w http.ResponseWriter, r *http.Request, a *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.org.Plan.Allows(models.FeatureAuditLog) {
		writeError(w, http.StatusForbidden, "Audit log is available on Pro and Enterprise plans.", "plan_required")
		return
	}

	q := r.URL.Query()
	var items []models.AuditLogItem
	for _, item := range b.audit {
		if action := q.Get("action"); action != "" && item.Action != action {
			continue
		}
		if userID := q.Get("user_id"); userID != "" && (item.UserID == nil || *item.UserID != userID) {
			continue
		}
		items = append(items, item)
	}

	page, size := 1, 20
	fmt.Sscan(q.Get("page"), &page)
	fmt.Sscan(q.Get("page_size"), &size)
	total := len(items)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	writeJSON(w, http.StatusOK, models.AuditLogPage{Items: append([]models.AuditLogItem{}, items[start:end]...), Total: total})
}
