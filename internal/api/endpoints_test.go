package api

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/strrl/aurora-cli/internal/credentials"
	"github.com/strrl/aurora-cli/internal/testutil"
	"github.com/strrl/aurora-cli/pkg/models"
)

func TestAuth_RegisterLoginAndReset(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newTestClient(t, b.URL(), credentials.NewMemoryStore(credentials.Pair{}), nil)
	ctx := context.Background()

	pair, err := c.Register(ctx, "Acme Labs", "owner@acme.test", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Errorf("Register() = %+v, want both tokens", pair)
	}

	_, err = c.Register(ctx, "Other", "second@acme.test", "short")
	if got := Detail(err, ""); got != "String should have at least 8 characters" {
		t.Errorf("validation detail = %q", got)
	}

	_, err = c.Login(ctx, "owner@acme.test", "wrong-password")
	if StatusOf(err) != 400 || Detail(err, "") != "Incorrect email or password" {
		t.Errorf("Login() with bad password error = %v", err)
	}

	if err := c.RequestPasswordReset(ctx, "owner@acme.test"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	token := b.ResetToken("owner@acme.test")
	if err := c.ConfirmPasswordReset(ctx, token, "new-password-1"); err != nil {
		t.Fatalf("ConfirmPasswordReset() error = %v", err)
	}
	if _, err := c.Login(ctx, "owner@acme.test", "new-password-1"); err != nil {
		t.Errorf("Login() after reset error = %v", err)
	}
	if err := c.ConfirmPasswordReset(ctx, token, "another-password"); StatusOf(err) != 400 {
		t.Errorf("reusing a reset token should fail, got %v", err)
	}
}

func TestAssistant_ChatStreamAndQuota(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newTestClient(t, b.URL(), loggedIn(t, b), nil)
	ctx := context.Background()

	b.SetChat(testutil.ChatScript{Frames: []string{"data: A", "data: B", "data: [DONE]"}})
	body, err := c.Chat(ctx, ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	raw, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if string(raw) != "data: A\r\n\r\ndata: B\r\n\r\ndata: [DONE]\r\n\r\n" {
		t.Errorf("stream body = %q", raw)
	}
	if _, sent := b.LastChatRequest()["conversation_id"]; sent {
		t.Error("conversation_id must be omitted when empty")
	}

	b.SetChat(testutil.ChatScript{Status: 429, Detail: "AI query limit exceeded for current plan. Upgrade to continue."})
	_, err = c.Chat(ctx, ChatRequest{Message: "again", ConversationID: "c-1"})
	if !IsQuotaLimit(err) {
		t.Fatalf("Chat() error = %v, want 429", err)
	}
	if got := Detail(err, "fallback"); got != "AI query limit exceeded for current plan. Upgrade to continue." {
		t.Errorf("Detail() = %q", got)
	}
	if got := b.LastChatRequest()["conversation_id"]; got != "c-1" {
		t.Errorf("conversation_id = %v", got)
	}
}

func TestAssistant_ConversationsArePlanGated(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newTestClient(t, b.URL(), loggedIn(t, b), nil)
	ctx := context.Background()

	if _, err := c.Conversations(ctx); !IsForbidden(err) {
		t.Errorf("free plan Conversations() error = %v, want 403", err)
	}

	b.SetPlan(models.PlanPro)
	want := b.AddConversation("Quarterly report")
	convs, err := c.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if len(convs) != 1 || convs[0].ID != want.ID || convs[0].Title != want.Title {
		t.Errorf("Conversations() = %+v", convs)
	}
}

func TestDocuments_Lifecycle(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newTestClient(t, b.URL(), loggedIn(t, b), nil)
	ctx := context.Background()

	status, err := c.UploadDocument(ctx, "notes.txt", strings.NewReader("hello aurora"))
	if err != nil {
		t.Fatalf("UploadDocument() error = %v", err)
	}
	if status.ID == "" || status.Status != "processing" {
		t.Errorf("UploadDocument() = %+v", status)
	}

	docs, err := c.Documents(ctx)
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if len(docs) != 1 || docs[0].Filename != "notes.txt" || docs[0].SizeBytes != int64(len("hello aurora")) {
		t.Errorf("Documents() = %+v", docs)
	}

	got, err := c.DocumentStatus(ctx, status.ID)
	if err != nil || got.ID != status.ID {
		t.Errorf("DocumentStatus() = %+v, %v", got, err)
	}

	if err := c.DeleteDocument(ctx, status.ID); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if _, err := c.DocumentStatus(ctx, status.ID); !IsNotFound(err) {
		t.Errorf("DocumentStatus() after delete error = %v, want 404", err)
	}

	if _, err := c.UploadDocument(ctx, "empty.txt", strings.NewReader("")); Detail(err, "") != "Empty file" {
		t.Errorf("empty upload error = %v", err)
	}
}

func TestDocuments_QuotaLimit(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newTestClient(t, b.URL(), loggedIn(t, b), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := c.UploadDocument(ctx, "doc.txt", strings.NewReader("x")); err != nil {
			t.Fatalf("upload %d error = %v", i, err)
		}
	}
	if _, err := c.UploadDocument(ctx, "doc.txt", strings.NewReader("x")); !IsQuotaLimit(err) {
		t.Errorf("sixth upload on free plan error = %v, want 429", err)
	}
}

func TestTeam_InviteAcceptRoleRemove(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetPlan(models.PlanPro)
	c := newTestClient(t, b.URL(), loggedIn(t, b), nil)
	ctx := context.Background()

	if err := c.Invite(ctx, "new@acme.test", models.RoleOwner); err == nil {
		t.Error("inviting as owner should be rejected client-side")
	}
	if err := c.Invite(ctx, "new@acme.test", models.RoleMember); err != nil {
		t.Fatalf("Invite() error = %v", err)
	}

	pair, err := c.AcceptInvite(ctx, b.InviteToken("new@acme.test"), "password123")
	if err != nil || pair.AccessToken == "" {
		t.Fatalf("AcceptInvite() = %+v, %v", pair, err)
	}

	team, err := c.Team(ctx)
	if err != nil {
		t.Fatalf("Team() error = %v", err)
	}
	if team.SeatsUsed != 2 || team.SeatsLimit == nil || *team.SeatsLimit != 5 {
		t.Errorf("Team() seats = %d/%v", team.SeatsUsed, team.SeatsLimit)
	}
	var newID string
	for _, m := range team.Members {
		if m.Email == "new@acme.test" {
			newID = m.ID
		}
	}
	if newID == "" {
		t.Fatalf("invited member missing from %+v", team.Members)
	}

	if err := c.UpdateMemberRole(ctx, newID, models.RoleAdmin); err != nil {
		t.Errorf("UpdateMemberRole() error = %v", err)
	}
	if err := c.UpdateMemberRole(ctx, newID, models.Role("root")); err == nil {
		t.Error("unknown role should be rejected")
	}
	if err := c.RemoveMember(ctx, newID); err != nil {
		t.Errorf("RemoveMember() error = %v", err)
	}
	if err := c.RemoveMember(ctx, newID); !IsNotFound(err) {
		t.Errorf("removing twice error = %v, want 404", err)
	}
}

func TestTeam_SeatLimit(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newTestClient(t, b.URL(), loggedIn(t, b), nil)

	err := c.Invite(context.Background(), "new@acme.test", models.RoleMember)
	if !IsQuotaLimit(err) {
		t.Errorf("free plan invite error = %v, want 429", err)
	}
}

func TestBillingAndSettings(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newTestClient(t, b.URL(), loggedIn(t, b), nil)
	ctx := context.Background()

	checkout, err := c.CheckoutSession(ctx, models.PlanPro)
	if err != nil || !strings.HasSuffix(checkout, "/pro") {
		t.Errorf("CheckoutSession() = %q, %v", checkout, err)
	}
	if _, err := c.CheckoutSession(ctx, models.PlanFree); err == nil {
		t.Error("free checkout should be rejected")
	}
	if portal, err := c.BillingPortal(ctx); err != nil || portal == "" {
		t.Errorf("BillingPortal() = %q, %v", portal, err)
	}

	if err := c.UpdateOrganization(ctx, "Acme Renamed"); err != nil {
		t.Fatalf("UpdateOrganization() error = %v", err)
	}
	if got := b.Organization().Name; got != "Acme Renamed" {
		t.Errorf("organization name = %q", got)
	}

	if err := c.ChangePassword(ctx, "wrong", "password456"); Detail(err, "") != "Current password is incorrect" {
		t.Errorf("ChangePassword() with wrong current error = %v", err)
	}
	if err := c.ChangePassword(ctx, "password123", "password456"); err != nil {
		t.Errorf("ChangePassword() error = %v", err)
	}
	if got := b.Password("owner@acme.test"); got != "password456" {
		t.Errorf("stored password = %q", got)
	}

	if err := c.DeleteOrganization(ctx); err != nil {
		t.Errorf("DeleteOrganization() error = %v", err)
	}
}

func TestAuditLog_PlanGatedAndFiltered(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newTestClient(t, b.URL(), loggedIn(t, b), nil)
	ctx := context.Background()

	if _, err := c.AuditLog(ctx, AuditFilter{}); !IsForbidden(err) {
		t.Errorf("free plan AuditLog() error = %v, want 403", err)
	}

	b.SetPlan(models.PlanPro)
	for i := 0; i < 3; i++ {
		if _, err := c.UploadDocument(ctx, "doc.txt", strings.NewReader("x")); err != nil {
			t.Fatalf("UploadDocument() error = %v", err)
		}
	}

	page, err := c.AuditLog(ctx, AuditFilter{Action: "document_uploaded", PageSize: 2})
	if err != nil {
		t.Fatalf("AuditLog() error = %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 {
		t.Errorf("AuditLog() total=%d items=%d, want 3 and 2", page.Total, len(page.Items))
	}
	page, err = c.AuditLog(ctx, AuditFilter{Action: "document_uploaded", PageSize: 2, Page: 2})
	if err != nil || len(page.Items) != 1 {
		t.Errorf("AuditLog() page 2 = %+v, %v", page, err)
	}
}

func TestAuditFilter_Query(t *testing.T) {
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		filter AuditFilter
		want   url.Values
	}{
		{
			name:   "defaults",
			filter: AuditFilter{},
			want:   url.Values{"page": {"1"}, "page_size": {"20"}},
		},
		{
			name:   "page size capped",
			filter: AuditFilter{Page: 3, PageSize: 500},
			want:   url.Values{"page": {"3"}, "page_size": {"100"}},
		},
		{
			name:   "all filters",
			filter: AuditFilter{Action: "ai_query", UserID: "u-1", Start: start, End: start.Add(24 * time.Hour), PageSize: 5},
			want: url.Values{
				"action": {"ai_query"}, "user_id": {"u-1"},
				"start": {"2026-10-01T00:00:00Z"}, "end": {"2026-10-02T00:00:00Z"},
				"page": {"1"}, "page_size": {"5"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.query().Encode(); got != tt.want.Encode() {
				t.Errorf("query() = %s, want %s", got, tt.want.Encode())
			}
		})
	}
}
