package transcript

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/strrl/aurora-cli/pkg/models"
)

func conversation(pairs ...string) []models.ChatMessage {
	var msgs []models.ChatMessage
	for i, content := range pairs {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs = append(msgs, models.ChatMessage{Role: role, Content: content})
	}
	return msgs
}

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := NewArchive(filepath.Join(t.TempDir(), "transcripts"))
	if err != nil {
		t.Fatalf("NewArchive() error = %v", err)
	}
	return a
}

func TestArchive_SaveReplaces(t *testing.T) {
	a := newTestArchive(t)
	if err := a.Save("c1", conversation("hi", "hello")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := a.Save("c1", conversation("hi", "hello", "more", "sure")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(a.Dir(), "c1.jsonl"))
	if err != nil {
		t.Fatalf("reading archive file: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 4 {
		t.Errorf("archive file has %d lines, want 4", lines)
	}

	entries, _ := os.ReadDir(a.Dir())
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestArchive_RejectsUnsafeIDs(t *testing.T) {
	a := newTestArchive(t)
	for _, id := range []string{"", "../escape", "a/b", "semi;colon"} {
		if err := a.Save(id, conversation("x")); err == nil {
			t.Errorf("Save(%q) should fail", id)
		}
		if _, err := a.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestArchive_ListEmpty(t *testing.T) {
	a := newTestArchive(t)
	got, err := a.List(context.Background(), "", 10)
	if err != nil || len(got) != 0 {
		t.Errorf("List() on empty archive = %v, %v", got, err)
	}
}

func TestArchive_ListAndGet(t *testing.T) {
	a := newTestArchive(t)
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	a.now = func() time.Time { return base }
	if err := a.Save("older", conversation("What is our refund policy?", "Refunds within 30 days.")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	a.now = func() time.Time { return base.Add(time.Hour) }
	if err := a.Save("newer", conversation("Summarize the Q3 report", "Revenue grew.", "And costs?", "Flat.")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	ctx := context.Background()
	list, err := a.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() = %+v, want 2 entries", list)
	}
	if list[0].ID != "newer" || list[0].MessageCount != 4 || list[0].Title != "Summarize the Q3 report" {
		t.Errorf("List()[0] = %+v", list[0])
	}
	if !list[0].UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("List()[0].UpdatedAt = %v", list[0].UpdatedAt)
	}

	filtered, err := a.List(ctx, "REFUND", 10)
	if err != nil {
		t.Fatalf("List(grep) error = %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "older" || filtered[0].MessageCount != 2 {
		t.Errorf("List(grep) = %+v", filtered)
	}

	limited, err := a.List(ctx, "", 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("List(limit 1) = %+v, %v", limited, err)
	}

	tr, err := a.Get(ctx, "newer")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if tr.MessageCount != 4 || tr.Messages[2].Content != "And costs?" || tr.Messages[3].Role != models.RoleAssistant {
		t.Errorf("Get() = %+v", tr)
	}

	if _, err := a.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
	if err := a.Delete("older"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := a.Delete("older"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}
