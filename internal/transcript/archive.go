// Package transcript keeps finished assistant transcripts on disk, one JSONL
// file per conversation, and queries them with DuckDB.
package transcript

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/strrl/aurora-cli/internal/logger"
	"github.com/strrl/aurora-cli/pkg/models"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

var (
	// ErrNotFound is returned for an unknown transcript id
	ErrNotFound = errors.New("transcript not found")

	validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

// record is one line of an archive file
type record struct {
	TranscriptID string `json:"transcript_id"`
	Seq          int    `json:"seq"`
	Role         string `json:"role"`
	Content      string `json:"content"`
	ArchivedAt   string `json:"archived_at"`
}

// Summary describes one archived transcript
type Summary struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	MessageCount int       `json:"message_count" yaml:"message_count"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// Transcript is a full archived conversation
type Transcript struct {
	Summary  `yaml:",inline"`
	Messages []models.ChatMessage `json:"messages" yaml:"messages"`
}

// Archive stores transcripts under a directory
type Archive struct {
	dir string
	now func() time.Time
}

// NewArchive creates the directory if needed
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create transcript dir %s: %w", dir, err)
	}
	return &Archive{dir: dir, now: time.Now}, nil
}

// Dir returns the archive directory
func (a *Archive) Dir() string {
	return a.dir
}

func (a *Archive) path(id string) string {
	return filepath.Join(a.dir, id+".jsonl")
}

func (a *Archive) pattern() string {
	return filepath.Join(a.dir, "*.jsonl")
}

// Save replaces the transcript stored under id
func (a *Archive) Save(id string, messages []models.ChatMessage) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid transcript id %q", id)
	}

	tmp, err := os.CreateTemp(a.dir, "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save transcript %s: %w", id, err)
	}
	defer os.Remove(tmp.Name())

	stamp := a.now().UTC().Format(timeLayout)
	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for i, m := range messages {
		rec := record{TranscriptID: id, Seq: i, Role: string(m.Role), Content: m.Content, ArchivedAt: stamp}
		if err := enc.Encode(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode transcript %s: %w", id, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save transcript %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save transcript %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), a.path(id)); err != nil {
		return fmt.Errorf("failed to save transcript %s: %w", id, err)
	}
	logger.LogDebug("archived transcript", "id", id, "messages", len(messages))
	return nil
}

// Delete removes a transcript
func (a *Archive) Delete(id string) error {
	if !validID.MatchString(id) {
		return ErrNotFound
	}
	err := os.Remove(a.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (a *Archive) empty() (bool, error) {
	matches, err := filepath.Glob(a.pattern())
	if err != nil {
		return false, err
	}
	return len(matches) == 0, nil
}

// List returns the most recently updated transcripts first. A non-empty
// grep keeps only transcripts with a message containing it (case-insensitive).
func (a *Archive) List(ctx context.Context, grep string, limit int) ([]Summary, error) {
	if empty, err := a.empty(); err != nil || empty {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	database, err := getDB()
	if err != nil {
		return nil, err
	}

	source := readJSON(a.pattern())
	query := fmt.Sprintf(`
		SELECT
			transcript_id,
			COUNT(*) AS message_count,
			MAX(archived_at) AS updated_at,
			arg_min(content, seq) FILTER (WHERE role = 'user') AS title
		FROM %s
		WHERE transcript_id IN (
			SELECT transcript_id FROM %s
			WHERE ? = '' OR content ILIKE '%%' || ? || '%%'
		)
		GROUP BY transcript_id
		ORDER BY MAX(archived_at) DESC
		LIMIT ?
	`, source, source)

	rows, err := database.QueryContext(ctx, query, grep, grep, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute transcript list query: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		var updatedAt, title sql.NullString
		if err := rows.Scan(&s.ID, &s.MessageCount, &updatedAt, &title); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		s.Title = title.String
		if updatedAt.Valid {
			if t, err := time.Parse(timeLayout, updatedAt.String); err == nil {
				s.UpdatedAt = t.Local()
			}
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Get loads one transcript
func (a *Archive) Get(ctx context.Context, id string) (Transcript, error) {
	var t Transcript
	if !validID.MatchString(id) {
		return t, ErrNotFound
	}
	if _, err := os.Stat(a.path(id)); errors.Is(err, os.ErrNotExist) {
		return t, ErrNotFound
	}

	database, err := getDB()
	if err != nil {
		return t, err
	}

	query := fmt.Sprintf(`
		SELECT role, content, archived_at
		FROM %s
		ORDER BY seq
	`, readJSON(a.path(id)))

	rows, err := database.QueryContext(ctx, query)
	if err != nil {
		return t, fmt.Errorf("failed to execute transcript query: %w", err)
	}
	defer rows.Close()

	t.ID = id
	for rows.Next() {
		var role, content, archivedAt string
		if err := rows.Scan(&role, &content, &archivedAt); err != nil {
			return t, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		m := models.ChatMessage{Role: models.ChatRole(role), Content: content}
		if t.Title == "" && m.Role == models.RoleUser {
			t.Title = content
		}
		if ts, err := time.Parse(timeLayout, archivedAt); err == nil {
			t.UpdatedAt = ts.Local()
		}
		t.Messages = append(t.Messages, m)
	}
	t.MessageCount = len(t.Messages)
	return t, rows.Err()
}
