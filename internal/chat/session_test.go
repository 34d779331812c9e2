package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/strrl/aurora-cli/internal/api"
	"github.com/strrl/aurora-cli/internal/credentials"
	"github.com/strrl/aurora-cli/internal/testutil"
	"github.com/strrl/aurora-cli/pkg/models"
)

type streamerFunc func(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error)

func (f streamerFunc) Chat(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error) {
	return f(ctx, req)
}

func staticStream(body string) streamerFunc {
	return func(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}
}

func failingStream(err error) streamerFunc {
	return func(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error) {
		return nil, err
	}
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *noticeRecorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notices {
		out = append(out, n.Message)
	}
	return out
}

type errReader struct {
	data string
	err  error
}

func (r *errReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestSend_StreamsTokensIntoOneAssistantMessage(t *testing.T) {
	var states []State
	s := NewSession(staticStream("data: A\r\n\r\ndata: B\r\n\r\ndata: [DONE]\r\n\r\n"), Options{
		OnChange: func(st State) { states = append(states, st) },
	})

	if err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := s.State()
	want := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "AB"},
	}
	if len(got.Messages) != len(want) {
		t.Fatalf("messages = %+v, want %+v", got.Messages, want)
	}
	for i := range want {
		if got.Messages[i].Role != want[i].Role || got.Messages[i].Content != want[i].Content {
			t.Errorf("messages[%d] = %+v, want %+v", i, got.Messages[i], want[i])
		}
	}
	if got.Busy {
		t.Error("busy should be cleared after the stream ends")
	}

	// first change: user message appended while busy
	if len(states) == 0 || !states[0].Busy || len(states[0].Messages) != 1 {
		t.Fatalf("first state = %+v", states)
	}
	// earlier snapshots are never mutated by later tokens
	var sawPartial bool
	for _, st := range states {
		if len(st.Messages) == 2 && st.Messages[1].Content == "A" {
			sawPartial = true
		}
	}
	if !sawPartial {
		t.Error("expected a snapshot holding the partial answer \"A\"")
	}
}

func TestSend_QuotaLimit(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		notice string
	}{
		{"server detail", &api.APIError{Status: 429, Detail: "AI query limit exceeded for current plan."}, "AI query limit exceeded for current plan."},
		{"fallback", &api.APIError{Status: 429}, MsgLimitReached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			rec := &noticeRecorder{}
			s := NewSession(streamerFunc(func(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error) {
				calls++
				return nil, tt.err
			}), Options{Notifier: rec})

			if err := s.Send(context.Background(), "hello"); !api.IsQuotaLimit(err) {
				t.Fatalf("Send() error = %v", err)
			}
			st := s.State()
			if !st.AtLimit || st.Busy || st.InputEnabled() {
				t.Errorf("state = %+v, want at limit and idle", st)
			}
			if len(st.Messages) != 1 || st.Messages[0].Role != models.RoleUser {
				t.Errorf("messages = %+v, want only the user message", st.Messages)
			}
			if got := rec.messages(); len(got) != 1 || got[0] != tt.notice {
				t.Errorf("notices = %v, want [%s]", got, tt.notice)
			}

			if err := s.Send(context.Background(), "more"); !errors.Is(err, ErrInputDisabled) {
				t.Errorf("Send() at limit error = %v, want ErrInputDisabled", err)
			}
			if calls != 1 {
				t.Errorf("streamer calls = %d, want 1", calls)
			}
		})
	}
}

func TestSend_Failures(t *testing.T) {
	tests := []struct {
		name         string
		streamer     Streamer
		notice       string
		wantMessages int
	}{
		{
			name:         "server error",
			streamer:     failingStream(&api.APIError{Status: 500, Detail: "boom"}),
			notice:       MsgUnreachable,
			wantMessages: 1,
		},
		{
			name:         "transport error",
			streamer:     failingStream(&api.TransportError{Op: "send", URL: "http://x", Err: errors.New("refused")}),
			notice:       MsgStreamFailed,
			wantMessages: 1,
		},
		{
			name: "mid-stream failure keeps partial answer",
			streamer: streamerFunc(func(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error) {
				return io.NopCloser(&errReader{data: "data: par\n\ndata: tial\n\n", err: errors.New("reset")}), nil
			}),
			notice:       MsgStreamFailed,
			wantMessages: 2,
		},
		{
			name:         "empty body",
			streamer:     staticStream(""),
			notice:       MsgUnreachable,
			wantMessages: 1,
		},
		{
			name:         "body without frames",
			streamer:     staticStream("\r\n\r\n"),
			notice:       MsgUnreachable,
			wantMessages: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &noticeRecorder{}
			s := NewSession(tt.streamer, Options{Notifier: rec})
			if err := s.Send(context.Background(), "q"); err == nil {
				t.Fatal("Send() should fail")
			}
			st := s.State()
			if st.Busy || st.AtLimit {
				t.Errorf("state = %+v, want idle and not at limit", st)
			}
			if len(st.Messages) != tt.wantMessages {
				t.Errorf("messages = %+v", st.Messages)
			}
			if got := rec.messages(); len(got) != 1 || got[0] != tt.notice {
				t.Errorf("notices = %v, want [%s]", got, tt.notice)
			}
		})
	}
}

func TestSend_DoneWithoutTokens(t *testing.T) {
	rec := &noticeRecorder{}
	arch := &archiveRecorder{}
	s := NewSession(staticStream("data: [DONE]\n\n"), Options{Notifier: rec, Archiver: arch})
	if err := s.Send(context.Background(), "q"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := rec.messages(); len(got) != 0 {
		t.Errorf("notices = %v, want none", got)
	}
	if len(arch.ids) != 0 {
		t.Errorf("a reply without tokens was archived: %v", arch.ids)
	}
}

func TestSend_IgnoresEmptyInput(t *testing.T) {
	called := false
	s := NewSession(streamerFunc(func(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error) {
		called = true
		return nil, nil
	}), Options{})

	for _, in := range []string{"", "   ", "\n\t"} {
		if err := s.Send(context.Background(), in); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Send(%q) error = %v", in, err)
		}
	}
	if called || len(s.State().Messages) != 0 {
		t.Error("empty input must not reach the backend or the transcript")
	}
}

func TestSend_OneSubmissionInFlight(t *testing.T) {
	pr, pw := io.Pipe()
	opened := make(chan struct{})
	s := NewSession(streamerFunc(func(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error) {
		close(opened)
		return pr, nil
	}), Options{})

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), "first") }()
	<-opened

	if err := s.Send(context.Background(), "second"); !errors.Is(err, ErrInputDisabled) {
		t.Errorf("concurrent Send() error = %v, want ErrInputDisabled", err)
	}
	if err := s.NewConversation(); !errors.Is(err, ErrInputDisabled) {
		t.Errorf("NewConversation() while busy error = %v", err)
	}

	_, _ = io.WriteString(pw, "data: ok\n\ndata: [DONE]\n\n")
	pw.Close()
	if err := <-done; err != nil {
		t.Fatalf("first Send() error = %v", err)
	}
	if n := len(s.State().Messages); n != 2 {
		t.Errorf("messages = %d, want 2", n)
	}
}

func TestSend_CancelStopsStream(t *testing.T) {
	rec := &noticeRecorder{}
	s := NewSession(streamerFunc(func(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error) {
		pr, pw := io.Pipe()
		go func() {
			_, _ = io.WriteString(pw, "data: partial\n\n")
			<-ctx.Done()
			pw.CloseWithError(ctx.Err())
		}()
		return pr, nil
	}), Options{Notifier: rec})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	if err := s.Send(ctx, "long question"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send() error = %v, want context.Canceled", err)
	}
	if s.State().Busy {
		t.Error("busy should be cleared after cancel")
	}
	if got := rec.messages(); len(got) != 0 {
		t.Errorf("cancellation should not notify, got %v", got)
	}
}

func TestConversationHistory(t *testing.T) {
	var lastReq api.ChatRequest
	streamer := streamerFunc(func(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error) {
		lastReq = req
		return io.NopCloser(strings.NewReader("data: ok\n")), nil
	})

	t.Run("disabled", func(t *testing.T) {
		s := NewSession(streamer, Options{})
		if err := s.SelectConversation("c-1"); !errors.Is(err, ErrHistoryUnavailable) {
			t.Errorf("SelectConversation() error = %v", err)
		}
		if _, err := s.Conversations(context.Background()); !errors.Is(err, ErrHistoryUnavailable) {
			t.Errorf("Conversations() error = %v", err)
		}
		_ = s.Send(context.Background(), "hi")
		if lastReq.ConversationID != "" {
			t.Errorf("conversation_id sent without history: %q", lastReq.ConversationID)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		s := NewSession(streamer, Options{HistoryEnabled: true})
		_ = s.Send(context.Background(), "before")
		if lastReq.ConversationID != "" {
			t.Errorf("no conversation selected, got %q", lastReq.ConversationID)
		}

		if err := s.SelectConversation("c-1"); err != nil {
			t.Fatalf("SelectConversation() error = %v", err)
		}
		if st := s.State(); len(st.Messages) != 0 || st.ConversationID != "c-1" {
			t.Errorf("selecting should clear the transcript, state = %+v", st)
		}
		_ = s.Send(context.Background(), "after")
		if lastReq.ConversationID != "c-1" {
			t.Errorf("conversation_id = %q, want c-1", lastReq.ConversationID)
		}

		s.SetHistoryEnabled(false)
		_ = s.Send(context.Background(), "downgraded")
		if lastReq.ConversationID != "" {
			t.Errorf("conversation_id after downgrade = %q", lastReq.ConversationID)
		}

		s.SetHistoryEnabled(true)
		if err := s.NewConversation(); err != nil {
			t.Fatalf("NewConversation() error = %v", err)
		}
		if st := s.State(); len(st.Messages) != 0 || st.ConversationID != "" {
			t.Errorf("NewConversation() state = %+v", st)
		}
	})
}

type archiveRecorder struct {
	ids      []string
	messages [][]models.ChatMessage
}

func (a *archiveRecorder) Save(id string, messages []models.ChatMessage) error {
	a.ids = append(a.ids, id)
	a.messages = append(a.messages, messages)
	return nil
}

func TestSend_ArchivesFinishedTranscripts(t *testing.T) {
	arch := &archiveRecorder{}
	s := NewSession(staticStream("data: yes\n\ndata: [DONE]\n\n"), Options{Archiver: arch})

	_ = s.Send(context.Background(), "one")
	_ = s.Send(context.Background(), "two")
	if len(arch.ids) != 2 || arch.ids[0] != arch.ids[1] {
		t.Fatalf("archive ids = %v, want the same id twice", arch.ids)
	}
	if n := len(arch.messages[1]); n != 4 {
		t.Errorf("second save holds %d messages, want 4", n)
	}

	_ = s.NewConversation()
	_ = s.Send(context.Background(), "three")
	if len(arch.ids) != 3 || arch.ids[2] == arch.ids[0] {
		t.Errorf("a new conversation should archive under a new id, got %v", arch.ids)
	}

	failing := NewSession(failingStream(&api.APIError{Status: 500}), Options{Archiver: arch})
	_ = failing.Send(context.Background(), "nope")
	if len(arch.ids) != 3 {
		t.Error("failed submissions must not be archived")
	}
}

// replacingArchive keeps the last save per id, like a file per transcript
type replacingArchive struct {
	files map[string][]models.ChatMessage
}

func (a *replacingArchive) Save(id string, messages []models.ChatMessage) error {
	if a.files == nil {
		a.files = map[string][]models.ChatMessage{}
	}
	a.files[id] = messages
	return nil
}

func (a *replacingArchive) holds(question string) bool {
	for _, msgs := range a.files {
		if len(msgs) == 2 && msgs[0].Content == question {
			return true
		}
	}
	return false
}

func TestSelectConversation_KeepsEarlierArchives(t *testing.T) {
	streamer := staticStream("data: answer\n\ndata: [DONE]\n\n")

	tests := []struct {
		name  string
		visit func(t *testing.T, arch *replacingArchive)
	}{
		{
			name: "two sessions",
			visit: func(t *testing.T, arch *replacingArchive) {
				for _, q := range []string{"q1", "q2"} {
					s := NewSession(streamer, Options{HistoryEnabled: true, Archiver: arch})
					if err := s.SelectConversation("c-1"); err != nil {
						t.Fatalf("SelectConversation() error = %v", err)
					}
					if err := s.Send(context.Background(), q); err != nil {
						t.Fatalf("Send(%q) error = %v", q, err)
					}
				}
			},
		},
		{
			name: "reselect in one session",
			visit: func(t *testing.T, arch *replacingArchive) {
				s := NewSession(streamer, Options{HistoryEnabled: true, Archiver: arch})
				for _, q := range []string{"q1", "q2"} {
					if err := s.SelectConversation("c-1"); err != nil {
						t.Fatalf("SelectConversation() error = %v", err)
					}
					if err := s.Send(context.Background(), q); err != nil {
						t.Fatalf("Send(%q) error = %v", q, err)
					}
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arch := &replacingArchive{}
			tt.visit(t, arch)
			if len(arch.files) != 2 {
				t.Fatalf("archive holds %d transcripts, want 2", len(arch.files))
			}
			for _, q := range []string{"q1", "q2"} {
				if !arch.holds(q) {
					t.Errorf("the %s exchange was lost", q)
				}
			}
		})
	}
}

func TestSend_AgainstBackend(t *testing.T) {
	b := testutil.NewBackend(t)
	b.AddUser("owner@acme.test", "password123", models.RoleOwner)
	pair := b.IssueTokens("owner@acme.test")
	client, err := api.New(api.Options{
		BaseURL:     b.URL(),
		Credentials: credentials.NewMemoryStore(credentials.Pair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}),
	})
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}

	rec := &noticeRecorder{}
	s := NewSession(client, Options{Notifier: rec, History: client})
	if err := s.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if msgs := s.State().Messages; len(msgs) != 2 || msgs[1].Content != "Hello world" {
		t.Errorf("messages = %+v", msgs)
	}

	b.SetAIQueries(50)
	if err := s.Send(context.Background(), "again"); !api.IsQuotaLimit(err) {
		t.Fatalf("Send() at quota error = %v", err)
	}
	if !s.State().AtLimit {
		t.Error("session should be at limit")
	}
	if got := rec.messages(); len(got) != 1 || !strings.Contains(got[0], "limit exceeded") {
		t.Errorf("notices = %v", got)
	}

	b.SetAIQueries(0)
	b.SetChat(testutil.ChatScript{})
	rec = &noticeRecorder{}
	s = NewSession(client, Options{Notifier: rec})
	if err := s.Send(context.Background(), "anyone?"); !errors.Is(err, ErrNoReply) {
		t.Fatalf("Send() on an empty stream error = %v, want ErrNoReply", err)
	}
	if got := rec.messages(); len(got) != 1 || got[0] != MsgUnreachable {
		t.Errorf("notices = %v, want [%s]", got, MsgUnreachable)
	}
}
