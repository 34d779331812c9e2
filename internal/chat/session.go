// Package chat runs assistant conversations: it submits a message, consumes
// the token stream into a transcript and reports failures as notices.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/strrl/aurora-cli/internal/api"
	"github.com/strrl/aurora-cli/internal/logger"
	"github.com/strrl/aurora-cli/internal/stream"
	"github.com/strrl/aurora-cli/pkg/models"
)

// User-facing notices
const (
	MsgLimitReached = "You have reached your monthly limit."
	MsgUnreachable  = "Unable to reach assistant"
	MsgStreamFailed = "Something went wrong while streaming the answer."
)

var (
	// ErrEmptyInput is returned for blank submissions
	ErrEmptyInput = errors.New("message is empty")
	// ErrInputDisabled is returned while a reply is streaming or the plan limit is reached
	ErrInputDisabled = errors.New("input is disabled")
	// ErrHistoryUnavailable is returned when the plan has no conversation history
	ErrHistoryUnavailable = errors.New("conversation history requires the Pro or Enterprise plan")
	// ErrNoReply is returned when the stream closes before any token or done marker
	ErrNoReply = errors.New("assistant sent no reply")
)

// Streamer opens a chat stream
type Streamer interface {
	Chat(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error)
}

// HistoryLister lists past conversations
type HistoryLister interface {
	Conversations(ctx context.Context) ([]models.Conversation, error)
}

// Archiver stores a finished transcript under id, replacing earlier saves
type Archiver interface {
	Save(id string, messages []models.ChatMessage) error
}

// NoticeLevel is the severity of a Notice
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

// Notice is a transient message for the user
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Notifier shows notices
type Notifier interface {
	Notify(Notice)
}

// NotifyFunc adapts a function to Notifier
type NotifyFunc func(Notice)

func (f NotifyFunc) Notify(n Notice) { f(n) }

// State is a point-in-time view of a Session. Messages is shared and
// must not be modified.
type State struct {
	Messages       []models.ChatMessage
	Busy           bool
	AtLimit        bool
	ConversationID string
	HistoryEnabled bool
}

// InputEnabled reports whether a new message may be submitted
func (s State) InputEnabled() bool {
	return !s.Busy && !s.AtLimit
}

// Options configures a Session
type Options struct {
	HistoryEnabled bool
	History        HistoryLister
	Notifier       Notifier
	Archiver       Archiver

	// OnChange is called after every transcript or state change, outside
	// the session lock
	OnChange func(State)
}

// Session is one assistant conversation
type Session struct {
	streamer Streamer
	opts     Options

	mu             sync.Mutex
	messages       []models.ChatMessage
	busy           bool
	atLimit        bool
	conversationID string
	historyEnabled bool
	transcriptID   string
}

// NewSession creates a Session
func NewSession(streamer Streamer, opts Options) *Session {
	return &Session{
		streamer:       streamer,
		opts:           opts,
		historyEnabled: opts.HistoryEnabled,
		transcriptID:   uuid.NewString(),
	}
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		Messages:       s.messages,
		Busy:           s.busy,
		AtLimit:        s.atLimit,
		ConversationID: s.conversationID,
		HistoryEnabled: s.historyEnabled,
	}
}

func (s *Session) changed() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.State())
	}
}

func (s *Session) notify(level NoticeLevel, msg string) {
	if s.opts.Notifier != nil {
		s.opts.Notifier.Notify(Notice{Level: level, Message: msg})
	}
}

// Send submits text and consumes the reply stream until it ends. The user
// message is appended immediately; the assistant message grows token by
// token. Failures are reported through the Notifier and returned.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	if strings.TrimSpace(text) == "" {
		s.mu.Unlock()
		return ErrEmptyInput
	}
	if s.busy || s.atLimit {
		s.mu.Unlock()
		return ErrInputDisabled
	}
	s.messages = appendMessage(s.messages, models.ChatMessage{Role: models.RoleUser, Content: text})
	s.busy = true
	req := api.ChatRequest{Message: text}
	if s.historyEnabled && s.conversationID != "" {
		req.ConversationID = s.conversationID
	}
	transcriptID := s.transcriptID
	s.mu.Unlock()
	s.changed()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		s.changed()
	}()

	body, err := s.streamer.Chat(ctx, req)
	if err != nil {
		s.handleOpenError(err)
		return err
	}
	defer body.Close()

	started, done, err := s.consume(ctx, body)
	if err != nil {
		if ctx.Err() != nil {
			logger.LogDebug("chat stream cancelled", "err", err)
			return ctx.Err()
		}
		if api.IsQuotaLimit(err) {
			s.setAtLimit()
		}
		s.notify(NoticeError, MsgStreamFailed)
		return err
	}
	if !started && !done {
		s.notify(NoticeError, MsgUnreachable)
		return ErrNoReply
	}

	if started && s.opts.Archiver != nil {
		if err := s.opts.Archiver.Save(transcriptID, s.State().Messages); err != nil {
			logger.LogWarn("failed to archive transcript", "id", transcriptID, "err", err)
		}
	}
	return nil
}

func (s *Session) handleOpenError(err error) {
	switch {
	case api.IsQuotaLimit(err):
		s.setAtLimit()
		s.notify(NoticeError, api.Detail(err, MsgLimitReached))
	case api.StatusOf(err) != 0:
		s.notify(NoticeError, MsgUnreachable)
	default:
		s.notify(NoticeError, MsgStreamFailed)
	}
}

func (s *Session) setAtLimit() {
	s.mu.Lock()
	s.atLimit = true
	s.mu.Unlock()
}

// consume reads frames until the done marker or EOF. It reports whether an
// assistant message was created and whether the done marker was seen.
func (s *Session) consume(ctx context.Context, body io.Reader) (started, done bool, err error) {
	dec := stream.NewDecoder(body)
	for {
		f, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return started, false, nil
		}
		if err != nil {
			return started, false, err
		}
		if f.Kind == stream.FrameDone {
			return started, true, nil
		}

		s.appendToken(f.Token, !started)
		started = true
		s.changed()

		if ctx.Err() != nil {
			return started, false, ctx.Err()
		}
	}
}

func (s *Session) appendToken(token string, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if first {
		s.messages = appendMessage(s.messages, models.ChatMessage{Role: models.RoleAssistant, Content: token})
		return
	}
	last := s.messages[len(s.messages)-1]
	next := make([]models.ChatMessage, len(s.messages))
	copy(next, s.messages)
	next[len(next)-1] = models.ChatMessage{Role: last.Role, Content: last.Content + token, Sources: last.Sources}
	s.messages = next
}

func appendMessage(messages []models.ChatMessage, m models.ChatMessage) []models.ChatMessage {
	next := make([]models.ChatMessage, len(messages), len(messages)+1)
	copy(next, messages)
	return append(next, m)
}

// SetHistoryEnabled follows plan changes. Disabling history also drops the
// selected conversation.
func (s *Session) SetHistoryEnabled(enabled bool) {
	s.mu.Lock()
	s.historyEnabled = enabled
	if !enabled {
		s.conversationID = ""
	}
	s.mu.Unlock()
	s.changed()
}

// Conversations lists past conversations
func (s *Session) Conversations(ctx context.Context) ([]models.Conversation, error) {
	s.mu.Lock()
	enabled := s.historyEnabled
	s.mu.Unlock()
	if !enabled || s.opts.History == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.opts.History.Conversations(ctx)
}

// SelectConversation continues a past conversation. The visible transcript
// is cleared and the visit is archived on its own, so earlier archives of
// the same conversation are kept.
func (s *Session) SelectConversation(id string) error {
	s.mu.Lock()
	if !s.historyEnabled {
		s.mu.Unlock()
		return ErrHistoryUnavailable
	}
	if s.busy {
		s.mu.Unlock()
		return ErrInputDisabled
	}
	s.conversationID = id
	s.messages = nil
	s.transcriptID = uuid.NewString()
	s.mu.Unlock()
	s.changed()
	return nil
}

// NewConversation starts over with an empty transcript
func (s *Session) NewConversation() error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrInputDisabled
	}
	s.conversationID = ""
	s.messages = nil
	s.transcriptID = uuid.NewString()
	s.mu.Unlock()
	s.changed()
	return nil
}
