package usecases

import (
	"sync"
	"time"

	"github.com/samirrijal/groundwatch/internal/core/domain"
)

const defaultTranscriptLimit = 200

// Transcript is the chat history of one map page session. At most one reply
// may be outstanding at a time.
type Transcript struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
	nextID   int64
	pending  bool
	lastErr  string
	limit    int
}

// NewTranscript creates an empty transcript keeping at most limit messages.
func NewTranscript(limit int) *Transcript {
	if limit <= 0 {
		limit = defaultTranscriptLimit
	}
	return &Transcript{limit: limit}
}

// Begin appends a user message and marks a reply as pending.
func (t *Transcript) Begin(text string, at time.Time) (domain.ChatMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending {
		return domain.ChatMessage{}, domain.ErrReplyPending
	}
	t.pending = true
	t.lastErr = ""
	return t.appendLocked(text, domain.SenderUser, at), nil
}

// Complete appends the AI reply and clears the pending flag.
func (t *Transcript) Complete(text string, at time.Time) domain.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = false
	return t.appendLocked(text, domain.SenderAI, at)
}

// Fail clears the pending flag and records err for display. The user
// message stays in the history.
func (t *Transcript) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = false
	if err != nil {
		t.lastErr = err.Error()
	}
}

// Messages returns a copy of the history, oldest first.
func (t *Transcript) Messages() []domain.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.ChatMessage(nil), t.messages...)
}

// Pending reports whether a reply is outstanding.
func (t *Transcript) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// LastError returns the error of the most recent failed exchange, if any.
func (t *Transcript) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Transcript) appendLocked(text string, sender domain.Sender, at time.Time) domain.ChatMessage {
	t.nextID++
	msg := domain.ChatMessage{ID: t.nextID, Text: text, Sender: sender, CreatedAt: at}
	t.messages = append(t.messages, msg)
	if over := len(t.messages) - t.limit; over > 0 {
		t.messages = append([]domain.ChatMessage(nil), t.messages[over:]...)
	}
	return msg
}
