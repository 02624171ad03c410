package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"listening/log"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Conversation names separate the assistant chat from voice conversion results.
const (
	Assistant  = "assistant"
	Conversion = "conversion"
)

type Message struct {
	ID        string
	Text      string
	IsUser    bool
	Timestamp time.Time
	Status    Status
}

func NewMessage(text string, isUser bool, status Status) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		IsUser:    isUser,
		Timestamp: time.Now(),
		Status:    status,
	}
}

// Store persists transcript entries per conversation.
type Store interface {
	Save(ctx context.Context, conversation string, m Message) error
	Load(ctx context.Context, conversation string, limit int) ([]Message, error)
	Clear(ctx context.Context, conversation string) error
}

// Transcript is an append-only message list. Only the text of the newest assistant
// entry may change after it is appended.
type Transcript struct {
	conversation string
	store        Store

	mu   sync.Mutex
	msgs []Message
}

// New creates a transcript; store may be nil for a memory-only one.
func New(store Store, conversation string) *Transcript {
	return &Transcript{conversation: conversation, store: store}
}

// Restore loads up to limit earlier entries from the store.
func (t *Transcript) Restore(ctx context.Context, limit int) error {
	if t.store == nil {
		return nil
	}
	msgs, err := t.store.Load(ctx, t.conversation, limit)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.msgs = append(msgs, t.msgs...)
	t.mu.Unlock()
	return nil
}

func (t *Transcript) Append(m Message) Message {
	t.mu.Lock()
	t.msgs = append(t.msgs, m)
	t.mu.Unlock()
	if m.IsUser || m.Text != "" {
		log.TranscriptText(m.Text)
	}
	t.save(m)
	return m
}

func (t *Transcript) AppendUser(text string) Message {
	return t.Append(NewMessage(text, true, StatusSuccess))
}

func (t *Transcript) AppendAssistant(text string, status Status) Message {
	return t.Append(NewMessage(text, false, status))
}

// UpdateLastAssistant replaces the text of the newest assistant entry. It reports
// false when there is none.
func (t *Transcript) UpdateLastAssistant(text string) bool {
	t.mu.Lock()
	idx := -1
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if !t.msgs[i].IsUser {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return false
	}
	t.msgs[idx].Text = text
	m := t.msgs[idx]
	t.mu.Unlock()

	t.save(m)
	return true
}

func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.msgs...)
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

// Clear empties the transcript and its stored copy.
func (t *Transcript) Clear(ctx context.Context) error {
	t.mu.Lock()
	t.msgs = nil
	t.mu.Unlock()
	if t.store == nil {
		return nil
	}
	return t.store.Clear(ctx, t.conversation)
}

func (t *Transcript) save(m Message) {
	if t.store == nil {
		return
	}
	if err := t.store.Save(context.Background(), t.conversation, m); err != nil {
		log.Warnf("transcript save failed: %v", err)
	}
}
