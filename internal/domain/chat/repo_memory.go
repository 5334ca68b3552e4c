package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
)

type storedMessage struct {
	seq uint64
	msg Message
}

// MemoryRepo keeps messages in process memory. Every method holds the lock
// for its whole duration, so status updates are atomic per call.
type MemoryRepo struct {
	mu   sync.RWMutex
	seq  uint64
	byID map[uuid.UUID]*storedMessage
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[uuid.UUID]*storedMessage)}
}

func copyMessage(m *Message) *Message {
	c := *m
	if m.ReadAt != nil {
		t := *m.ReadAt
		c.ReadAt = &t
	}
	return &c
}

// newestFirst orders by creation time, then insertion order.
func newestFirst(items []*storedMessage) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.After(b.msg.CreatedAt)
		}
		return a.seq > b.seq
	})
}

func (r *MemoryRepo) Insert(_ context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.seq++
	r.byID[m.ID] = &storedMessage{seq: r.seq, msg: *copyMessage(m)}
	return nil
}

func (r *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, apperr.Missing("Message not found")
	}
	return copyMessage(&s.msg), nil
}

func (r *MemoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return apperr.Missing("Message not found")
	}
	delete(r.byID, id)
	return nil
}

func (r *MemoryRepo) History(_ context.Context, conversationID string, limit, offset int) ([]*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*storedMessage
	for _, s := range r.byID {
		if s.msg.ConversationID == conversationID {
			matched = append(matched, s)
		}
	}
	newestFirst(matched)

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	items := make([]*Message, 0, end-offset)
	for _, s := range matched[offset:end] {
		items = append(items, copyMessage(&s.msg))
	}
	return items, nil
}

func (r *MemoryRepo) MarkRead(_ context.Context, conversationID string, readerID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		m := &s.msg
		if m.ConversationID != conversationID || m.ReceiverID != readerID || !m.Status.CanAdvanceTo(StatusRead) {
			continue
		}
		readAt := at
		m.Status = StatusRead
		m.IsRead = true
		m.ReadAt = &readAt
		n++
	}
	return n, nil
}

func (r *MemoryRepo) MarkDelivered(_ context.Context, conversationID string, receiverID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		m := &s.msg
		if m.ReceiverID != receiverID || m.Status != StatusSent {
			continue
		}
		if conversationID != "" && m.ConversationID != conversationID {
			continue
		}
		m.Status = StatusDelivered
		n++
	}
	return n, nil
}

func (r *MemoryRepo) Conversations(_ context.Context, userID uuid.UUID) ([]*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := make(map[string]*storedMessage)
	unread := make(map[string]int64)
	for _, s := range r.byID {
		m := &s.msg
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		if m.ReceiverID == userID && !m.IsRead {
			unread[m.ConversationID]++
		}
		cur, ok := latest[m.ConversationID]
		if !ok || m.CreatedAt.After(cur.msg.CreatedAt) ||
			m.CreatedAt.Equal(cur.msg.CreatedAt) && s.seq > cur.seq {
			latest[m.ConversationID] = s
		}
	}

	heads := make([]*storedMessage, 0, len(latest))
	for _, s := range latest {
		heads = append(heads, s)
	}
	newestFirst(heads)

	items := make([]*Conversation, 0, len(heads))
	for _, s := range heads {
		items = append(items, &Conversation{
			ConversationID: s.msg.ConversationID,
			Last:           copyMessage(&s.msg),
			UnreadCount:    unread[s.msg.ConversationID],
		})
	}
	return items, nil
}

func (r *MemoryRepo) UnreadCount(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, s := range r.byID {
		if s.msg.ReceiverID == userID && !s.msg.IsRead {
			n++
		}
	}
	return n, nil
}
