package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// History returns a page of the conversation, newest first.
	History(ctx context.Context, conversationID string, limit, offset int) ([]*Message, error)
	// MarkRead moves every unread message in the conversation addressed to
	// readerID to read and returns how many changed.
	MarkRead(ctx context.Context, conversationID string, readerID uuid.UUID, at time.Time) (int64, error)
	// MarkDelivered moves sent messages addressed to receiverID to
	// delivered. An empty conversationID covers every conversation.
	MarkDelivered(ctx context.Context, conversationID string, receiverID uuid.UUID) (int64, error)
	// Conversations returns one row per conversation touching userID,
	// latest first.
	Conversations(ctx context.Context, userID uuid.UUID) ([]*Conversation, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}
