package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/domain/profile"
)

// DeliveryStatus is a message's receipt progress. It only moves forward:
// sent, delivered, read. A message may start at delivered.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

func (s DeliveryStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

func (s DeliveryStatus) Valid() bool { return s.rank() > 0 }

// CanAdvanceTo reports whether moving from s to next is a forward step.
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	return next.Valid() && next.rank() > s.rank()
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown delivery status %q", s)
	}
	return st, nil
}

// InitialStatus is the status a new message starts in given whether its
// receiver currently holds a live connection.
func InitialStatus(receiverOnline bool) DeliveryStatus {
	if receiverOnline {
		return StatusDelivered
	}
	return StatusSent
}

type MessageType string

const (
	TypeText         MessageType = "text"
	TypeImage        MessageType = "image"
	TypeFile         MessageType = "file"
	TypePrescription MessageType = "prescription"
	TypeReport       MessageType = "report"
)

// ParseMessageType defaults an empty value to text.
func ParseMessageType(s string) (MessageType, error) {
	switch t := MessageType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TypeText, nil
	case TypeText, TypeImage, TypeFile, TypePrescription, TypeReport:
		return t, nil
	}
	return "", fmt.Errorf("unknown message type %q", s)
}

// DeriveConversationID returns the key grouping every message between a and
// b. It does not depend on argument order.
func DeriveConversationID(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return x + "_" + y
}

// PartnerFromConversation returns the participant of conversationID that is
// not self.
func PartnerFromConversation(conversationID string, self uuid.UUID) (uuid.UUID, bool) {
	a, b, ok := strings.Cut(conversationID, "_")
	if !ok {
		return uuid.Nil, false
	}
	idA, errA := uuid.Parse(a)
	idB, errB := uuid.Parse(b)
	switch {
	case errA != nil || errB != nil:
		return uuid.Nil, false
	case idA == self:
		return idB, true
	case idB == self:
		return idA, true
	}
	return uuid.Nil, false
}

type Message struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	ConversationID string         `db:"conversation_id" json:"conversationId"`
	SenderID       uuid.UUID      `db:"sender_id" json:"senderId"`
	SenderType     party.Kind     `db:"sender_type" json:"senderType"`
	ReceiverID     uuid.UUID      `db:"receiver_id" json:"receiverId"`
	ReceiverType   party.Kind     `db:"receiver_type" json:"receiverType"`
	Content        string         `db:"content" json:"content"`
	MessageType    MessageType    `db:"message_type" json:"messageType"`
	AttachmentURL  string         `db:"attachment_url" json:"attachmentUrl,omitempty"`
	Status         DeliveryStatus `db:"status" json:"status"`
	IsRead         bool           `db:"is_read" json:"isRead"`
	ReadAt         *time.Time     `db:"read_at" json:"readAt,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// PartnerOf returns the other participant from userID's view.
func (m *Message) PartnerOf(userID uuid.UUID) (uuid.UUID, party.Kind) {
	if m.SenderID == userID {
		return m.ReceiverID, m.ReceiverType
	}
	return m.SenderID, m.SenderType
}

// AppendInput is a fully validated message ready to be stored.
type AppendInput struct {
	SenderID      uuid.UUID
	SenderType    party.Kind
	ReceiverID    uuid.UUID
	ReceiverType  party.Kind
	Content       string
	MessageType   MessageType
	AttachmentURL string
	InitialStatus DeliveryStatus
}

// SendInput is an unvalidated send request from either transport.
type SendInput struct {
	SenderID      uuid.UUID
	SenderType    party.Kind
	ReceiverID    uuid.UUID
	ReceiverType  party.Kind
	Content       string
	MessageType   string
	AttachmentURL string
}

// Conversation is one row of a user's inbox as stored.
type Conversation struct {
	ConversationID string
	Last           *Message
	UnreadCount    int64
}

type LastMessage struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	IsFromMe  bool      `json:"isFromMe"`
}

// ConversationView is an inbox row enriched with the partner's profile.
type ConversationView struct {
	ConversationID string           `json:"conversationId"`
	Partner        *profile.Summary `json:"partner"`
	LastMessage    LastMessage      `json:"lastMessage"`
	UnreadCount    int64            `json:"unreadCount"`
}
