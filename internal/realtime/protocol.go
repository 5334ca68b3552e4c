package realtime

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/bhavishy2801/CareBridge/internal/domain/chat"
	"github.com/bhavishy2801/CareBridge/internal/domain/party"
)

// Client to server events.
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventMessagesRead      = "messages_read"
	EventCheckOnline       = "check_online"
)

// Server to client events.
const (
	EventConversationJoined = "conversation_joined"
	EventNewMessage         = "new_message"
	EventMessageSent        = "message_sent"
	EventError              = "error"
	EventUserTyping         = "user_typing"
	EventUserStoppedTyping  = "user_stopped_typing"
	EventMessagesMarkedRead = "messages_marked_read"
	EventOnlineStatus       = "online_status"
	EventUserOffline        = "user_offline"
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Topic names used on the hub and the bus.
func userTopic(id uuid.UUID) string { return "user:" + id.String() }
func roomTopic(conversationID string) string { return "conversation:" + conversationID }

type joinPayload struct {
	PartnerID   string `json:"partnerId"`
	PartnerType string `json:"partnerType"`
}

type partnerPayload struct {
	PartnerID string `json:"partnerId"`
}

type sendPayload struct {
	ReceiverID    string          `json:"receiverId"`
	ReceiverType  string          `json:"receiverType"`
	Content       string          `json:"content"`
	MessageType   string          `json:"messageType"`
	AttachmentURL string          `json:"attachmentUrl"`
	TempID        json.RawMessage `json:"tempId,omitempty"`
}

type readPayload struct {
	ConversationID string `json:"conversationId"`
}

type checkOnlinePayload struct {
	UserIDs []string `json:"userIds"`
}

type conversationJoined struct {
	ConversationID string `json:"conversationId"`
}

type newMessage struct {
	Message *chat.Message `json:"message"`
}

type messageSent struct {
	TempID  json.RawMessage `json:"tempId,omitempty"`
	Message *chat.Message   `json:"message"`
}

type errorData struct {
	Message string `json:"message"`
}

type userTyping struct {
	UserID   uuid.UUID  `json:"userId"`
	UserType party.Kind `json:"userType"`
}

type userRef struct {
	UserID uuid.UUID `json:"userId"`
}

type messagesMarkedRead struct {
	ConversationID string    `json:"conversationId"`
	ReadBy         uuid.UUID `json:"readBy"`
}
