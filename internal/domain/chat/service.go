package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/domain/profile"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
	"github.com/bhavishy2801/CareBridge/pkg/pagination"
)

// Gate decides whether two parties may exchange messages.
type Gate interface {
	CanCommunicate(ctx context.Context, aID uuid.UUID, aKind party.Kind, bID uuid.UUID, bKind party.Kind) (bool, error)
}

// Presence reports whether a user holds a live connection.
type Presence interface {
	IsOnline(userID uuid.UUID) bool
}

// Profiles resolves the partner cards shown next to conversations.
type Profiles interface {
	Summary(ctx context.Context, id uuid.UUID, kind party.Kind) (*profile.Summary, error)
}

const (
	MsgNotAssociated = "You are not associated with this user"
	MsgSendForbidden = "You can only message users you are associated with"
	MsgSendRequired  = "receiverId, receiverType, and content are required"
)

type Service struct {
	repo     Repository
	gate     Gate
	presence Presence
	profiles Profiles
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, gate Gate, presence Presence, profiles Profiles, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		gate:     gate,
		presence: presence,
		profiles: profiles,
		logger:   logger.With().Str("component", "chat").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Authorize returns a Forbidden error unless the two parties hold an active
// association.
func (s *Service) Authorize(ctx context.Context, aID uuid.UUID, aKind party.Kind, bID uuid.UUID, bKind party.Kind, msg string) error {
	ok, err := s.gate.CanCommunicate(ctx, aID, aKind, bID, bKind)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden(msg)
	}
	return nil
}

// Append stores a message in the conversation derived from its participants.
// The initial status is the caller's decision.
func (s *Service) Append(ctx context.Context, in AppendInput) (*Message, error) {
	if !in.InitialStatus.Valid() {
		return nil, apperr.Invalid("invalid initial status")
	}
	m := &Message{
		ID:             uuid.New(),
		ConversationID: DeriveConversationID(in.SenderID, in.ReceiverID),
		SenderID:       in.SenderID,
		SenderType:     in.SenderType,
		ReceiverID:     in.ReceiverID,
		ReceiverType:   in.ReceiverType,
		Content:        in.Content,
		MessageType:    in.MessageType,
		AttachmentURL:  in.AttachmentURL,
		Status:         in.InitialStatus,
		CreatedAt:      s.now(),
	}
	if m.Status == StatusRead {
		m.IsRead = true
		at := m.CreatedAt
		m.ReadAt = &at
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Send is the single path both transports use to post a message: validate,
// authorize, pick the initial status from presence, append.
func (s *Service) Send(ctx context.Context, in SendInput) (*Message, error) {
	if in.ReceiverID == uuid.Nil || !in.ReceiverType.Valid() || in.Content == "" {
		return nil, apperr.Invalid(MsgSendRequired)
	}
	msgType, err := ParseMessageType(in.MessageType)
	if err != nil {
		return nil, apperr.Invalid("messageType must be one of text, image, file, prescription, report")
	}
	if err := s.Authorize(ctx, in.SenderID, in.SenderType, in.ReceiverID, in.ReceiverType, MsgSendForbidden); err != nil {
		return nil, err
	}

	m, err := s.Append(ctx, AppendInput{
		SenderID:      in.SenderID,
		SenderType:    in.SenderType,
		ReceiverID:    in.ReceiverID,
		ReceiverType:  in.ReceiverType,
		Content:       in.Content,
		MessageType:   msgType,
		AttachmentURL: strings.TrimSpace(in.AttachmentURL),
		InitialStatus: InitialStatus(s.presence.IsOnline(in.ReceiverID)),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("message_id", m.ID.String()).
		Str("conversation_id", m.ConversationID).
		Str("status", string(m.Status)).
		Msg("message stored")
	return m, nil
}

// History returns a page of the conversation between a and b, newest first.
func (s *Service) History(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]*Message, error) {
	p := pagination.New(limit, offset)
	return s.repo.History(ctx, DeriveConversationID(a, b), p.Limit, p.Offset)
}

func (s *Service) MarkRead(ctx context.Context, conversationID string, readerID uuid.UUID) (int64, error) {
	if conversationID == "" {
		return 0, apperr.Invalid("conversationId is required")
	}
	return s.repo.MarkRead(ctx, conversationID, readerID, s.now())
}

func (s *Service) MarkDelivered(ctx context.Context, conversationID string, receiverID uuid.UUID) (int64, error) {
	if conversationID == "" {
		return 0, apperr.Invalid("conversationId is required")
	}
	return s.repo.MarkDelivered(ctx, conversationID, receiverID)
}

// MarkDeliveredForReceiver advances every sent message addressed to the user.
func (s *Service) MarkDeliveredForReceiver(ctx context.Context, receiverID uuid.UUID) (int64, error) {
	return s.repo.MarkDelivered(ctx, "", receiverID)
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// DeleteMessage removes a message permanently. Only its sender may do so.
func (s *Service) DeleteMessage(ctx context.Context, messageID, requesterID uuid.UUID) error {
	m, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != requesterID {
		return apperr.Forbidden("You can only delete your own messages")
	}
	return s.repo.Delete(ctx, messageID)
}

// ListConversations returns the user's inbox with partner cards.
func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID) ([]*ConversationView, error) {
	rows, err := s.repo.Conversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(c *Conversation, _ int) *ConversationView {
		partnerID, partnerKind := c.Last.PartnerOf(userID)
		return &ConversationView{
			ConversationID: c.ConversationID,
			Partner:        s.partner(ctx, partnerID, partnerKind),
			LastMessage: LastMessage{
				Content:   c.Last.Content,
				CreatedAt: c.Last.CreatedAt,
				IsFromMe:  c.Last.SenderID == userID,
			},
			UnreadCount: c.UnreadCount,
		}
	}), nil
}

// partner falls back to a bare card when the profile is unavailable.
func (s *Service) partner(ctx context.Context, id uuid.UUID, kind party.Kind) *profile.Summary {
	summary, err := s.profiles.Summary(ctx, id, kind)
	if err != nil {
		s.logger.Warn().Err(err).Str("partner_id", id.String()).Msg("partner profile unavailable")
		return &profile.Summary{ID: id, Type: kind}
	}
	return summary
}

// ConversationPage is what a participant sees when opening a conversation.
type ConversationPage struct {
	ConversationID string           `json:"conversationId"`
	Messages       []*Message       `json:"messages"`
	Partner        *profile.Summary `json:"partner"`
	MarkedRead     int64            `json:"-"`
}

// Open authorizes the viewer, marks what the viewer received as read and
// loads a page of history in chronological order.
func (s *Service) Open(ctx context.Context, viewerID uuid.UUID, viewerKind party.Kind, partnerID uuid.UUID, partnerKind party.Kind, p pagination.Params) (*ConversationPage, error) {
	if err := s.Authorize(ctx, viewerID, viewerKind, partnerID, partnerKind, MsgNotAssociated); err != nil {
		return nil, err
	}
	// Read first so the page reflects it.
	cid := DeriveConversationID(viewerID, partnerID)
	n, err := s.MarkRead(ctx, cid, viewerID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.History(ctx, viewerID, partnerID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	msgs = lo.Reverse(msgs)
	if msgs == nil {
		msgs = []*Message{}
	}
	return &ConversationPage{
		ConversationID: cid,
		Messages:       msgs,
		Partner:        s.partner(ctx, partnerID, partnerKind),
		MarkedRead:     n,
	}, nil
}
