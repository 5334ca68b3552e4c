package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/bhavishy2801/CareBridge/internal/domain/chat"
	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
	"github.com/bhavishy2801/CareBridge/internal/platform/auth"
	"github.com/bhavishy2801/CareBridge/internal/platform/websocket"
)

// session is one authenticated connection. handle runs on the connection's
// read goroutine only, so events from one connection are processed in order.
type session struct {
	rt     *Router
	client *websocket.Client
	me     auth.Identity
	log    zerolog.Logger
}

func (s *session) emit(event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("encode event")
		return
	}
	if !s.rt.hub.SendTo(s.client, frame) {
		s.log.Warn().Str("event", event).Msg("send buffer full, frame dropped")
	}
}

// fail reports err to this connection only. The connection stays open.
func (s *session) fail(event string, err error) {
	if apperr.KindOf(err) == apperr.Internal {
		s.log.Error().Err(err).Str("event", event).Msg("event failed")
	} else {
		s.log.Debug().Err(err).Str("event", event).Msg("event rejected")
	}
	s.emit(EventError, errorData{Message: apperr.MessageOf(err)})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperr.Invalid("Missing event data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Invalid("Invalid event data")
	}
	return nil
}

// markReachable advances every sent message addressed to the user now that
// they hold a live connection.
func (s *session) markReachable() {
	ctx, cancel := s.rt.storeCtx()
	defer cancel()
	n, err := s.rt.chat.MarkDeliveredForReceiver(ctx, s.me.ID)
	if err != nil {
		s.log.Warn().Err(err).Msg("mark delivered on connect")
		return
	}
	if n > 0 {
		s.log.Debug().Int64("count", n).Msg("pending messages delivered")
	}
}

func (s *session) handle(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		s.rt.metrics.Events.WithLabelValues("malformed", string(apperr.Validation)).Inc()
		s.fail("malformed", apperr.Invalid("Invalid message format"))
		return
	}

	var err error
	label := env.Event
	switch env.Event {
	case EventJoinConversation:
		err = s.join(env.Data)
	case EventLeaveConversation:
		err = s.leave(env.Data)
	case EventSendMessage:
		err = s.send(env.Data)
	case EventTypingStart:
		err = s.typing(env.Data, true)
	case EventTypingStop:
		err = s.typing(env.Data, false)
	case EventMessagesRead:
		err = s.read(env.Data)
	case EventCheckOnline:
		err = s.checkOnline(env.Data)
	default:
		label = "unknown"
		err = apperr.Invalid("Unknown event: " + env.Event)
	}

	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		s.fail(env.Event, err)
	}
	s.rt.metrics.Events.WithLabelValues(label, outcome).Inc()
}

func parsePartner(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Invalid("partnerId is required")
	}
	return id, nil
}

func (s *session) join(data json.RawMessage) error {
	var p joinPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	partnerID, err := parsePartner(p.PartnerID)
	if err != nil {
		return err
	}
	partnerKind, err := party.Parse(p.PartnerType)
	if err != nil {
		return apperr.Invalid("partnerType is required")
	}

	ctx, cancel := s.rt.storeCtx()
	defer cancel()
	if err := s.rt.chat.Authorize(ctx, s.me.ID, s.me.Kind, partnerID, partnerKind, chat.MsgNotAssociated); err != nil {
		return err
	}

	cid := chat.DeriveConversationID(s.me.ID, partnerID)
	s.rt.hub.Subscribe(s.client, roomTopic(cid))
	if _, err := s.rt.chat.MarkDelivered(ctx, cid, s.me.ID); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", cid).Msg("mark delivered on join")
	}
	s.emit(EventConversationJoined, conversationJoined{ConversationID: cid})
	return nil
}

func (s *session) leave(data json.RawMessage) error {
	var p partnerPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	partnerID, err := parsePartner(p.PartnerID)
	if err != nil {
		return err
	}
	s.rt.hub.Unsubscribe(s.client, roomTopic(chat.DeriveConversationID(s.me.ID, partnerID)))
	return nil
}

func (s *session) send(data json.RawMessage) error {
	var p sendPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	// Unparseable ids and types are reported as missing fields by Send.
	receiverID, _ := uuid.Parse(p.ReceiverID)
	receiverKind, _ := party.Parse(p.ReceiverType)

	ctx, cancel := s.rt.storeCtx()
	defer cancel()
	m, err := s.rt.chat.Send(ctx, chat.SendInput{
		SenderID:      s.me.ID,
		SenderType:    s.me.Kind,
		ReceiverID:    receiverID,
		ReceiverType:  receiverKind,
		Content:       p.Content,
		MessageType:   p.MessageType,
		AttachmentURL: p.AttachmentURL,
	})
	if err != nil {
		return err
	}
	s.emit(EventMessageSent, messageSent{TempID: p.TempID, Message: m})
	s.rt.deliver(ctx, m, s.client)
	return nil
}

func (s *session) typing(data json.RawMessage, start bool) error {
	var p partnerPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	partnerID, err := parsePartner(p.PartnerID)
	if err != nil {
		return err
	}

	ctx, cancel := s.rt.storeCtx()
	defer cancel()
	topics := []string{roomTopic(chat.DeriveConversationID(s.me.ID, partnerID))}
	if start {
		s.rt.fanout(ctx, topics, EventUserTyping, userTyping{UserID: s.me.ID, UserType: s.me.Kind}, s.client)
	} else {
		s.rt.fanout(ctx, topics, EventUserStoppedTyping, userRef{UserID: s.me.ID}, s.client)
	}
	return nil
}

func (s *session) read(data json.RawMessage) error {
	var p readPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.ConversationID == "" {
		return apperr.Invalid("conversationId is required")
	}
	// The partner comes from the conversation id so a reader cannot notify
	// someone outside it.
	partnerID, ok := chat.PartnerFromConversation(p.ConversationID, s.me.ID)
	if !ok {
		return apperr.Forbidden("You are not a participant in this conversation")
	}

	ctx, cancel := s.rt.storeCtx()
	defer cancel()
	if _, err := s.rt.chat.MarkRead(ctx, p.ConversationID, s.me.ID); err != nil {
		return err
	}
	s.rt.NotifyRead(ctx, p.ConversationID, s.me.ID, partnerID)
	return nil
}

func (s *session) checkOnline(data json.RawMessage) error {
	var p checkOnlinePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	ids := lo.FilterMap(p.UserIDs, func(raw string, _ int) (uuid.UUID, bool) {
		id, err := uuid.Parse(raw)
		return id, err == nil
	})
	status := s.rt.presence.BulkStatus(ids)
	out := make(map[string]bool, len(status))
	for id, online := range status {
		out[id.String()] = online
	}
	s.emit(EventOnlineStatus, out)
	return nil
}
