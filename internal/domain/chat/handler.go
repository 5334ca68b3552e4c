package chat

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
	"github.com/bhavishy2801/CareBridge/internal/platform/auth"
	"github.com/bhavishy2801/CareBridge/pkg/pagination"
)

// Notifier pushes REST-originated changes to live connections.
type Notifier interface {
	NotifyMessage(ctx context.Context, m *Message)
	NotifyRead(ctx context.Context, conversationID string, readerID, partnerID uuid.UUID)
}

type nopNotifier struct{}

func (nopNotifier) NotifyMessage(context.Context, *Message) {}
func (nopNotifier) NotifyRead(context.Context, string, uuid.UUID, uuid.UUID) {}

type Handler struct {
	svc      *Service
	notifier Notifier
}

// NewHandler builds the REST fallback. A nil notifier disables live pushes.
func NewHandler(svc *Service, notifier Notifier) *Handler {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Handler{svc: svc, notifier: notifier}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/conversations", h.ListConversations)
	g.GET("/unread", h.UnreadCount)
	g.POST("/send", h.Send)
	g.DELETE("/message/:messageId", h.DeleteMessage)
	g.PATCH("/:conversationId/read", h.MarkRead)
	g.GET("/:partnerId/:partnerType", h.GetConversation)
}

func identity(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, apperr.HTTPError(apperr.Unauthenticated("No token provided"))
	}
	return id, nil
}

func (h *Handler) ListConversations(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	views, err := h.svc.ListConversations(c.Request().Context(), me.ID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if views == nil {
		views = []*ConversationView{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"conversations": views})
}

func (h *Handler) UnreadCount(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	n, err := h.svc.UnreadCount(c.Request().Context(), me.ID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"unreadCount": n})
}

func (h *Handler) GetConversation(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	partnerID, err := uuid.Parse(c.Param("partnerId"))
	if err != nil {
		return apperr.HTTPError(apperr.Invalid("invalid partnerId"))
	}
	partnerKind, err := party.Parse(c.Param("partnerType"))
	if err != nil {
		return apperr.HTTPError(apperr.Invalid("invalid partnerType"))
	}

	ctx := c.Request().Context()
	page, err := h.svc.Open(ctx, me.ID, me.Kind, partnerID, partnerKind, pagination.FromContext(c))
	if err != nil {
		return apperr.HTTPError(err)
	}
	if page.MarkedRead > 0 {
		h.notifier.NotifyRead(ctx, page.ConversationID, me.ID, partnerID)
	}
	return c.JSON(http.StatusOK, page)
}

type sendRequest struct {
	ReceiverID    string `json:"receiverId"`
	ReceiverType  string `json:"receiverType"`
	Content       string `json:"content"`
	MessageType   string `json:"messageType"`
	AttachmentURL string `json:"attachmentUrl"`
}

func (h *Handler) Send(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return apperr.HTTPError(apperr.Invalid("invalid request body"))
	}
	// Unparseable ids and types are reported as missing fields.
	receiverID, _ := uuid.Parse(req.ReceiverID)
	receiverKind, _ := party.Parse(req.ReceiverType)

	ctx := c.Request().Context()
	m, err := h.svc.Send(ctx, SendInput{
		SenderID:      me.ID,
		SenderType:    me.Kind,
		ReceiverID:    receiverID,
		ReceiverType:  receiverKind,
		Content:       req.Content,
		MessageType:   req.MessageType,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	h.notifier.NotifyMessage(ctx, m)
	return c.JSON(http.StatusCreated, map[string]interface{}{"msg": "Message sent", "message": m})
}

func (h *Handler) MarkRead(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	cid := c.Param("conversationId")
	ctx := c.Request().Context()
	n, err := h.svc.MarkRead(ctx, cid, me.ID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if n > 0 {
		if partner, ok := PartnerFromConversation(cid, me.ID); ok {
			h.notifier.NotifyRead(ctx, cid, me.ID, partner)
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"msg": "Messages marked as read", "count": n})
}

func (h *Handler) DeleteMessage(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		return apperr.HTTPError(apperr.Invalid("invalid messageId"))
	}
	if err := h.svc.DeleteMessage(c.Request().Context(), id, me.ID); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"msg": "Message deleted successfully"})
}
