package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/auth"
)

type readNotice struct {
	conversationID  string
	reader, partner uuid.UUID
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []*Message
	reads    []readNotice
}

func (n *recordingNotifier) NotifyMessage(_ context.Context, m *Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
}

func (n *recordingNotifier) NotifyRead(_ context.Context, cid string, reader, partner uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reads = append(n.reads, readNotice{cid, reader, partner})
}

func newRequest(method, target, body string, who auth.Identity) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(req.Context(), who))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func TestHandler_Send(t *testing.T) {
	f := newChatFixture()
	n := &recordingNotifier{}
	h := NewHandler(f.svc, n)
	patient := auth.Identity{ID: f.patient.ID, Kind: party.Patient}

	body := `{"receiverId":"` + f.doctor.ID.String() + `","receiverType":"Doctor","content":"Hello"}`
	c, rec := newRequest(http.MethodPost, "/send", body, patient)
	if err := h.Send(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Msg     string  `json:"msg"`
		Message Message `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message.Status != StatusSent || resp.Message.Content != "Hello" || resp.Message.ReceiverType != party.Doctor {
		t.Errorf("unexpected message %s", rec.Body.String())
	}
	if len(n.messages) != 1 {
		t.Errorf("expected the live notifier to see the message, got %d", len(n.messages))
	}

	c, _ = newRequest(http.MethodPost, "/send", `{"receiverId":"nope","content":"x"}`, patient)
	if code := httpCode(t, h.Send(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}

	stranger := `{"receiverId":"` + uuid.NewString() + `","receiverType":"Doctor","content":"hi"}`
	c, _ = newRequest(http.MethodPost, "/send", stranger, patient)
	if code := httpCode(t, h.Send(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
	if len(n.messages) != 1 {
		t.Error("failed sends must not notify")
	}
}

func TestHandler_GetConversation(t *testing.T) {
	f := newChatFixture()
	n := &recordingNotifier{}
	h := NewHandler(f.svc, n)
	f.patientSays(t, "one")
	f.patientSays(t, "two")
	doctor := auth.Identity{ID: f.doctor.ID, Kind: party.Doctor}

	c, rec := newRequest(http.MethodGet, "/?limit=10", "", doctor)
	c.SetParamNames("partnerId", "partnerType")
	c.SetParamValues(f.patient.ID.String(), "Patient")
	if err := h.GetConversation(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var page struct {
		ConversationID string     `json:"conversationId"`
		Messages       []*Message `json:"messages"`
		Partner        struct {
			Name string `json:"name"`
		} `json:"partner"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Messages) != 2 || page.Messages[0].Content != "one" || page.Partner.Name != "Asha" {
		t.Errorf("unexpected page %s", rec.Body.String())
	}
	if len(n.reads) != 1 || n.reads[0].partner != f.patient.ID {
		t.Errorf("expected a read notice for the patient, got %+v", n.reads)
	}

	c, _ = newRequest(http.MethodGet, "/", "", doctor)
	c.SetParamNames("partnerId", "partnerType")
	c.SetParamValues(uuid.NewString(), "Patient")
	if code := httpCode(t, h.GetConversation(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_MarkReadAndUnread(t *testing.T) {
	f := newChatFixture()
	n := &recordingNotifier{}
	h := NewHandler(f.svc, n)
	m := f.patientSays(t, "ping")
	doctor := auth.Identity{ID: f.doctor.ID, Kind: party.Doctor}

	c, rec := newRequest(http.MethodGet, "/unread", "", doctor)
	if err := h.UnreadCount(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"unreadCount":1}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c, _ = newRequest(http.MethodPatch, "/", "", doctor)
	c.SetParamNames("conversationId")
	c.SetParamValues(m.ConversationID)
	if err := h.MarkRead(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.reads) != 1 || n.reads[0].reader != f.doctor.ID || n.reads[0].partner != f.patient.ID {
		t.Errorf("unexpected read notices %+v", n.reads)
	}

	c, rec = newRequest(http.MethodGet, "/unread", "", doctor)
	_ = h.UnreadCount(c)
	if strings.TrimSpace(rec.Body.String()) != `{"unreadCount":0}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_ListConversations(t *testing.T) {
	f := newChatFixture()
	h := NewHandler(f.svc, nil)
	doctor := auth.Identity{ID: f.doctor.ID, Kind: party.Doctor}

	c, rec := newRequest(http.MethodGet, "/conversations", "", doctor)
	if err := h.ListConversations(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"conversations":[]}` {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}

	f.patientSays(t, "hello")
	c, rec = newRequest(http.MethodGet, "/conversations", "", doctor)
	if err := h.ListConversations(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"unreadCount":1`) || !strings.Contains(rec.Body.String(), `"isFromMe":false`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_DeleteMessage(t *testing.T) {
	f := newChatFixture()
	h := NewHandler(f.svc, nil)
	m := f.patientSays(t, "oops")

	doctor := auth.Identity{ID: f.doctor.ID, Kind: party.Doctor}
	c, _ := newRequest(http.MethodDelete, "/", "", doctor)
	c.SetParamNames("messageId")
	c.SetParamValues(m.ID.String())
	if code := httpCode(t, h.DeleteMessage(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}

	patient := auth.Identity{ID: f.patient.ID, Kind: party.Patient}
	c, rec := newRequest(http.MethodDelete, "/", "", patient)
	c.SetParamNames("messageId")
	c.SetParamValues(m.ID.String())
	if err := h.DeleteMessage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = newRequest(http.MethodDelete, "/", "", patient)
	c.SetParamNames("messageId")
	c.SetParamValues(m.ID.String())
	if code := httpCode(t, h.DeleteMessage(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}
