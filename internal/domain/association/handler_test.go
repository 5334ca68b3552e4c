package association

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/auth"
)

func newTestContext(method, body string, who auth.Identity) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(req.Context(), who))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func TestHandler_Scan(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	doctor := auth.Identity{ID: f.doctor.ID, Kind: party.Doctor, Role: "doctor"}
	body := `{"qrCodeId":"` + f.patient.QRCodeID + `","notes":"intake"}`

	c, rec := newTestContext(http.MethodPost, body, doctor)
	if err := h.Scan(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Msg         string      `json:"msg"`
		Association Association `json:"association"`
		Patient     struct {
			Name string `json:"name"`
		} `json:"patient"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Msg != MsgCreated || resp.Patient.Name != "Asha" || resp.Association.AssociatedUserType != party.Doctor {
		t.Errorf("unexpected response %s", rec.Body.String())
	}

	c, rec = newTestContext(http.MethodPost, body, doctor)
	if err := h.Scan(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for repeat scan, got %d", rec.Code)
	}
}

func TestHandler_Scan_Errors(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)

	patient := auth.Identity{ID: f.patient.ID, Kind: party.Patient}
	c, _ := newTestContext(http.MethodPost, `{"qrCodeId":"x"}`, patient)
	if code := statusOf(t, h.Scan(c)); code != http.StatusForbidden {
		t.Errorf("expected 403 for patient scanner, got %d", code)
	}

	doctor := auth.Identity{ID: f.doctor.ID, Kind: party.Doctor}
	c, _ = newTestContext(http.MethodPost, `{}`, doctor)
	if code := statusOf(t, h.Scan(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing qr, got %d", code)
	}

	c, _ = newTestContext(http.MethodPost, `{"qrCodeId":"unknown"}`, doctor)
	if code := statusOf(t, h.Scan(c)); code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown qr, got %d", code)
	}
}

func TestHandler_CanCommunicate(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	f.scanAsDoctor(t)

	patient := auth.Identity{ID: f.patient.ID, Kind: party.Patient}
	body := `{"targetUserId":"` + f.doctor.ID.String() + `","targetUserType":"Doctor"}`
	c, rec := newTestContext(http.MethodPost, body, patient)
	if err := h.CanCommunicate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"canCommunicate":true}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c, _ = newTestContext(http.MethodPost, `{"targetUserId":"bad","targetUserType":"Doctor"}`, patient)
	if code := statusOf(t, h.CanCommunicate(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", code)
	}
}

func TestHandler_Deactivate(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	res := f.scanAsDoctor(t)

	outsider := auth.Identity{ID: uuid.New(), Kind: party.Caretaker}
	c, _ := newTestContext(http.MethodPatch, "", outsider)
	c.SetParamNames("associationId")
	c.SetParamValues(res.Association.ID.String())
	if code := statusOf(t, h.Deactivate(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}

	patient := auth.Identity{ID: f.patient.ID, Kind: party.Patient}
	c, rec := newTestContext(http.MethodPatch, "", patient)
	c.SetParamNames("associationId")
	c.SetParamValues(res.Association.ID.String())
	if err := h.Deactivate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = newTestContext(http.MethodPatch, "", patient)
	c.SetParamNames("associationId")
	c.SetParamValues(uuid.NewString())
	if code := statusOf(t, h.Deactivate(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_PreviewPatient(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)

	caretaker := auth.Identity{ID: f.caretaker.ID, Kind: party.Caretaker}
	c, rec := newTestContext(http.MethodGet, "", caretaker)
	c.SetParamNames("qrCodeId")
	c.SetParamValues(f.patient.QRCodeID)
	if err := h.PreviewPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"medicalHistory"`) {
		t.Errorf("expected medical history in preview: %s", rec.Body.String())
	}

	patient := auth.Identity{ID: f.patient.ID, Kind: party.Patient}
	c, _ = newTestContext(http.MethodGet, "", patient)
	c.SetParamNames("qrCodeId")
	c.SetParamValues(f.patient.QRCodeID)
	if code := statusOf(t, h.PreviewPatient(c)); code != http.StatusForbidden {
		t.Errorf("expected 403 for patient viewer, got %d", code)
	}
}

func TestHandler_ListAndVisit(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	f.scanAsDoctor(t)

	doctor := auth.Identity{ID: f.doctor.ID, Kind: party.Doctor}
	c, rec := newTestContext(http.MethodPatch, `{"diagnosis":"asthma"}`, doctor)
	c.SetParamNames("patientId")
	c.SetParamValues(f.patient.ID.String())
	if err := h.RecordVisit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, rec = newTestContext(http.MethodGet, "", doctor)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Associations map[string][]Associate `json:"associations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	patients := resp.Associations["patients"]
	if len(patients) != 1 || patients[0].Diagnosis != "asthma" {
		t.Errorf("unexpected listing %s", rec.Body.String())
	}
}
