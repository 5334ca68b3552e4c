package association

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
	"github.com/bhavishy2801/CareBridge/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the association endpoints on g, which must already
// require authentication.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/scan", h.Scan)
	g.GET("", h.List)
	g.GET("/", h.List)
	g.GET("/patient/:qrCodeId", h.PreviewPatient)
	g.POST("/can-communicate", h.CanCommunicate)
	g.PATCH("/:associationId/deactivate", h.Deactivate)
	g.PATCH("/visit/:patientId", h.RecordVisit, auth.RequireUserType(party.Doctor))
}

func identity(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, apperr.HTTPError(apperr.Unauthenticated("No token provided"))
	}
	return id, nil
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.HTTPError(apperr.Invalid("invalid " + name))
	}
	return id, nil
}

type scanRequest struct {
	QRCodeID string `json:"qrCodeId"`
	Notes    string `json:"notes"`
}

func (h *Handler) Scan(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return apperr.HTTPError(apperr.Invalid("invalid request body"))
	}

	result, err := h.svc.CreateOrReactivate(c.Request().Context(), ScanInput{
		QRCodeID:    req.QRCodeID,
		ScannerID:   me.ID,
		ScannerType: me.Kind,
		Notes:       req.Notes,
	})
	if err != nil {
		return apperr.HTTPError(err)
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	return c.JSON(status, result)
}

func (h *Handler) List(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	listing, err := h.svc.ListForUser(c.Request().Context(), me.ID, me.Kind)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"associations": listing})
}

func (h *Handler) PreviewPatient(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	p, err := h.svc.PreviewPatient(c.Request().Context(), c.Param("qrCodeId"), me.Kind)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient": map[string]interface{}{
			"id":             p.ID,
			"name":           p.Name,
			"age":            p.Age,
			"gender":         p.Gender,
			"bloodGroup":     p.BloodGroup,
			"medicalHistory": p.MedicalHistory,
		},
	})
}

type canCommunicateRequest struct {
	TargetUserID   string `json:"targetUserId"`
	TargetUserType string `json:"targetUserType"`
}

func (h *Handler) CanCommunicate(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	var req canCommunicateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.HTTPError(apperr.Invalid("invalid request body"))
	}
	target, err := uuid.Parse(req.TargetUserID)
	if err != nil {
		return apperr.HTTPError(apperr.Invalid("targetUserId must be a valid id"))
	}
	targetKind, err := party.Parse(req.TargetUserType)
	if err != nil {
		return apperr.HTTPError(apperr.Invalid("targetUserType must be Patient, Doctor or Caretaker"))
	}

	ok, err := h.svc.CanCommunicate(c.Request().Context(), me.ID, me.Kind, target, targetKind)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"canCommunicate": ok})
}

func (h *Handler) Deactivate(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "associationId")
	if err != nil {
		return err
	}
	if _, err := h.svc.Deactivate(c.Request().Context(), id, me.ID); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"msg": "Association deactivated successfully"})
}

type visitRequest struct {
	Diagnosis string `json:"diagnosis"`
	Notes     string `json:"notes"`
}

func (h *Handler) RecordVisit(c echo.Context) error {
	me, err := identity(c)
	if err != nil {
		return err
	}
	patientID, err := parseUUIDParam(c, "patientId")
	if err != nil {
		return err
	}
	var req visitRequest
	if err := c.Bind(&req); err != nil {
		return apperr.HTTPError(apperr.Invalid("invalid request body"))
	}
	if err := h.svc.RecordVisit(c.Request().Context(), me.ID, me.Kind, patientID, req.Diagnosis, req.Notes); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"msg": "Visit record updated successfully"})
}
