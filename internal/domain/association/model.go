package association

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/domain/profile"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusRejected Status = "rejected"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusActive, StatusInactive, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown association status %q", s)
}

type CreatedVia string

const (
	ViaQRScan   CreatedVia = "qr_scan"
	ViaManual   CreatedVia = "manual"
	ViaReferral CreatedVia = "referral"
)

// Association authorizes one clinician to communicate with one patient. At
// most one exists per (PatientID, AssociatedUserID); rows are never deleted.
type Association struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patientId"`
	PatientQRCodeID    string     `db:"patient_qr_code_id" json:"patientQrCodeId"`
	AssociatedUserID   uuid.UUID  `db:"associated_user_id" json:"associatedUserId"`
	AssociatedUserType party.Kind `db:"associated_user_type" json:"associatedUserType"`
	Status             Status     `db:"status" json:"status"`
	CreatedVia         CreatedVia `db:"created_via" json:"createdVia"`
	Notes              string     `db:"notes" json:"notes,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
	DeactivatedAt      *time.Time `db:"deactivated_at" json:"deactivatedAt,omitempty"`
}

func (a *Association) IsActive() bool { return a.Status == StatusActive }

// Involves reports whether id is either side of the association.
func (a *Association) Involves(id uuid.UUID) bool {
	return a.PatientID == id || a.AssociatedUserID == id
}

// Counterpart returns the other side of the association from id's view.
func (a *Association) Counterpart(id uuid.UUID) (uuid.UUID, party.Kind) {
	if a.PatientID == id {
		return a.AssociatedUserID, a.AssociatedUserType
	}
	return a.PatientID, party.Patient
}

// ScanInput is a clinician's QR scan request.
type ScanInput struct {
	QRCodeID    string
	ScannerID   uuid.UUID
	ScannerType party.Kind
	Notes       string
}

type ScanResult struct {
	Association *Association    `json:"association"`
	Patient     profile.Preview `json:"patient"`
	IsNew       bool            `json:"-"`
	Message     string          `json:"msg"`
}

const (
	MsgCreated     = "Association created successfully"
	MsgReactivated = "Association reactivated"
	MsgExists      = "Association already exists"
)

// Associate is one entry of a user's association listing: the mirror data
// plus the counterpart's profile card.
type Associate struct {
	ID             uuid.UUID        `json:"id"`
	Type           party.Kind       `json:"type"`
	Profile        *profile.Summary `json:"profile,omitempty"`
	Specialization string           `json:"specialization,omitempty"`
	Relation       string           `json:"relation,omitempty"`
	Diagnosis      string           `json:"diagnosis,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	AssociatedAt   time.Time        `json:"associatedAt"`
	LastVisit      *time.Time       `json:"lastVisit,omitempty"`
	IsActive       bool             `json:"isActive"`
}

// Listing groups associates by kind: "doctors" and "caretakers" for a
// patient, "patients" for a clinician.
type Listing map[string][]*Associate
