package profile

import (
	"time"

	"github.com/google/uuid"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
)

// MedicalHistory is the clinically relevant part of a patient profile shown
// to clinicians before they associate.
type MedicalHistory struct {
	Allergies         []string `db:"allergies" json:"allergies"`
	ChronicConditions []string `db:"chronic_conditions" json:"chronicConditions"`
	Medications       []string `db:"medications" json:"medications"`
}

// Patient is the patient record the association flow reads.
type Patient struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	QRCodeID       string         `db:"qr_code_id" json:"qrCodeId"`
	Name           string         `db:"name" json:"name"`
	Email          string         `db:"email" json:"email"`
	Phone          string         `db:"phone" json:"phone"`
	Gender         string         `db:"gender" json:"gender"`
	Age            int            `db:"age" json:"age"`
	BloodGroup     string         `db:"blood_group" json:"bloodGroup"`
	MedicalHistory MedicalHistory `json:"medicalHistory"`
}

// Doctor holds the fields of a doctor profile used for summaries.
type Doctor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Phone          string    `db:"phone" json:"phone"`
	Specialization string    `db:"specialization" json:"specialization"`
	ClinicAddress  string    `db:"clinic_address" json:"clinicAddress"`
}

type Caretaker struct {
	ID    uuid.UUID `db:"id" json:"id"`
	Name  string    `db:"name" json:"name"`
	Email string    `db:"email" json:"email"`
	Phone string    `db:"phone" json:"phone"`
}

// Summary is the display card for a conversation partner or associate.
type Summary struct {
	ID             uuid.UUID  `json:"id"`
	Type           party.Kind `json:"type"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Specialization string     `json:"specialization,omitempty"`
	Age            int        `json:"age,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	BloodGroup     string     `json:"bloodGroup,omitempty"`
}

// Preview is what a clinician sees after a QR scan.
type Preview struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Age        int       `json:"age"`
	BloodGroup string    `json:"bloodGroup"`
	Gender     string    `json:"gender"`
}

func (p *Patient) Preview() Preview {
	return Preview{ID: p.ID, Name: p.Name, Age: p.Age, BloodGroup: p.BloodGroup, Gender: p.Gender}
}

func (p *Patient) Summary() *Summary {
	return &Summary{
		ID: p.ID, Type: party.Patient, Name: p.Name, Email: p.Email, Phone: p.Phone,
		Age: p.Age, Gender: p.Gender, BloodGroup: p.BloodGroup,
	}
}

// Mirror is the denormalized copy of an association kept on a profile for
// display. It is never consulted for authorization.
type Mirror struct {
	OwnerID         uuid.UUID  `db:"owner_id" json:"ownerId"`
	OwnerType       party.Kind `db:"owner_type" json:"ownerType"`
	CounterpartID   uuid.UUID  `db:"counterpart_id" json:"counterpartId"`
	CounterpartType party.Kind `db:"counterpart_type" json:"counterpartType"`
	PatientQRCodeID string     `db:"patient_qr_code_id" json:"patientQrCodeId,omitempty"`
	Specialization  string     `db:"specialization" json:"specialization,omitempty"`
	Relation        string     `db:"relation" json:"relation,omitempty"`
	Diagnosis       string     `db:"diagnosis" json:"diagnosis,omitempty"`
	Notes           string     `db:"notes" json:"notes,omitempty"`
	AssociatedAt    time.Time  `db:"associated_at" json:"associatedAt"`
	LastVisit       *time.Time `db:"last_visit" json:"lastVisit,omitempty"`
	IsActive        bool       `db:"is_active" json:"isActive"`
}

// Visit is a doctor's update to their mirror entry for a patient. Empty
// strings leave the stored value unchanged.
type Visit struct {
	At        time.Time
	Diagnosis string
	Notes     string
}

// RelationProfessional is the relation recorded for caretakers who
// associate through a QR scan.
const RelationProfessional = "professional"
