package association

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/domain/profile"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
)

// Service is the authoritative patient/clinician authorization graph.
type Service struct {
	repo     Repository
	profiles profile.Directory
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, profiles profile.Directory, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		logger:   logger.With().Str("component", "association").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrReactivate handles a clinician scanning a patient's QR code.
func (s *Service) CreateOrReactivate(ctx context.Context, in ScanInput) (*ScanResult, error) {
	if !in.ScannerType.IsClinician() {
		return nil, apperr.Forbidden("Only doctors and caretakers can scan patient QR codes")
	}
	in.QRCodeID = strings.TrimSpace(in.QRCodeID)
	if in.QRCodeID == "" {
		return nil, apperr.Invalid("QR code ID is required")
	}

	patient, err := s.profiles.PatientByQR(ctx, in.QRCodeID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Missing("Invalid QR code - Patient not found")
		}
		return nil, err
	}

	result, err := s.upsert(ctx, patient, in)
	if err != nil {
		return nil, err
	}
	result.Patient = patient.Preview()

	s.Reconcile(ctx, result.Association)
	return result, nil
}

func (s *Service) upsert(ctx context.Context, patient *profile.Patient, in ScanInput) (*ScanResult, error) {
	// Two attempts: a concurrent scan may insert the pair between our read
	// and our insert, in which case the second pass sees it.
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.repo.GetByPair(ctx, patient.ID, in.ScannerID)
		switch {
		case err == nil:
			return s.resolveExisting(ctx, existing, in)
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}

		now := s.now()
		a := &Association{
			ID:                 uuid.New(),
			PatientID:          patient.ID,
			PatientQRCodeID:    patient.QRCodeID,
			AssociatedUserID:   in.ScannerID,
			AssociatedUserType: in.ScannerType,
			Status:             StatusActive,
			CreatedVia:         ViaQRScan,
			Notes:              in.Notes,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		created, err := s.repo.InsertIfAbsent(ctx, a)
		if err != nil {
			return nil, err
		}
		if created {
			s.logger.Info().Str("association_id", a.ID.String()).
				Str("patient_id", a.PatientID.String()).
				Str("user_id", a.AssociatedUserID.String()).
				Msg("association created")
			return &ScanResult{Association: a, IsNew: true, Message: MsgCreated}, nil
		}
	}
	return nil, apperr.New(apperr.Conflict, "Association is being modified, retry")
}

func (s *Service) resolveExisting(ctx context.Context, existing *Association, in ScanInput) (*ScanResult, error) {
	if existing.AssociatedUserType != in.ScannerType {
		return nil, apperr.New(apperr.Conflict, "Association exists with a different user type")
	}
	if existing.IsActive() {
		return &ScanResult{Association: existing, Message: MsgExists}, nil
	}
	updated, err := s.repo.SetStatus(ctx, existing.ID, StatusActive, s.now(), nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("association_id", updated.ID.String()).Msg("association reactivated")
	return &ScanResult{Association: updated, Message: MsgReactivated}, nil
}

// Deactivate lets either party end an association.
func (s *Service) Deactivate(ctx context.Context, associationID, requesterID uuid.UUID) (*Association, error) {
	a, err := s.repo.GetByID(ctx, associationID)
	if err != nil {
		return nil, err
	}
	if !a.Involves(requesterID) {
		return nil, apperr.Forbidden("Not authorized to modify this association")
	}
	now := s.now()
	updated, err := s.repo.SetStatus(ctx, a.ID, StatusInactive, now, &now)
	if err != nil {
		return nil, err
	}
	s.Reconcile(ctx, updated)
	s.logger.Info().Str("association_id", updated.ID.String()).
		Str("requester_id", requesterID.String()).
		Msg("association deactivated")
	return updated, nil
}

// CanCommunicate is the authorization gate for every chat operation. It is
// true only when one side is a patient and the other holds an active
// association with that patient as the recorded user type.
func (s *Service) CanCommunicate(ctx context.Context, aID uuid.UUID, aKind party.Kind, bID uuid.UUID, bKind party.Kind) (bool, error) {
	patientFirst, ok := party.PatientSide(aKind, bKind)
	if !ok {
		return false, nil
	}
	if patientFirst {
		return s.repo.ExistsActive(ctx, aID, bID, bKind)
	}
	return s.repo.ExistsActive(ctx, bID, aID, aKind)
}

// PeersOf returns the counterparts of every active association of id.
func (s *Service) PeersOf(ctx context.Context, id uuid.UUID, kind party.Kind) ([]uuid.UUID, error) {
	items, err := s.repo.ListActive(ctx, id, kind)
	if err != nil {
		return nil, err
	}
	peers := lo.Map(items, func(a *Association, _ int) uuid.UUID {
		peer, _ := a.Counterpart(id)
		return peer
	})
	return lo.Uniq(peers), nil
}

// PreviewPatient lets a clinician look at a patient before associating.
func (s *Service) PreviewPatient(ctx context.Context, qrCodeID string, viewer party.Kind) (*profile.Patient, error) {
	if !viewer.IsClinician() {
		return nil, apperr.Forbidden("Only doctors and caretakers can look up patients by QR code")
	}
	return s.profiles.PatientByQR(ctx, qrCodeID)
}

// RecordVisit updates the doctor's entry for an associated patient.
func (s *Service) RecordVisit(ctx context.Context, doctorID uuid.UUID, viewer party.Kind, patientID uuid.UUID, diagnosis, notes string) error {
	if viewer != party.Doctor {
		return apperr.Forbidden("Only doctors can update visit records")
	}
	return s.profiles.RecordVisit(ctx, doctorID, patientID, profile.Visit{
		At:        s.now(),
		Diagnosis: strings.TrimSpace(diagnosis),
		Notes:     strings.TrimSpace(notes),
	})
}

// ListForUser returns the user's active associates with their profile cards.
func (s *Service) ListForUser(ctx context.Context, id uuid.UUID, kind party.Kind) (Listing, error) {
	mirrors, err := s.profiles.ListMirrors(ctx, id, true)
	if err != nil {
		return nil, err
	}

	listing := Listing{}
	if kind == party.Patient {
		listing["doctors"] = []*Associate{}
		listing["caretakers"] = []*Associate{}
	} else {
		listing["patients"] = []*Associate{}
	}

	for _, m := range mirrors {
		entry := &Associate{
			ID:             m.CounterpartID,
			Type:           m.CounterpartType,
			Specialization: m.Specialization,
			Relation:       m.Relation,
			Diagnosis:      m.Diagnosis,
			Notes:          m.Notes,
			AssociatedAt:   m.AssociatedAt,
			LastVisit:      m.LastVisit,
			IsActive:       m.IsActive,
		}
		summary, err := s.profiles.Summary(ctx, m.CounterpartID, m.CounterpartType)
		if err != nil {
			s.logger.Warn().Err(err).Str("counterpart_id", m.CounterpartID.String()).
				Msg("associate profile unavailable")
		} else {
			entry.Profile = summary
		}

		key := groupKey(m.CounterpartType)
		if _, ok := listing[key]; ok {
			listing[key] = append(listing[key], entry)
		}
	}
	return listing, nil
}

func groupKey(k party.Kind) string {
	switch k {
	case party.Doctor:
		return "doctors"
	case party.Caretaker:
		return "caretakers"
	}
	return "patients"
}
