package association

import (
	"context"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/domain/profile"
)

// Reconcile brings both mirror entries of a in line with its status. It is
// idempotent and best effort: failures are logged and the authoritative
// association is left as is.
func (s *Service) Reconcile(ctx context.Context, a *Association) {
	for _, m := range s.mirrorsFor(ctx, a) {
		if err := s.profiles.UpsertMirror(ctx, m); err != nil {
			s.logger.Error().Err(err).
				Str("association_id", a.ID.String()).
				Str("owner_id", m.OwnerID.String()).
				Msg("mirror reconciliation failed")
		}
	}
}

func (s *Service) mirrorsFor(ctx context.Context, a *Association) []*profile.Mirror {
	active := a.IsActive()
	at := a.UpdatedAt

	patientSide := &profile.Mirror{
		OwnerID:         a.PatientID,
		OwnerType:       party.Patient,
		CounterpartID:   a.AssociatedUserID,
		CounterpartType: a.AssociatedUserType,
		PatientQRCodeID: a.PatientQRCodeID,
		AssociatedAt:    at,
		IsActive:        active,
	}
	clinicianSide := &profile.Mirror{
		OwnerID:         a.AssociatedUserID,
		OwnerType:       a.AssociatedUserType,
		CounterpartID:   a.PatientID,
		CounterpartType: party.Patient,
		PatientQRCodeID: a.PatientQRCodeID,
		Notes:           a.Notes,
		AssociatedAt:    at,
		IsActive:        active,
	}

	switch a.AssociatedUserType {
	case party.Doctor:
		if doc, err := s.profiles.Summary(ctx, a.AssociatedUserID, party.Doctor); err == nil {
			patientSide.Specialization = doc.Specialization
		} else {
			s.logger.Warn().Err(err).Str("doctor_id", a.AssociatedUserID.String()).
				Msg("doctor profile unavailable for mirror")
		}
	case party.Caretaker:
		patientSide.Relation = profile.RelationProfessional
		clinicianSide.Relation = profile.RelationProfessional
	}
	return []*profile.Mirror{patientSide, clinicianSide}
}
