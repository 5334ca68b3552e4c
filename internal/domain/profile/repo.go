// Package profile is the narrow view of the profile collaborator used by
// associations and chat: QR lookup, display summaries and the denormalized
// association lists kept on each profile.
package profile

import (
	"context"

	"github.com/google/uuid"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
)

// Directory is implemented by the Postgres and in-memory stores. Lookups of
// unknown records return an apperr not-found error.
type Directory interface {
	PatientByQR(ctx context.Context, qrCodeID string) (*Patient, error)
	PatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Summary(ctx context.Context, id uuid.UUID, kind party.Kind) (*Summary, error)

	// UpsertMirror inserts the entry or overwrites the existing one for
	// (OwnerID, CounterpartID), keeping LastVisit and Diagnosis.
	UpsertMirror(ctx context.Context, m *Mirror) error
	ListMirrors(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]*Mirror, error)
	RecordVisit(ctx context.Context, ownerID, counterpartID uuid.UUID, v Visit) error
}
