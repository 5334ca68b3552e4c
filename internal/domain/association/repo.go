package association

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
)

type Repository interface {
	// InsertIfAbsent stores a unless a row already exists for its
	// (PatientID, AssociatedUserID) pair. It reports whether a was stored.
	InsertIfAbsent(ctx context.Context, a *Association) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Association, error)
	GetByPair(ctx context.Context, patientID, userID uuid.UUID) (*Association, error)
	// SetStatus updates the status and deactivation time and returns the
	// stored row.
	SetStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time, deactivatedAt *time.Time) (*Association, error)
	ExistsActive(ctx context.Context, patientID, userID uuid.UUID, userType party.Kind) (bool, error)
	// ListActive returns the active associations in which id takes part as
	// the given kind.
	ListActive(ctx context.Context, id uuid.UUID, kind party.Kind) ([]*Association, error)
}
