package association

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
)

type pairKey struct{ patient, user uuid.UUID }

// MemoryRepo keeps associations in process memory. The pair index enforces
// the same uniqueness as the database constraint.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Association
	byPair map[pairKey]uuid.UUID
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[uuid.UUID]*Association),
		byPair: make(map[pairKey]uuid.UUID),
	}
}

func copyOf(a *Association) *Association {
	c := *a
	if a.DeactivatedAt != nil {
		t := *a.DeactivatedAt
		c.DeactivatedAt = &t
	}
	return &c
}

func (r *MemoryRepo) InsertIfAbsent(_ context.Context, a *Association) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{a.PatientID, a.AssociatedUserID}
	if _, exists := r.byPair[key]; exists {
		return false, nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.byID[a.ID] = copyOf(a)
	r.byPair[key] = a.ID
	return true, nil
}

func (r *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Association, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, apperr.Missing("Association not found")
	}
	return copyOf(a), nil
}

func (r *MemoryRepo) GetByPair(_ context.Context, patientID, userID uuid.UUID) (*Association, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPair[pairKey{patientID, userID}]
	if !ok {
		return nil, apperr.Missing("Association not found")
	}
	return copyOf(r.byID[id]), nil
}

func (r *MemoryRepo) SetStatus(_ context.Context, id uuid.UUID, status Status, at time.Time, deactivatedAt *time.Time) (*Association, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, apperr.Missing("Association not found")
	}
	a.Status = status
	a.UpdatedAt = at
	a.DeactivatedAt = deactivatedAt
	return copyOf(a), nil
}

func (r *MemoryRepo) ExistsActive(_ context.Context, patientID, userID uuid.UUID, userType party.Kind) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPair[pairKey{patientID, userID}]
	if !ok {
		return false, nil
	}
	a := r.byID[id]
	return a.IsActive() && a.AssociatedUserType == userType, nil
}

func (r *MemoryRepo) ListActive(_ context.Context, id uuid.UUID, kind party.Kind) ([]*Association, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*Association
	for _, a := range r.byID {
		if !a.IsActive() {
			continue
		}
		if kind == party.Patient && a.PatientID == id ||
			kind != party.Patient && a.AssociatedUserID == id && a.AssociatedUserType == kind {
			items = append(items, copyOf(a))
		}
	}
	return items, nil
}
