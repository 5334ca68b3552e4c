// Package presence tracks which users currently hold a live realtime
// connection on this process.
package presence

import (
	"sync"

	"github.com/google/uuid"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
)

// Ref identifies one connection. Any comparable value works; the router uses
// the connection id.
type Ref string

type Entry struct {
	Ref  Ref
	Kind party.Kind
}

// Registry is a process-wide map of user id to the live connection that
// represents them. Only one connection per user is tracked: a second Connect
// replaces the first.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]Entry)}
}

// Connect records ref as the user's connection and returns the entry it
// replaced, if any.
func (r *Registry) Connect(userID uuid.UUID, ref Ref, kind party.Kind) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, had := r.entries[userID]
	r.entries[userID] = Entry{Ref: ref, Kind: kind}
	return prev, had
}

// Disconnect removes the user whatever connection the entry belongs to.
func (r *Registry) Disconnect(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.entries, userID)
	r.mu.Unlock()
}

// Release removes the user only if the entry still belongs to ref. A stale
// connection closing after a reconnect leaves the newer entry in place.
func (r *Registry) Release(userID uuid.UUID, ref Ref) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[userID]; ok && e.Ref == ref {
		delete(r.entries, userID)
		return true
	}
	return false
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

// BulkStatus reports online status for each id. Duplicate ids collapse.
func (r *Registry) BulkStatus(userIDs []uuid.UUID) map[uuid.UUID]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		_, ok := r.entries[id]
		out[id] = ok
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
