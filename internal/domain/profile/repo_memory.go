package profile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
)

type mirrorKey struct{ owner, counterpart uuid.UUID }

// MemoryDirectory is a process-local Directory used by STORE_DRIVER=memory
// and by tests. Records returned are copies.
type MemoryDirectory struct {
	mu         sync.RWMutex
	patients   map[uuid.UUID]Patient
	byQR       map[string]uuid.UUID
	doctors    map[uuid.UUID]Doctor
	caretakers map[uuid.UUID]Caretaker
	mirrors    map[mirrorKey]Mirror
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		patients:   make(map[uuid.UUID]Patient),
		byQR:       make(map[string]uuid.UUID),
		doctors:    make(map[uuid.UUID]Doctor),
		caretakers: make(map[uuid.UUID]Caretaker),
		mirrors:    make(map[mirrorKey]Mirror),
	}
}

// AddPatient stores p, assigning an id and QR code when they are empty.
func (d *MemoryDirectory) AddPatient(p Patient) Patient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.QRCodeID == "" {
		p.QRCodeID = uuid.NewString()
	}
	d.patients[p.ID] = p
	d.byQR[p.QRCodeID] = p.ID
	return p
}

func (d *MemoryDirectory) AddDoctor(doc Doctor) Doctor {
	d.mu.Lock()
	defer d.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	d.doctors[doc.ID] = doc
	return doc
}

func (d *MemoryDirectory) AddCaretaker(c Caretaker) Caretaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	d.caretakers[c.ID] = c
	return c
}

func (d *MemoryDirectory) PatientByQR(_ context.Context, qrCodeID string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byQR[qrCodeID]
	if !ok {
		return nil, apperr.Missing("Patient not found")
	}
	p := d.patients[id]
	return &p, nil
}

func (d *MemoryDirectory) PatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.patients[id]
	if !ok {
		return nil, apperr.Missing("Patient not found")
	}
	return &p, nil
}

func (d *MemoryDirectory) Summary(ctx context.Context, id uuid.UUID, kind party.Kind) (*Summary, error) {
	switch kind {
	case party.Patient:
		p, err := d.PatientByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return p.Summary(), nil
	case party.Doctor:
		d.mu.RLock()
		doc, ok := d.doctors[id]
		d.mu.RUnlock()
		if !ok {
			return nil, apperr.Missing("Doctor not found")
		}
		return &Summary{ID: id, Type: kind, Name: doc.Name, Email: doc.Email, Phone: doc.Phone, Specialization: doc.Specialization}, nil
	case party.Caretaker:
		d.mu.RLock()
		c, ok := d.caretakers[id]
		d.mu.RUnlock()
		if !ok {
			return nil, apperr.Missing("Caretaker not found")
		}
		return &Summary{ID: id, Type: kind, Name: c.Name, Email: c.Email, Phone: c.Phone}, nil
	}
	return nil, apperr.Invalid(fmt.Sprintf("unknown user type %v", kind))
}

func (d *MemoryDirectory) UpsertMirror(_ context.Context, m *Mirror) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := mirrorKey{m.OwnerID, m.CounterpartID}
	next := *m
	if prev, ok := d.mirrors[key]; ok {
		next.LastVisit = prev.LastVisit
		next.Diagnosis = prev.Diagnosis
		if next.Notes == "" {
			next.Notes = prev.Notes
		}
		if prev.IsActive {
			next.AssociatedAt = prev.AssociatedAt
		}
	}
	d.mirrors[key] = next
	return nil
}

func (d *MemoryDirectory) ListMirrors(_ context.Context, ownerID uuid.UUID, activeOnly bool) ([]*Mirror, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var items []*Mirror
	for key, m := range d.mirrors {
		if key.owner != ownerID || (activeOnly && !m.IsActive) {
			continue
		}
		m := m
		items = append(items, &m)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].AssociatedAt.After(items[j].AssociatedAt)
	})
	return items, nil
}

func (d *MemoryDirectory) RecordVisit(_ context.Context, ownerID, counterpartID uuid.UUID, v Visit) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := mirrorKey{ownerID, counterpartID}
	m, ok := d.mirrors[key]
	if !ok || !m.IsActive {
		return apperr.Missing("Patient association not found")
	}
	at := v.At
	m.LastVisit = &at
	if v.Diagnosis != "" {
		m.Diagnosis = v.Diagnosis
	}
	if v.Notes != "" {
		m.Notes = v.Notes
	}
	d.mirrors[key] = m
	return nil
}
