package profile

import (
	"encoding/json"
	"fmt"
	"io"
)

// Fixtures is the JSON document accepted by LoadFixtures.
type Fixtures struct {
	Patients   []Patient   `json:"patients"`
	Doctors    []Doctor    `json:"doctors"`
	Caretakers []Caretaker `json:"caretakers"`
}

// LoadFixtures seeds the directory from a JSON document. It is used to run
// the memory store with known accounts.
func (d *MemoryDirectory) LoadFixtures(r io.Reader) (int, error) {
	var f Fixtures
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return 0, fmt.Errorf("decode fixtures: %w", err)
	}
	for _, p := range f.Patients {
		d.AddPatient(p)
	}
	for _, doc := range f.Doctors {
		d.AddDoctor(doc)
	}
	for _, c := range f.Caretakers {
		d.AddCaretaker(c)
	}
	return len(f.Patients) + len(f.Doctors) + len(f.Caretakers), nil
}
