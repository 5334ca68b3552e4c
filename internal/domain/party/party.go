// Package party defines the kinds of participant that can hold an account:
// patients and the two clinician kinds that may be associated with them.
package party

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is a closed variant: Patient, Doctor or Caretaker. The zero value is
// not a valid kind.
type Kind uint8

const (
	Unknown Kind = iota
	Patient
	Doctor
	Caretaker
)

var kindNames = map[Kind]string{
	Patient:   "Patient",
	Doctor:    "Doctor",
	Caretaker: "Caretaker",
}

// Parse accepts the canonical capitalized name ("Doctor") as well as the
// lower-case role spelling used in credentials ("doctor").
func Parse(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patient":
		return Patient, nil
	case "doctor":
		return Doctor, nil
	case "caretaker":
		return Caretaker, nil
	}
	return Unknown, fmt.Errorf("unknown party kind %q", s)
}

// MustParse is Parse for constants in tests and fixtures.
func MustParse(s string) Kind {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether k is one of the three defined kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsClinician is true for doctors and caretakers.
func (k Kind) IsClinician() bool {
	return k == Doctor || k == Caretaker
}

// Role is the lower-case credential role for the kind.
func (k Kind) Role() string {
	return strings.ToLower(k.String())
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*k = Unknown
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// PatientSide reports which side of a pair is the patient. ok is false unless
// exactly one side is a patient and the other a clinician.
func PatientSide(aKind, bKind Kind) (patientFirst bool, ok bool) {
	switch {
	case aKind == Patient && bKind.IsClinician():
		return true, true
	case bKind == Patient && aKind.IsClinician():
		return false, true
	}
	return false, false
}
