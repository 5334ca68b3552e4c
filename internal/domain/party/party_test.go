package party

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	cases := map[string]Kind{
		"Patient":    Patient,
		"doctor":     Doctor,
		" Caretaker": Caretaker,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("Parse(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := Parse("Nurse"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestKind_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		K Kind `json:"k"`
	}{Doctor})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"k":"Doctor"}` {
		t.Errorf("unexpected JSON %s", b)
	}

	var out struct {
		K Kind `json:"k"`
	}
	if err := json.Unmarshal([]byte(`{"k":"caretaker"}`), &out); err != nil {
		t.Fatal(err)
	}
	if out.K != Caretaker {
		t.Errorf("expected Caretaker, got %v", out.K)
	}
	if err := json.Unmarshal([]byte(`{"k":"Admin"}`), &out); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestPatientSide(t *testing.T) {
	if first, ok := PatientSide(Patient, Doctor); !ok || !first {
		t.Error("patient/doctor should resolve with patient first")
	}
	if first, ok := PatientSide(Caretaker, Patient); !ok || first {
		t.Error("caretaker/patient should resolve with patient second")
	}
	if _, ok := PatientSide(Patient, Patient); ok {
		t.Error("patient/patient must not resolve")
	}
	if _, ok := PatientSide(Doctor, Caretaker); ok {
		t.Error("clinician/clinician must not resolve")
	}
}
