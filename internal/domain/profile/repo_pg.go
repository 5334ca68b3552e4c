package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
)

type directoryPG struct{ pool *pgxpool.Pool }

func NewDirectoryPG(pool *pgxpool.Pool) Directory {
	return &directoryPG{pool: pool}
}

const patientCols = `id, qr_code_id, name, email, phone, gender, age, blood_group,
	allergies, chronic_conditions, medications`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.QRCodeID, &p.Name, &p.Email, &p.Phone, &p.Gender, &p.Age,
		&p.BloodGroup, &p.MedicalHistory.Allergies, &p.MedicalHistory.ChronicConditions,
		&p.MedicalHistory.Medications)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Missing("Patient not found")
	}
	if err != nil {
		return nil, apperr.Internalf(err, "scan patient")
	}
	return &p, nil
}

func (r *directoryPG) PatientByQR(ctx context.Context, qrCodeID string) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE qr_code_id = $1`, qrCodeID))
}

func (r *directoryPG) PatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *directoryPG) Summary(ctx context.Context, id uuid.UUID, kind party.Kind) (*Summary, error) {
	switch kind {
	case party.Patient:
		p, err := r.PatientByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return p.Summary(), nil
	case party.Doctor:
		s := &Summary{ID: id, Type: kind}
		err := r.pool.QueryRow(ctx,
			`SELECT name, email, phone, specialization FROM doctor WHERE id = $1`, id,
		).Scan(&s.Name, &s.Email, &s.Phone, &s.Specialization)
		return summaryResult(s, err)
	case party.Caretaker:
		s := &Summary{ID: id, Type: kind}
		err := r.pool.QueryRow(ctx,
			`SELECT name, email, phone FROM caretaker WHERE id = $1`, id,
		).Scan(&s.Name, &s.Email, &s.Phone)
		return summaryResult(s, err)
	}
	return nil, apperr.Invalid(fmt.Sprintf("unknown user type %v", kind))
}

func summaryResult(s *Summary, err error) (*Summary, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Missing(fmt.Sprintf("%s not found", s.Type))
	}
	if err != nil {
		return nil, apperr.Internalf(err, "load %s summary", s.Type)
	}
	return s, nil
}

const mirrorCols = `owner_id, owner_type, counterpart_id, counterpart_type, patient_qr_code_id,
	specialization, relation, diagnosis, notes, associated_at, last_visit, is_active`

func scanMirror(row pgx.Row) (*Mirror, error) {
	var m Mirror
	var ownerType, counterpartType string
	err := row.Scan(&m.OwnerID, &ownerType, &m.CounterpartID, &counterpartType, &m.PatientQRCodeID,
		&m.Specialization, &m.Relation, &m.Diagnosis, &m.Notes, &m.AssociatedAt, &m.LastVisit, &m.IsActive)
	if err != nil {
		return nil, err
	}
	if m.OwnerType, err = party.Parse(ownerType); err != nil {
		return nil, err
	}
	if m.CounterpartType, err = party.Parse(counterpartType); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *directoryPG) UpsertMirror(ctx context.Context, m *Mirror) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profile_association (`+mirrorCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (owner_id, counterpart_id) DO UPDATE SET
			owner_type = EXCLUDED.owner_type,
			counterpart_type = EXCLUDED.counterpart_type,
			patient_qr_code_id = EXCLUDED.patient_qr_code_id,
			specialization = EXCLUDED.specialization,
			relation = EXCLUDED.relation,
			notes = CASE WHEN EXCLUDED.notes = '' THEN profile_association.notes ELSE EXCLUDED.notes END,
			associated_at = CASE WHEN profile_association.is_active THEN profile_association.associated_at
				ELSE EXCLUDED.associated_at END,
			is_active = EXCLUDED.is_active`,
		m.OwnerID, m.OwnerType.String(), m.CounterpartID, m.CounterpartType.String(), m.PatientQRCodeID,
		m.Specialization, m.Relation, m.Diagnosis, m.Notes, m.AssociatedAt, m.LastVisit, m.IsActive)
	if err != nil {
		return apperr.Internalf(err, "upsert mirror %s/%s", m.OwnerID, m.CounterpartID)
	}
	return nil
}

func (r *directoryPG) ListMirrors(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]*Mirror, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+mirrorCols+` FROM profile_association
		WHERE owner_id = $1 AND (NOT $2 OR is_active)
		ORDER BY associated_at DESC`, ownerID, activeOnly)
	if err != nil {
		return nil, apperr.Internalf(err, "list mirrors for %s", ownerID)
	}
	defer rows.Close()

	var items []*Mirror
	for rows.Next() {
		m, err := scanMirror(rows)
		if err != nil {
			return nil, apperr.Internalf(err, "scan mirror")
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internalf(err, "iterate mirrors")
	}
	return items, nil
}

func (r *directoryPG) RecordVisit(ctx context.Context, ownerID, counterpartID uuid.UUID, v Visit) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE profile_association SET
			last_visit = $3,
			diagnosis = CASE WHEN $4 = '' THEN diagnosis ELSE $4 END,
			notes = CASE WHEN $5 = '' THEN notes ELSE $5 END
		WHERE owner_id = $1 AND counterpart_id = $2 AND is_active`,
		ownerID, counterpartID, v.At, v.Diagnosis, v.Notes)
	if err != nil {
		return apperr.Internalf(err, "record visit")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Missing("Patient association not found")
	}
	return nil
}
