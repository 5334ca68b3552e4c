package association

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const assocCols = `id, patient_id, patient_qr_code_id, associated_user_id, associated_user_type,
	status, created_via, notes, created_at, updated_at, deactivated_at`

func scanAssociation(row pgx.Row) (*Association, error) {
	var a Association
	var userType, status, via string
	err := row.Scan(&a.ID, &a.PatientID, &a.PatientQRCodeID, &a.AssociatedUserID, &userType,
		&status, &via, &a.Notes, &a.CreatedAt, &a.UpdatedAt, &a.DeactivatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Missing("Association not found")
	}
	if err != nil {
		return nil, apperr.Internalf(err, "scan association")
	}
	if a.AssociatedUserType, err = party.Parse(userType); err != nil {
		return nil, apperr.Internalf(err, "association %s", a.ID)
	}
	if a.Status, err = ParseStatus(status); err != nil {
		return nil, apperr.Internalf(err, "association %s", a.ID)
	}
	a.CreatedVia = CreatedVia(via)
	return &a, nil
}

func (r *repoPG) InsertIfAbsent(ctx context.Context, a *Association) (bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO association (`+assocCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (patient_id, associated_user_id) DO NOTHING`,
		a.ID, a.PatientID, a.PatientQRCodeID, a.AssociatedUserID, a.AssociatedUserType.String(),
		string(a.Status), string(a.CreatedVia), a.Notes, a.CreatedAt, a.UpdatedAt, a.DeactivatedAt)
	if err != nil {
		return false, apperr.Internalf(err, "insert association")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Association, error) {
	return scanAssociation(r.pool.QueryRow(ctx, `SELECT `+assocCols+` FROM association WHERE id = $1`, id))
}

func (r *repoPG) GetByPair(ctx context.Context, patientID, userID uuid.UUID) (*Association, error) {
	return scanAssociation(r.pool.QueryRow(ctx,
		`SELECT `+assocCols+` FROM association WHERE patient_id = $1 AND associated_user_id = $2`,
		patientID, userID))
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time, deactivatedAt *time.Time) (*Association, error) {
	return scanAssociation(r.pool.QueryRow(ctx, `
		UPDATE association SET status = $2, updated_at = $3, deactivated_at = $4
		WHERE id = $1
		RETURNING `+assocCols,
		id, string(status), at, deactivatedAt))
}

func (r *repoPG) ExistsActive(ctx context.Context, patientID, userID uuid.UUID, userType party.Kind) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM association
			WHERE patient_id = $1 AND associated_user_id = $2
				AND associated_user_type = $3 AND status = 'active'
		)`, patientID, userID, userType.String()).Scan(&ok)
	if err != nil {
		return false, apperr.Internalf(err, "check association")
	}
	return ok, nil
}

func (r *repoPG) ListActive(ctx context.Context, id uuid.UUID, kind party.Kind) ([]*Association, error) {
	var rows pgx.Rows
	var err error
	if kind == party.Patient {
		rows, err = r.pool.Query(ctx,
			`SELECT `+assocCols+` FROM association WHERE patient_id = $1 AND status = 'active'`, id)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+assocCols+` FROM association
			WHERE associated_user_id = $1 AND associated_user_type = $2 AND status = 'active'`,
			id, kind.String())
	}
	if err != nil {
		return nil, apperr.Internalf(err, "list associations")
	}
	defer rows.Close()

	var items []*Association
	for rows.Next() {
		a, err := scanAssociation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internalf(err, "iterate associations")
	}
	return items, nil
}
