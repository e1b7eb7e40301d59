package patient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carepass/carepass/internal/platform/db"
)

type repoSQLite struct {
	sdb *sql.DB
}

func NewRepo(sdb *sql.DB) Repository {
	return &repoSQLite{sdb: sdb}
}

func (r *repoSQLite) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.sdb)
}

const patientCols = `id, email, full_name, dob, nfc_id, generated_nfc_id, qr_code, created_at`

func (r *repoSQLite) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO patients (id, email, full_name, dob)
		VALUES (?, ?, ?, ?)`,
		p.ID.String(), p.Email, p.FullName, p.DOB,
	)
	if err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (r *repoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.conn(ctx).QueryRowContext(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = ?`, id.String())
	return scanPatient(row)
}

func (r *repoSQLite) GetByIdentifier(ctx context.Context, identifier string) (*Patient, error) {
	row := r.conn(ctx).QueryRowContext(ctx,
		`SELECT `+patientCols+` FROM patients WHERE email = ? OR id = ?`,
		identifier, identifier)
	return scanPatient(row)
}

func (r *repoSQLite) GetByTagID(ctx context.Context, tagID string) (*Patient, error) {
	row := r.conn(ctx).QueryRowContext(ctx,
		`SELECT `+patientCols+` FROM patients WHERE nfc_id = ?`, tagID)
	return scanPatient(row)
}

func (r *repoSQLite) SetQRCode(ctx context.Context, id uuid.UUID, path string) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE patients SET qr_code = ? WHERE id = ?`, path, id.String())
	if err != nil {
		return fmt.Errorf("set patient qr code: %w", err)
	}
	return nil
}

func (r *repoSQLite) SetNFCBinding(ctx context.Context, id uuid.UUID, tagID, payload string) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE patients SET nfc_id = ?, generated_nfc_id = ? WHERE id = ?`,
		tagID, payload, id.String())
	if err != nil {
		return fmt.Errorf("set patient nfc binding: %w", err)
	}
	return nil
}

func scanPatient(row *sql.Row) (*Patient, error) {
	var p Patient
	var id string
	err := row.Scan(&id, &p.Email, &p.FullName, &p.DOB, &p.NFCID, &p.GeneratedNFCID, &p.QRCode, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	p.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse patient id %q: %w", id, err)
	}
	return &p, nil
}
