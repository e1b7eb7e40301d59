package account

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

func (r *repoSQLite) CreateHospital(ctx context.Context, h *Hospital) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO hospitals (id, name, council_id, email, password_hash, verified)
		VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID.String(), h.Name, h.CouncilID, h.Email, h.PasswordHash, h.Verified,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create hospital: %w", err)
	}
	return nil
}

func (r *repoSQLite) GetHospitalByCouncilID(ctx context.Context, councilID string) (*Hospital, error) {
	row := r.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, council_id, email, password_hash, verified, created_at
		FROM hospitals WHERE council_id = ?`, councilID)

	var h Hospital
	var id string
	err := row.Scan(&id, &h.Name, &h.CouncilID, &h.Email, &h.PasswordHash, &h.Verified, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get hospital: %w", err)
	}
	h.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse hospital id %q: %w", id, err)
	}
	return &h, nil
}

func (r *repoSQLite) CreateInsurer(ctx context.Context, i *Insurer) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO insurance_companies (id, name, license_number, email, password_hash)
		VALUES (?, ?, ?, ?, ?)`,
		i.ID.String(), i.Name, i.LicenseNumber, i.Email, i.PasswordHash,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create insurer: %w", err)
	}
	return nil
}

func (r *repoSQLite) GetInsurerByLicense(ctx context.Context, license string) (*Insurer, error) {
	row := r.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, license_number, email, password_hash, created_at
		FROM insurance_companies WHERE license_number = ?`, license)

	var i Insurer
	var id string
	err := row.Scan(&id, &i.Name, &i.LicenseNumber, &i.Email, &i.PasswordHash, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get insurer: %w", err)
	}
	i.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse insurer id %q: %w", id, err)
	}
	return &i, nil
}

func (r *repoSQLite) CreateAdmin(ctx context.Context, a *Admin) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO admins (id, username, password_hash)
		VALUES (?, ?, ?)`,
		a.ID.String(), a.Username, a.PasswordHash,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

func (r *repoSQLite) GetAdminByUsername(ctx context.Context, username string) (*Admin, error) {
	row := r.conn(ctx).QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at
		FROM admins WHERE username = ?`, username)

	var a Admin
	var id string
	err := row.Scan(&id, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	a.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse admin id %q: %w", id, err)
	}
	return &a, nil
}
