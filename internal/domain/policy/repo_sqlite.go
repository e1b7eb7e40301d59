package policy

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/carepass/carepass/internal/platform/db"
	"github.com/carepass/carepass/pkg/pagination"
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

func (r *repoSQLite) CreatePolicy(ctx context.Context, p *Policy) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO policies (id, patient_id, provider_id, policy_number, coverage_amount, valid_until, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.PatientID.String(), p.ProviderID.String(),
		p.PolicyNumber, p.CoverageAmount, p.ValidUntil, p.Status,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicatePolicy
		}
		return fmt.Errorf("create policy: %w", err)
	}
	return nil
}

func (r *repoSQLite) ListByProvider(ctx context.Context, providerID uuid.UUID, page pagination.Params) ([]PolicyView, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `
		SELECT p.id, p.patient_id, p.provider_id, p.policy_number, p.coverage_amount,
		       p.valid_until, p.status, p.created_at,
		       pt.full_name, COALESCE(pt.qr_code, '')
		FROM policies p
		JOIN patients pt ON pt.id = p.patient_id
		WHERE p.provider_id = ?
		ORDER BY p.created_at DESC, p.id
		LIMIT ? OFFSET ?`, providerID.String(), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var out []PolicyView
	for rows.Next() {
		var v PolicyView
		var id, patientID, provID string
		if err := rows.Scan(&id, &patientID, &provID, &v.PolicyNumber, &v.CoverageAmount,
			&v.ValidUntil, &v.Status, &v.CreatedAt, &v.PatientName, &v.QRPath); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		if v.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse policy id %q: %w", id, err)
		}
		if v.PatientID, err = uuid.Parse(patientID); err != nil {
			return nil, fmt.Errorf("parse policy patient id %q: %w", patientID, err)
		}
		if v.ProviderID, err = uuid.Parse(provID); err != nil {
			return nil, fmt.Errorf("parse policy provider id %q: %w", provID, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return out, nil
}

func (r *repoSQLite) CreateQRRecord(ctx context.Context, rec *QRRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO qr_records (id, patient_id, encrypted_payload, image_path)
		VALUES (?, ?, ?, ?)`,
		rec.ID.String(), rec.PatientID.String(), rec.EncryptedPayload, rec.ImagePath,
	)
	if err != nil {
		return fmt.Errorf("create qr record: %w", err)
	}
	return nil
}

func (r *repoSQLite) CreateNFCRecord(ctx context.Context, rec *NFCRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO nfc_records (id, patient_id, tag_id, encrypted_payload)
		VALUES (?, ?, ?, ?)`,
		rec.ID.String(), rec.PatientID.String(), rec.TagID, rec.EncryptedPayload,
	)
	if err != nil {
		return fmt.Errorf("create nfc record: %w", err)
	}
	return nil
}
