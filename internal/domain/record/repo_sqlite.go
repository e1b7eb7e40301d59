package record

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

func (r *repoSQLite) Create(ctx context.Context, rec *MedicalRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.RecordType == "" {
		rec.RecordType = "text"
	}
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO medical_records (id, patient_id, hospital_id, record_type, title, description)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.PatientID.String(), rec.HospitalID, rec.RecordType, rec.Title, rec.Description,
	)
	if err != nil {
		return fmt.Errorf("create medical record: %w", err)
	}
	return nil
}

func (r *repoSQLite) ListByPatient(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]RecordView, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `
		SELECT r.id, r.patient_id, r.hospital_id, r.record_type, r.title, r.description, r.created_at,
		       COALESCE(h.name, 'Unknown/Admin')
		FROM medical_records r
		LEFT JOIN hospitals h ON h.id = r.hospital_id
		WHERE r.patient_id = ?
		ORDER BY r.created_at DESC, r.id
		LIMIT ? OFFSET ?`, patientID.String(), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list medical records: %w", err)
	}
	defer rows.Close()

	var out []RecordView
	for rows.Next() {
		var v RecordView
		var id, pid string
		var title sql.NullString
		if err := rows.Scan(&id, &pid, &v.HospitalID, &v.RecordType, &title, &v.Description, &v.CreatedAt, &v.HospitalName); err != nil {
			return nil, fmt.Errorf("scan medical record: %w", err)
		}
		v.Title = title.String
		if v.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse record id %q: %w", id, err)
		}
		if v.PatientID, err = uuid.Parse(pid); err != nil {
			return nil, fmt.Errorf("parse record patient id %q: %w", pid, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list medical records: %w", err)
	}
	return out, nil
}

func (r *repoSQLite) CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM medical_records WHERE patient_id = ?`,
		patientID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count medical records: %w", err)
	}
	return n, nil
}

func (r *repoSQLite) CreatePending(ctx context.Context, req *PendingRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = StatusPending
	}
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO pending_medical_data_requests (id, policy_id, patient_id, status)
		VALUES (?, ?, ?, ?)`,
		req.ID.String(), req.PolicyID.String(), req.PatientID.String(), req.Status,
	)
	if err != nil {
		return fmt.Errorf("create pending request: %w", err)
	}
	return nil
}

func (r *repoSQLite) CompletePendingForPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	res, err := r.conn(ctx).ExecContext(ctx, `
		UPDATE pending_medical_data_requests
		SET status = ?
		WHERE patient_id = ? AND status = ?`,
		StatusCompleted, patientID.String(), StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("complete pending requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("complete pending requests: %w", err)
	}
	return n, nil
}
