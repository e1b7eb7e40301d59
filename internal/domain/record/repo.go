package record

import (
	"context"

	"github.com/google/uuid"

	"github.com/carepass/carepass/pkg/pagination"
)

// Repository is the persistence boundary for medical records and pending
// data requests.
type Repository interface {
	Create(ctx context.Context, rec *MedicalRecord) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]RecordView, error)
	CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error)

	CreatePending(ctx context.Context, req *PendingRequest) error
	// CompletePendingForPatient flips every pending request for the patient
	// to completed and reports how many rows changed. Requests already
	// completed are untouched, so the flip happens at most once per request.
	CompletePendingForPatient(ctx context.Context, patientID uuid.UUID) (int64, error)
}
