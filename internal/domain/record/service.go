package record

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carepass/carepass/internal/platform/db"
	"github.com/carepass/carepass/internal/platform/mirror"
	"github.com/carepass/carepass/pkg/pagination"
)

type Service struct {
	repo   Repository
	runner db.TxRunner
	mirror mirror.Notifier
	logger zerolog.Logger
}

func NewService(repo Repository, runner db.TxRunner, notifier mirror.Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, runner: runner, mirror: notifier, logger: logger}
}

// AddRecordInput carries a new record write. HospitalID is empty when the
// writer is an admin.
type AddRecordInput struct {
	PatientID   uuid.UUID
	HospitalID  string
	RecordType  string
	Title       string
	Description string
}

// AddRecord writes a medical record and completes any pending medical-data
// requests for the patient, atomically. The mirror is notified after commit.
func (s *Service) AddRecord(ctx context.Context, in AddRecordInput) (*MedicalRecord, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, ErrEmptyDescription
	}

	rec := &MedicalRecord{
		PatientID:   in.PatientID,
		RecordType:  in.RecordType,
		Title:       in.Title,
		Description: in.Description,
	}
	if in.HospitalID != "" {
		rec.HospitalID = &in.HospitalID
	}

	err := s.runner.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, rec); err != nil {
			return err
		}
		completed, err := s.repo.CompletePendingForPatient(ctx, in.PatientID)
		if err != nil {
			return err
		}
		if completed > 0 {
			s.logger.Info().
				Str("patient_id", in.PatientID.String()).
				Int64("completed", completed).
				Msg("pending data requests completed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mirror.RecordWritten(ctx, mirror.RecordEvent{
		RecordID:   rec.ID.String(),
		PatientID:  rec.PatientID.String(),
		HospitalID: in.HospitalID,
		RecordType: rec.RecordType,
		Title:      rec.Title,
	})
	return rec, nil
}

// List returns a page of the patient's records newest first, each with the
// writing hospital's name.
func (s *Service) List(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]RecordView, error) {
	return s.repo.ListByPatient(ctx, patientID, page)
}

// CountForPatient reports how many records the patient has.
func (s *Service) CountForPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	return s.repo.CountByPatient(ctx, patientID)
}

// SeedBaseline inserts the placeholder first record and a pending
// medical-data request for a freshly covered patient. It runs on the
// caller's transaction.
func (s *Service) SeedBaseline(ctx context.Context, patientID uuid.UUID, providerID string, policyID uuid.UUID) error {
	rec := &MedicalRecord{
		PatientID:   patientID,
		HospitalID:  &providerID,
		Title:       BaselineDescription,
		Description: BaselineDescription,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return err
	}
	return s.repo.CreatePending(ctx, &PendingRequest{
		PolicyID:  policyID,
		PatientID: patientID,
	})
}
