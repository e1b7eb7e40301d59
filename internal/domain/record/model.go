// Package record manages patient medical records and the pending
// medical-data requests raised when a policy is provisioned for a patient
// with no history.
package record

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrEmptyDescription = errors.New("record description is required")
)

// BaselineDescription is the placeholder record inserted when a policy is
// provisioned for a patient with no medical history.
const BaselineDescription = "Initial Medical Dataset"

// Pending request statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

type MedicalRecord struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	HospitalID  *string   `json:"hospital_id,omitempty"`
	RecordType  string    `json:"record_type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordView is a medical record joined with the writing hospital's name for
// listing. Records written by admins or system processes carry no hospital.
type RecordView struct {
	MedicalRecord
	HospitalName string `json:"hospital_name"`
}

type PendingRequest struct {
	ID        uuid.UUID `json:"id"`
	PolicyID  uuid.UUID `json:"policy_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
