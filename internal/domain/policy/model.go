// Package policy implements insurance policy provisioning: the atomic
// workflow that covers a patient, issues their QR and NFC identity tokens,
// and seeds their medical history.
package policy

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDuplicatePolicy = errors.New("policy number already exists")
	ErrInvalidInput    = errors.New("invalid policy input")
)

// StatusActive is the status assigned to newly provisioned policies.
const StatusActive = "active"

type Policy struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	ProviderID     uuid.UUID `json:"provider_id"`
	PolicyNumber   string    `json:"policy_number"`
	CoverageAmount float64   `json:"coverage_amount"`
	ValidUntil     string    `json:"valid_until"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// QRRecord is one issued QR identity artifact. The log is append-only; the
// patient row points at the current image.
type QRRecord struct {
	ID               uuid.UUID `json:"id"`
	PatientID        uuid.UUID `json:"patient_id"`
	EncryptedPayload string    `json:"-"`
	ImagePath        string    `json:"image_path"`
	CreatedAt        time.Time `json:"created_at"`
}

// NFCRecord is one issued NFC tag binding.
type NFCRecord struct {
	ID               uuid.UUID `json:"id"`
	PatientID        uuid.UUID `json:"patient_id"`
	TagID            string    `json:"tag_id"`
	EncryptedPayload string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// PolicyView is a policy joined with patient details for provider listings.
type PolicyView struct {
	Policy
	PatientName string `json:"patient_name"`
	QRPath      string `json:"qr_path"`
}
