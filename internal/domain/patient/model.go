package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no patient matches the given identifier,
// scan payload, or id.
var ErrNotFound = errors.New("patient not found")

// Placeholder values for patients auto-registered from an email identifier
// or a scanned token, before any real demographics are captured.
const (
	PlaceholderName = "New Patient"
	PlaceholderDOB  = "2000-01-01"
)

// Patient maps to the patients table.
type Patient struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Email    *string   `db:"email" json:"email,omitempty"`
	FullName string    `db:"full_name" json:"full_name"`
	DOB      string    `db:"dob" json:"dob"`
	// NFCID is the short physical tag identifier of the current NFC binding.
	NFCID *string `db:"nfc_id" json:"nfc_id,omitempty"`
	// GeneratedNFCID is the encrypted payload written to the current tag.
	GeneratedNFCID *string   `db:"generated_nfc_id" json:"-"`
	QRCode         *string   `db:"qr_code" json:"qr_code,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
