package policy

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carepass/carepass/internal/domain/patient"
	"github.com/carepass/carepass/internal/platform/db"
	"github.com/carepass/carepass/internal/platform/mirror"
	"github.com/carepass/carepass/internal/platform/qr"
	"github.com/carepass/carepass/pkg/pagination"
)

// PatientDirectory resolves and updates patients. Satisfied by
// patient.Service.
type PatientDirectory interface {
	Resolve(ctx context.Context, identifier string) (*patient.Patient, error)
	SetQRCode(ctx context.Context, id uuid.UUID, path string) error
	SetNFCBinding(ctx context.Context, id uuid.UUID, tagID, payload string) error
}

// RecordSeeder inspects and seeds a patient's medical history. Satisfied by
// record.Service.
type RecordSeeder interface {
	CountForPatient(ctx context.Context, patientID uuid.UUID) (int, error)
	SeedBaseline(ctx context.Context, patientID uuid.UUID, providerID string, policyID uuid.UUID) error
}

// TokenSealer encrypts identity token payloads. Satisfied by phi.Encryptor.
type TokenSealer interface {
	EncryptJSON(v interface{}) (string, error)
}

type Service struct {
	repo     Repository
	runner   db.TxRunner
	patients PatientDirectory
	records  RecordSeeder
	cipher   TokenSealer
	images   qr.ImageStore
	mirror   mirror.Notifier
	logger   zerolog.Logger
}

func NewService(
	repo Repository,
	runner db.TxRunner,
	patients PatientDirectory,
	records RecordSeeder,
	cipher TokenSealer,
	images qr.ImageStore,
	notifier mirror.Notifier,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		runner:   runner,
		patients: patients,
		records:  records,
		cipher:   cipher,
		images:   images,
		mirror:   notifier,
		logger:   logger,
	}
}

// ProvisionInput carries a policy provisioning request. PatientIdentifier is
// an email or patient id.
type ProvisionInput struct {
	PatientIdentifier string
	ProviderID        uuid.UUID
	PolicyNumber      string
	CoverageAmount    float64
	ValidUntil        string
}

func (in ProvisionInput) validate() error {
	if strings.TrimSpace(in.PatientIdentifier) == "" {
		return fmt.Errorf("%w: patient identifier is required", ErrInvalidInput)
	}
	if in.ProviderID == uuid.Nil {
		return fmt.Errorf("%w: provider is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.PolicyNumber) == "" {
		return fmt.Errorf("%w: policy number is required", ErrInvalidInput)
	}
	if in.CoverageAmount <= 0 {
		return fmt.Errorf("%w: coverage amount must be positive", ErrInvalidInput)
	}
	if strings.TrimSpace(in.ValidUntil) == "" {
		return fmt.Errorf("%w: validity date is required", ErrInvalidInput)
	}
	return nil
}

// Provision covers a patient under a new policy and issues their identity
// artifacts in one transaction: resolve or register the patient, insert the
// policy, seed the medical history when empty, render and record the QR
// token, and bind an NFC tag. The QR image lives outside the database, so a
// rollback also deletes the image that was already written. The mirror is
// notified only after commit.
func (s *Service) Provision(ctx context.Context, in ProvisionInput) (*Policy, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	pol := &Policy{
		ID:             uuid.New(),
		ProviderID:     in.ProviderID,
		PolicyNumber:   in.PolicyNumber,
		CoverageAmount: in.CoverageAmount,
		ValidUntil:     in.ValidUntil,
		Status:         StatusActive,
	}

	// The image path escapes the closure so the compensation below can see
	// what was written before the transaction failed.
	var qrPath string

	err := s.runner.WithTx(ctx, func(ctx context.Context) error {
		pat, err := s.patients.Resolve(ctx, in.PatientIdentifier)
		if err != nil {
			return err
		}
		pol.PatientID = pat.ID

		if err := s.repo.CreatePolicy(ctx, pol); err != nil {
			return err
		}

		count, err := s.records.CountForPatient(ctx, pat.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			if err := s.records.SeedBaseline(ctx, pat.ID, in.ProviderID.String(), pol.ID); err != nil {
				return err
			}
		}

		qrPayload, err := s.cipher.EncryptJSON(map[string]string{"id": pat.ID.String()})
		if err != nil {
			return fmt.Errorf("seal qr token: %w", err)
		}
		qrRec := &QRRecord{ID: uuid.New(), PatientID: pat.ID, EncryptedPayload: qrPayload}
		qrRec.ImagePath, err = s.images.Write(ctx, qrRec.ID, qrPayload)
		if err != nil {
			return fmt.Errorf("write qr image: %w", err)
		}
		qrPath = qrRec.ImagePath
		if err := s.repo.CreateQRRecord(ctx, qrRec); err != nil {
			return err
		}
		if err := s.patients.SetQRCode(ctx, pat.ID, qrRec.ImagePath); err != nil {
			return err
		}

		tagID, err := newTagID()
		if err != nil {
			return err
		}
		nfcPayload, err := s.cipher.EncryptJSON(map[string]string{
			"pid":  pat.ID.String(),
			"type": "nfc_access",
		})
		if err != nil {
			return fmt.Errorf("seal nfc token: %w", err)
		}
		nfcRec := &NFCRecord{PatientID: pat.ID, TagID: tagID, EncryptedPayload: nfcPayload}
		if err := s.repo.CreateNFCRecord(ctx, nfcRec); err != nil {
			return err
		}
		return s.patients.SetNFCBinding(ctx, pat.ID, tagID, nfcPayload)
	})
	if err != nil {
		if qrPath != "" {
			if rmErr := s.images.Remove(ctx, qrPath); rmErr != nil && !errors.Is(rmErr, qr.ErrImageNotFound) {
				s.logger.Warn().Err(rmErr).Str("path", qrPath).Msg("orphaned qr image after rollback")
			}
		}
		return nil, err
	}

	s.logger.Info().
		Str("policy_id", pol.ID.String()).
		Str("patient_id", pol.PatientID.String()).
		Str("provider_id", pol.ProviderID.String()).
		Msg("policy provisioned")

	s.mirror.PolicyProvisioned(ctx, mirror.PolicyEvent{
		PolicyID:     pol.ID.String(),
		PatientID:    pol.PatientID.String(),
		ProviderID:   pol.ProviderID.String(),
		PolicyNumber: pol.PolicyNumber,
		Coverage:     pol.CoverageAmount,
		ValidUntil:   pol.ValidUntil,
		Status:       pol.Status,
	})
	return pol, nil
}

// ListForProvider returns a page of the provider's policies newest first.
func (s *Service) ListForProvider(ctx context.Context, providerID uuid.UUID, page pagination.Params) ([]PolicyView, error) {
	return s.repo.ListByProvider(ctx, providerID, page)
}

// newTagID generates a simulated 4-byte NFC tag id, uppercase hex.
func newTagID() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate tag id: %w", err)
	}
	return fmt.Sprintf("%X", b), nil
}
