package patient

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// TokenDecrypter decrypts scanned identity tokens. Satisfied by
// phi.Encryptor.
type TokenDecrypter interface {
	Decrypt(token string) ([]byte, error)
}

type Service struct {
	repo   Repository
	cipher TokenDecrypter
}

func NewService(repo Repository, cipher TokenDecrypter) *Service {
	return &Service{repo: repo, cipher: cipher}
}

// Resolve returns the patient matching identifier (email or id). When no
// patient matches and the identifier looks like an email address, a new
// patient is registered with placeholder demographics. The insert runs on
// the caller's transaction when one is in the context, so a later rollback
// discards it. Non-email identifiers that match nothing are a caller input
// error, not a server fault.
func (s *Service) Resolve(ctx context.Context, identifier string) (*Patient, error) {
	p, err := s.repo.GetByIdentifier(ctx, identifier)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if !strings.Contains(identifier, "@") {
		return nil, ErrNotFound
	}

	email := identifier
	p = &Patient{
		ID:       uuid.New(),
		Email:    &email,
		FullName: PlaceholderName,
		DOB:      PlaceholderDOB,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a patient by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// SetQRCode points the patient row at a new QR artifact.
func (s *Service) SetQRCode(ctx context.Context, id uuid.UUID, path string) error {
	return s.repo.SetQRCode(ctx, id, path)
}

// SetNFCBinding points the patient row at a new NFC tag binding.
func (s *Service) SetNFCBinding(ctx context.Context, id uuid.UUID, tagID, payload string) error {
	return s.repo.SetNFCBinding(ctx, id, tagID, payload)
}
