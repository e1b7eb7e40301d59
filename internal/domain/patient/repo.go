package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetByIdentifier matches a patient by email or by id.
	GetByIdentifier(ctx context.Context, identifier string) (*Patient, error)
	// GetByTagID matches a patient by the physical NFC tag identifier.
	GetByTagID(ctx context.Context, tagID string) (*Patient, error)
	SetQRCode(ctx context.Context, id uuid.UUID, path string) error
	SetNFCBinding(ctx context.Context, id uuid.UUID, tagID, payload string) error
}
