package policy

import (
	"context"

	"github.com/google/uuid"

	"github.com/carepass/carepass/pkg/pagination"
)

// Repository is the persistence boundary for policies and issued identity
// artifacts.
type Repository interface {
	// CreatePolicy inserts a policy. A duplicate policy number yields
	// ErrDuplicatePolicy.
	CreatePolicy(ctx context.Context, p *Policy) error
	ListByProvider(ctx context.Context, providerID uuid.UUID, page pagination.Params) ([]PolicyView, error)

	CreateQRRecord(ctx context.Context, rec *QRRecord) error
	CreateNFCRecord(ctx context.Context, rec *NFCRecord) error
}
