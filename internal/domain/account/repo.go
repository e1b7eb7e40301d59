package account

import "context"

// Repository is the persistence boundary for actor accounts.
type Repository interface {
	CreateHospital(ctx context.Context, h *Hospital) error
	GetHospitalByCouncilID(ctx context.Context, councilID string) (*Hospital, error)

	CreateInsurer(ctx context.Context, i *Insurer) error
	GetInsurerByLicense(ctx context.Context, license string) (*Insurer, error)

	CreateAdmin(ctx context.Context, a *Admin) error
	GetAdminByUsername(ctx context.Context, username string) (*Admin, error)
}
