package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carepass/carepass/internal/platform/auth"
)

// TokenIssuer issues session tokens for authenticated actors. Satisfied by
// auth.TokenManager.
type TokenIssuer interface {
	Issue(actorID, name, role string) (string, error)
}

type Service struct {
	repo   Repository
	tokens TokenIssuer
	logger zerolog.Logger
}

func NewService(repo Repository, tokens TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// RegisterHospital creates a hospital account. Returns ErrDuplicate when the
// council id or email is already registered.
func (s *Service) RegisterHospital(ctx context.Context, name, councilID, email, password string) (*Hospital, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	h := &Hospital{
		Name:         name,
		CouncilID:    councilID,
		Email:        email,
		PasswordHash: hash,
		Verified:     true,
	}
	if err := s.repo.CreateHospital(ctx, h); err != nil {
		return nil, err
	}

	s.logger.Info().Str("council_id", councilID).Msg("hospital registered")
	return h, nil
}

// Session is the result of a successful login.
type Session struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

// Login authenticates an actor by identifier and password. The identifier is
// tried as a hospital council id, then an insurer license number, then an
// admin username. Any miss or password mismatch yields
// ErrInvalidCredentials; the caller learns nothing about which lookup failed.
func (s *Service) Login(ctx context.Context, identifier, password string) (*Session, error) {
	if h, err := s.repo.GetHospitalByCouncilID(ctx, identifier); err == nil {
		return s.openSession(h.ID.String(), h.Name, auth.RoleHospital, h.PasswordHash, password)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if i, err := s.repo.GetInsurerByLicense(ctx, identifier); err == nil {
		return s.openSession(i.ID.String(), i.Name, auth.RoleInsurance, i.PasswordHash, password)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if a, err := s.repo.GetAdminByUsername(ctx, identifier); err == nil {
		return s.openSession(a.ID.String(), a.Username, auth.RoleAdmin, a.PasswordHash, password)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return nil, ErrInvalidCredentials
}

func (s *Service) openSession(actorID, name, role, hash, password string) (*Session, error) {
	if !auth.VerifyPassword(hash, password) {
		return nil, ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(actorID, name, role)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	s.logger.Info().Str("actor_id", actorID).Str("role", role).Msg("login")
	return &Session{Token: token, Role: role, Name: name}, nil
}

// Seed creates the default accounts when they do not exist yet. Intended for
// development and first-run setup; existing accounts are left untouched.
func (s *Service) Seed(ctx context.Context) error {
	seedAccounts := []struct {
		create func(hash string) error
		id     string
		secret string
	}{
		{
			id:     "admin",
			secret: "admin123",
			create: func(hash string) error {
				return s.repo.CreateAdmin(ctx, &Admin{Username: "admin", PasswordHash: hash})
			},
		},
		{
			id:     "HOSP001",
			secret: "password123",
			create: func(hash string) error {
				return s.repo.CreateHospital(ctx, &Hospital{
					Name:         "Apollo Hospital",
					CouncilID:    "HOSP001",
					Email:        "apollo@med.com",
					PasswordHash: hash,
					Verified:     true,
				})
			},
		},
		{
			id:     "INS001",
			secret: "password123",
			create: func(hash string) error {
				return s.repo.CreateInsurer(ctx, &Insurer{
					Name:          "Star Health",
					LicenseNumber: "INS001",
					Email:         "star@ins.com",
					PasswordHash:  hash,
				})
			},
		},
	}

	for _, acct := range seedAccounts {
		hash, err := auth.HashPassword(acct.secret)
		if err != nil {
			return err
		}
		switch err := acct.create(hash); {
		case err == nil:
			s.logger.Info().Str("account", acct.id).Msg("seeded account")
		case errors.Is(err, ErrDuplicate):
			s.logger.Debug().Str("account", acct.id).Msg("account already seeded")
		default:
			return fmt.Errorf("seed %s: %w", acct.id, err)
		}
	}
	return nil
}
