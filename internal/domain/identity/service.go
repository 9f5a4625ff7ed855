package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/platform/auth"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrProfileCreation    = errors.New("could not create user profile")
)

// landingRoutes maps a role to the client route shown after sign-in.
var landingRoutes = map[string]string{
	auth.RolePatient: "/patient",
	auth.RoleDoctor:  "/doctor",
	auth.RoleLab:     "/lab",
}

func LandingRoute(role string) string {
	return landingRoutes[role]
}

// TokenIssuer signs access tokens for a signed-in profile.
type TokenIssuer interface {
	Issue(accountID, profileID uuid.UUID, role string) (*auth.Token, error)
}

// TokenRevoker invalidates a token id until it would have expired anyway.
type TokenRevoker interface {
	Revoke(jti string, expiresAt time.Time)
}

type Service struct {
	accounts AccountRepository
	profiles ProfileRepository
	tokens   TokenIssuer
	revoker  TokenRevoker
	logger   zerolog.Logger

	profileAttempts int
	retryDelay      time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

func NewService(
	accounts AccountRepository,
	profiles ProfileRepository,
	tokens TokenIssuer,
	revoker TokenRevoker,
	profileAttempts int,
	logger zerolog.Logger,
) *Service {
	if profileAttempts < 1 {
		profileAttempts = 1
	}
	return &Service{
		accounts:        accounts,
		profiles:        profiles,
		tokens:          tokens,
		revoker:         revoker,
		logger:          logger,
		profileAttempts: profileAttempts,
		retryDelay:      time.Second,
		sleep:           sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(in *RegisterInput) error {
	if in.UserType == "" {
		in.UserType = auth.RolePatient
	}
	if _, ok := landingRoutes[in.UserType]; !ok {
		return fmt.Errorf("%w: unknown user type %q", ErrValidation, in.UserType)
	}
	switch {
	case strings.TrimSpace(in.FullName) == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case strings.TrimSpace(in.Email) == "":
		return fmt.Errorf("%w: email is required", ErrValidation)
	case !strings.Contains(in.Email, "@"):
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	case len(in.Password) < 6:
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	case in.Password != in.ConfirmPassword:
		return fmt.Errorf("%w: passwords don't match", ErrValidation)
	}
	if in.UserType == auth.RoleDoctor && strings.TrimSpace(in.Specialty) == "" {
		return fmt.Errorf("%w: specialty is required for doctors", ErrValidation)
	}
	if in.UserType != auth.RolePatient && strings.TrimSpace(in.LicenseNumber) == "" {
		return fmt.Errorf("%w: license number is required", ErrValidation)
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Register creates the account and then its profile. Profile creation is
// retried with a linear delay; the account is kept if every attempt fails.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Profile, error) {
	if err := validateRegistration(&in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	meta := AccountMetadata{
		FullName: strings.TrimSpace(in.FullName),
		UserType: in.UserType,
	}
	if in.UserType == auth.RoleDoctor {
		meta.Specialty = optional(in.Specialty)
	}
	if in.UserType != auth.RolePatient {
		meta.LicenseNumber = optional(in.LicenseNumber)
	}

	acct := &Account{
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Metadata:     meta,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	p := &Profile{
		UserID:        acct.ID,
		UserType:      meta.UserType,
		FullName:      meta.FullName,
		Email:         acct.Email,
		Specialty:     meta.Specialty,
		LicenseNumber: meta.LicenseNumber,
	}
	if err := s.createProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) createProfile(ctx context.Context, p *Profile) error {
	var lastErr error
	for attempt := 1; attempt <= s.profileAttempts; attempt++ {
		lastErr = s.profiles.Create(ctx, p)
		if lastErr == nil {
			return nil
		}
		s.logger.Warn().Err(lastErr).
			Int("attempt", attempt).
			Str("user_id", p.UserID.String()).
			Msg("profile creation failed")
		if attempt == s.profileAttempts {
			break
		}
		if err := s.sleep(ctx, s.retryDelay*time.Duration(attempt)); err != nil {
			return fmt.Errorf("%w: %v", ErrProfileCreation, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrProfileCreation, lastErr)
}

// SignIn verifies credentials and issues an access token for the profile.
func (s *Service) SignIn(ctx context.Context, in LoginInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: please fill in all fields", ErrValidation)
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if err := auth.CheckPassword(acct.PasswordHash, in.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	p, err := s.profiles.GetByUserID(ctx, acct.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup profile: %w", err)
	}

	tok, err := s.tokens.Issue(acct.ID, p.ID, p.UserType)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken: tok.Value,
		ExpiresAt:   tok.ExpiresAt,
		Profile:     p,
		Landing:     LandingRoute(p.UserType),
	}, nil
}

// SignOut revokes the caller's current token.
func (s *Service) SignOut(ctx context.Context) error {
	id := auth.IdentityFromContext(ctx)
	if id == nil {
		return auth.ErrInvalidToken
	}
	s.revoker.Revoke(id.TokenID, id.ExpiresAt)
	return nil
}

func (s *Service) CurrentProfile(ctx context.Context) (*Profile, error) {
	id := auth.IdentityFromContext(ctx)
	if id == nil {
		return nil, auth.ErrInvalidToken
	}
	return s.GetProfile(ctx, id.ProfileID)
}

func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return p, err
}
