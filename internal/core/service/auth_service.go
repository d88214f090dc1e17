package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

// refreshIssuedAtBackdate is subtracted from the issued-at of access tokens
// minted by RefreshToken. Clients have observed this value, so it is kept.
const refreshIssuedAtBackdate = 365 * 24 * time.Hour

// AuthService implements signup, login, refresh and change-password.
type AuthService struct {
	creds  *CredentialManager
	tokens *TokenService
	users  ports.UserRepository
	replay ports.SignupReplayStore
	log    zerolog.Logger
	now    func() time.Time
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService wires the auth use cases. replay may be nil, in which case
// Idempotency-Keys are ignored.
func NewAuthService(
	creds *CredentialManager,
	tokens *TokenService,
	users ports.UserRepository,
	replay ports.SignupReplayStore,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		creds:  creds,
		tokens: tokens,
		users:  users,
		replay: replay,
		log:    log,
		now:    time.Now,
	}
}

// SignUp hashes the supplied password and persists the new user.
func (s *AuthService) SignUp(ctx context.Context, in ports.SignUpInput) (*ports.SignUpResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateSignUp(in); err != nil {
		metrics.SignupsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if existing := s.replayedUser(ctx, in.IdempotencyKey); existing != nil {
		metrics.SignupsTotal.WithLabelValues("replayed").Inc()
		s.log.Info().Str("idempotency_key", in.IdempotencyKey).Str("user_id", existing.ID).Msg("idempotent signup replay")
		return &ports.SignUpResult{User: existing, AlreadyExisted: true}, nil
	}

	hash, err := s.creds.HashPassword(in.Password)
	if err != nil {
		metrics.SignupsTotal.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		ContactNo:    in.ContactNo,
		Address:      in.Address,
		ProfileImg:   in.ProfileImg,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			metrics.SignupsTotal.WithLabelValues("conflict").Inc()
			return nil, err
		}
		metrics.SignupsTotal.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Msg("failed to create user")
		return nil, fmt.Errorf("sign up: %w", err)
	}

	if in.IdempotencyKey != "" && s.replay != nil {
		if err := s.replay.Remember(ctx, in.IdempotencyKey, created.ID); err != nil {
			s.log.Warn().Err(err).Str("idempotency_key", in.IdempotencyKey).Msg("failed to store idempotency key")
		}
	}

	metrics.SignupsTotal.WithLabelValues("created").Inc()
	s.log.Info().Str("user_id", created.ID).Str("role", string(created.Role)).Msg("user signed up")
	return &ports.SignUpResult{User: created}, nil
}

// Login verifies the credentials and returns a fresh access/refresh pair.
// Either both tokens are returned or none.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	user, err := s.creds.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(resultLabel(err)).Inc()
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.creds.IsPasswordMatch(password, user.PasswordHash) {
		metrics.LoginsTotal.WithLabelValues("unauthorized").Inc()
		s.log.Warn().Str("user_id", user.ID).Msg("login rejected: password mismatch")
		return nil, domain.ErrPasswordMismatch
	}

	claims := domain.TokenClaims{UserID: user.ID, Role: user.Role}

	access, err := s.tokens.IssueAccess(claims)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(claims)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: issue refresh token: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// RefreshToken verifies a refresh token and mints a new access token for the
// user it names. The refresh token itself is not rotated.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("unauthorized").Inc()
		return "", domain.ErrInvalidToken
	}

	user, err := s.creds.UserByID(ctx, claims.UserID)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues(resultLabel(err)).Inc()
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", err
		}
		return "", fmt.Errorf("refresh token: %w", err)
	}

	access, err := s.tokens.IssueAccess(domain.TokenClaims{
		UserID:   user.ID,
		Role:     user.Role,
		IssuedAt: s.now().Add(-refreshIssuedAtBackdate),
	})
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("refresh token: issue access token: %w", err)
	}

	metrics.RefreshesTotal.WithLabelValues("success").Inc()
	s.log.Debug().Str("user_id", user.ID).Msg("access token refreshed")
	return access, nil
}

// ChangePassword replaces the caller's password hash after checking the old
// password. Only the hash field is written.
func (s *AuthService) ChangePassword(ctx context.Context, caller domain.TokenClaims, in ports.ChangePasswordInput) (*domain.User, error) {
	user, err := s.creds.UserByID(ctx, caller.UserID)
	if err != nil {
		metrics.PasswordChangesTotal.WithLabelValues(resultLabel(err)).Inc()
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("change password: %w", err)
	}

	if !s.creds.IsPasswordMatch(in.OldPassword, user.PasswordHash) {
		metrics.PasswordChangesTotal.WithLabelValues("unauthorized").Inc()
		s.log.Warn().Str("user_id", user.ID).Msg("change password rejected: old password mismatch")
		return nil, domain.ErrOldPasswordMismatch
	}

	hash, err := s.creds.HashPassword(in.NewPassword)
	if err != nil {
		metrics.PasswordChangesTotal.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}

	updated, err := s.users.Update(ctx, user.ID, domain.UserUpdate{PasswordHash: &hash})
	if err != nil {
		metrics.PasswordChangesTotal.WithLabelValues(resultLabel(err)).Inc()
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("change password: update user: %w", err)
	}

	metrics.PasswordChangesTotal.WithLabelValues("success").Inc()
	s.log.Info().Str("user_id", user.ID).Msg("password changed")
	return updated, nil
}

// replayedUser returns the user created by an earlier signup with the same
// idempotency key, or nil. Store failures are logged and treated as a miss.
func (s *AuthService) replayedUser(ctx context.Context, key string) *domain.User {
	if key == "" || s.replay == nil {
		return nil
	}

	userID, found, err := s.replay.Lookup(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency lookup failed, processing anyway")
		return nil
	}
	if !found {
		return nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency key points to missing user")
		return nil
	}
	return user
}

func validateSignUp(in ports.SignUpInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return domain.NewValidationError("name is required")
	case in.Email == "":
		return domain.NewValidationError("email is required")
	case in.Password == "":
		return domain.NewValidationError("password is required")
	case !in.Role.Valid():
		return domain.NewValidationError("role must be one of: ADMIN, CUSTOMER")
	case in.ContactNo == "":
		return domain.NewValidationError("contactNo is required")
	case in.Address == "":
		return domain.NewValidationError("address is required")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// resultLabel maps an error to the metrics result label.
func resultLabel(err error) string {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return "not_found"
	case domain.KindUnauthorized:
		return "unauthorized"
	case domain.KindValidation:
		return "invalid"
	case domain.KindConflict:
		return "conflict"
	default:
		return "error"
	}
}
