package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// TokenConfig holds the signing material for both token kinds. It is built
// once at startup and never mutated.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// tokenClaims is the JWT body. userId/role mirror domain.TokenClaims; iat
// and exp live in the registered claims.
type tokenClaims struct {
	UserID string      `json:"userId"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies HS256-signed access and refresh tokens.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

var _ ports.TokenVerifier = (*TokenService)(nil)

// NewTokenService validates cfg and returns a TokenService. Both secrets are
// required and must differ so one token kind can never pass as the other.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token service: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token service: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	return &TokenService{cfg: cfg, now: time.Now}, nil
}

// CreateToken signs claims with secret. JWT dates have whole-second
// precision, so now is truncated to jwt.TimePrecision first: the expiry is
// exactly truncated-now+lifetime and the token stops verifying up to one
// second before the untruncated now+lifetime. IssuedAt is used verbatim
// (also truncated) when set and defaults to the truncated now otherwise.
func (s *TokenService) CreateToken(claims domain.TokenClaims, secret string, lifetime time.Duration) (string, error) {
	now := s.now().Truncate(jwt.TimePrecision)
	issuedAt := claims.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now
	}

	body := tokenClaims{
		UserID: claims.UserID,
		Role:   claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, body)
	return t.SignedString([]byte(secret))
}

// VerifyToken checks the signature of token against secret and that it has
// not expired. Malformed, forged and expired tokens all yield
// domain.ErrInvalidToken.
func (s *TokenService) VerifyToken(token, secret string) (domain.TokenClaims, error) {
	var body tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &body,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}

	claims := domain.TokenClaims{
		UserID: body.UserID,
		Role:   body.Role,
	}
	if body.IssuedAt != nil {
		claims.IssuedAt = body.IssuedAt.Time
	}
	if body.ExpiresAt != nil {
		claims.ExpiresAt = body.ExpiresAt.Time
	}
	return claims, nil
}

// IssueAccess mints an access token with the access secret and lifetime.
func (s *TokenService) IssueAccess(claims domain.TokenClaims) (string, error) {
	return s.issue(domain.TokenAccess, claims)
}

// IssueRefresh mints a refresh token with the refresh secret and lifetime.
func (s *TokenService) IssueRefresh(claims domain.TokenClaims) (string, error) {
	return s.issue(domain.TokenRefresh, claims)
}

// VerifyAccess verifies token against the access secret.
func (s *TokenService) VerifyAccess(token string) (domain.TokenClaims, error) {
	return s.verify(domain.TokenAccess, token)
}

// VerifyRefresh verifies token against the refresh secret.
func (s *TokenService) VerifyRefresh(token string) (domain.TokenClaims, error) {
	return s.verify(domain.TokenRefresh, token)
}

func (s *TokenService) issue(kind domain.TokenKind, claims domain.TokenClaims) (string, error) {
	secret, ttl := s.material(kind)
	signed, err := s.CreateToken(claims, secret, ttl)
	if err != nil {
		return "", err
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(kind)).Inc()
	return signed, nil
}

func (s *TokenService) verify(kind domain.TokenKind, token string) (domain.TokenClaims, error) {
	secret, _ := s.material(kind)
	claims, err := s.VerifyToken(token, secret)
	result := "valid"
	if err != nil {
		result = "invalid"
	}
	metrics.TokenVerificationsTotal.WithLabelValues(string(kind), result).Inc()
	return claims, err
}

func (s *TokenService) material(kind domain.TokenKind) (string, time.Duration) {
	if kind == domain.TokenRefresh {
		return s.cfg.RefreshSecret, s.cfg.RefreshTTL
	}
	return s.cfg.AccessSecret, s.cfg.AccessTTL
}
