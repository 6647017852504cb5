// Package auth implements credential hashing and access token signing.
package auth

import (
	"time"

	"onboarding/config"
	"onboarding/internal/domain/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	accessTokenType  = "access"
	defaultIssuer    = "onboarding"
	defaultAccessTTL = 15 * time.Minute
	clockLeeway      = 30 * time.Second
)

type jwtService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

// NewJWTService signs HS256 access tokens issued by the configured service name.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" {
		return nil, errors.New("jwt access secret must be provided")
	}

	ttl := defaultAccessTTL
	if cfg.Auth != nil && cfg.Auth.AccessTokenTTL > 0 {
		ttl = cfg.Auth.AccessTokenTTL
	}
	issuer := cfg.Env.ServiceName
	if issuer == "" {
		issuer = defaultIssuer
	}

	return &jwtService{
		secret: []byte(cfg.SecretKey.Access),
		issuer: issuer,
		ttl:    ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockLeeway),
		),
	}, nil
}

func (s *jwtService) GenerateAccessToken(subject string, roles []string) (string, error) {
	now := time.Now()
	claims := service.Claims{
		Roles: roles,
		Type:  accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign access token")
	}

	return signed, nil
}

func (s *jwtService) ValidateToken(tokenString string) (*service.Claims, error) {
	claims := &service.Claims{}
	if _, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, errors.Wrap(err, "parse access token")
	}
	if claims.Type != accessTokenType {
		return nil, errors.Errorf("unexpected token type %q", claims.Type)
	}
	if claims.Subject == "" {
		return nil, errors.New("access token has no subject")
	}

	return claims, nil
}
