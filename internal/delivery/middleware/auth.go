package middleware

import (
	"strings"

	deliverycontext "onboarding/internal/delivery/context"
	"onboarding/internal/domain/entity"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/domain/service"

	"github.com/labstack/echo/v4"
)

const bearerPrefix = "Bearer "

// AuthMiddleware authenticates access tokens and enforces roles.
type AuthMiddleware struct {
	tokenSvc service.TokenService
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokenSvc service.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

// Authenticate validates the bearer access token and stores the caller as the request actor.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return domainerrors.ErrUnauthorized.WithDetails("authorization header is missing")
		}

		tokenString, ok := strings.CutPrefix(authHeader, bearerPrefix)
		if !ok || tokenString == "" {
			return domainerrors.ErrUnauthorized.WithDetails("must be a bearer token")
		}

		claims, err := m.tokenSvc.ValidateToken(tokenString)
		if err != nil {
			return domainerrors.ErrUnauthorized.WithDetails("invalid or expired token")
		}
		if claims.Subject == "" {
			return domainerrors.ErrUnauthorized.WithDetails("token has no subject")
		}

		deliverycontext.SetActor(c, &deliverycontext.Actor{
			Subject: claims.Subject,
			Roles:   entity.RolesFromStrings(claims.Roles).ToStrings(),
		})

		return next(c)
	}
}

// RequireRole rejects callers lacking role. It must run after Authenticate.
func (m *AuthMiddleware) RequireRole(role entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := deliverycontext.GetActor(c)
			if actor == nil {
				return domainerrors.ErrUnauthorized
			}
			if !actor.HasRole(role.String()) {
				return domainerrors.ErrForbidden.WithDetails("requires role " + role.String())
			}

			return next(c)
		}
	}
}
