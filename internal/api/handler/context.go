package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/domain"
)

// callerFromContext extracts the claims injected by the Auth middleware.
// Presence of both user id and role proves the middleware ran.
func callerFromContext(c echo.Context) (domain.TokenClaims, error) {
	userID, _ := c.Get(middleware.ContextUserID).(string)
	role, _ := c.Get(middleware.ContextRole).(string)
	if userID == "" || role == "" {
		return domain.TokenClaims{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return domain.TokenClaims{UserID: userID, Role: domain.Role(role)}, nil
}
