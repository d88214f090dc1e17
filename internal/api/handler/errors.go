package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// StatusForKind maps a domain error kind to its HTTP status code.
func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// serviceError converts a service failure into an echo.HTTPError. Internal
// errors are returned untouched so the central error handler logs them and
// hides the cause from the client.
func serviceError(err error) error {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		return err
	}
	return echo.NewHTTPError(StatusForKind(kind), err.Error()).SetInternal(err)
}
