package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// RefreshCookieName is the cookie carrying the refresh token between
// signin and refresh-token.
const RefreshCookieName = "refreshToken"

// CookieOptions controls how the refresh-token cookie is written.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

type AuthHandler struct {
	authService ports.AuthService
	cookie      CookieOptions
}

func NewAuthHandler(authService ports.AuthService, cookie CookieOptions) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie}
}

// SignUp creates a new user account.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string         false  "Replays the original result for retried signups"
// @Param        body             body      signUpRequest  true   "User details"
// @Success      201              {object}  apiResponse{data=domain.User}
// @Success      200              {object}  apiResponse{data=domain.User}  "Idempotent replay"
// @Failure      400              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Failure      422              {object}  errorResponse
// @Router       /auth/signup [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return serviceError(err)
	}

	res, err := h.authService.SignUp(c.Request().Context(), ports.SignUpInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		Role:           domain.Role(req.Role),
		ContactNo:      req.ContactNo,
		Address:        req.Address,
		ProfileImg:     req.ProfileImg,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return serviceError(err)
	}

	status := http.StatusCreated
	if res.AlreadyExisted {
		status = http.StatusOK
	}
	return c.JSON(status, apiResponse{
		Success: true,
		Message: "User created successfully",
		Data:    res.User,
	})
}

// SignIn authenticates a user and returns an access/refresh token pair.
// The refresh token is also set as an HttpOnly cookie.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Login credentials"
// @Success      200   {object}  apiResponse{data=domain.TokenPair}
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /auth/signin [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return serviceError(err)
	}

	pair, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return serviceError(err)
	}

	c.SetCookie(h.refreshCookie(pair.RefreshToken))
	return c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Message: "User signed in successfully",
		Data:    pair,
	})
}

// RefreshToken mints a new access token from the refresh token found in the
// refreshToken cookie, or in the request body when no cookie is sent.
//
// @Summary      Refresh access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshTokenRequest  false  "Refresh token when not sent as cookie"
// @Success      200   {object}  apiResponse{data=accessTokenData}
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	token := ""
	if cookie, err := c.Cookie(RefreshCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var req refreshTokenRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
		}
		token = req.RefreshToken
	}
	if token == "" {
		return serviceError(domain.NewValidationError("Refresh Token is required"))
	}

	access, err := h.authService.RefreshToken(c.Request().Context(), token)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Message: "New access token generated successfully",
		Data:    accessTokenData{AccessToken: access},
	})
}

// ChangePassword replaces the authenticated caller's password.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Old and new password"
// @Success      200   {object}  apiResponse{data=domain.User}
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /auth/change-password [patch]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return serviceError(err)
	}

	user, err := h.authService.ChangePassword(c.Request().Context(), caller, ports.ChangePasswordInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Message: "Password changed successfully",
		Data:    user,
	})
}

func (h *AuthHandler) refreshCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
	}
}
