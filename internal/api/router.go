package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/identity-service/docs"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const metricsSubsystem = "identity"

// Deps holds everything the router needs to build its handlers.
type Deps struct {
	AuthService ports.AuthService
	Verifier    ports.TokenVerifier
	Cookie      handler.CookieOptions
	// Readiness lists the dependencies pinged by GET /health/ready.
	Readiness map[string]handler.Pinger
	Log       zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(RequestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddleware(metricsSubsystem))

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.AuthService, deps.Cookie)

	auth := e.Group("/api/v1/auth")
	auth.POST("/signup", authHandler.SignUp)
	auth.POST("/signin", authHandler.SignIn)
	auth.POST("/refresh-token", authHandler.RefreshToken)
	auth.PATCH("/change-password", authHandler.ChangePassword,
		middleware.Auth(deps.Verifier),
		middleware.RBAC(domain.RoleAdmin, domain.RoleCustomer),
	)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Readiness)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
