package routes

import (
	"github.com/HarlanReyes/bastion/internal/auth"
	"github.com/HarlanReyes/bastion/internal/handlers"
	"github.com/HarlanReyes/bastion/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	mfaHandler *handlers.MFAHandler,
	userHandler *handlers.UserHandler,
	tokenManager *auth.TokenManager,
	loginRatePerMinute int,
) {
	// Rate limiting for credential-bearing and email-dispatching endpoints
	rateLimitConfig := middleware.RateLimitConfig{RequestsPerMinute: loginRatePerMinute}
	rateLimited := middleware.RateLimitByIP(rateLimitConfig)

	// Public routes - no authentication required
	router.With(rateLimited).Post("/auth/login", authHandler.Login)
	router.With(rateLimited).Post("/auth/register", authHandler.Register)
	router.With(rateLimited).Post("/auth/mfa/verify", mfaHandler.Verify)
	router.Post("/auth/refresh", authHandler.RefreshToken)
	router.Post("/auth/verify-email", authHandler.VerifyEmail)
	router.With(rateLimited).Post("/auth/verify-email/resend", authHandler.ResendVerification)
	router.With(rateLimited).Post("/auth/password/reset-request", authHandler.RequestPasswordReset)
	router.Post("/auth/password/reset", authHandler.ResetPassword)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/password/change", authHandler.ChangePassword)

		r.Post("/auth/mfa/setup", mfaHandler.Setup)
		r.Post("/auth/mfa/setup/verify", mfaHandler.VerifySetup)
		r.Post("/auth/mfa/disable", mfaHandler.Disable)

		r.Get("/users/me", userHandler.Me)
		r.Put("/users/me", userHandler.UpdateMe)
	})
}
