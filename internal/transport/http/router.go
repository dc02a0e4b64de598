package http

import (
	"net/http"
	"time"

	"github.com/go-auth-sessions/internal/application/account"
	"github.com/go-auth-sessions/internal/application/auth"
	"github.com/go-auth-sessions/internal/application/session"
	"github.com/go-auth-sessions/internal/application/tokens"
	"github.com/go-auth-sessions/internal/config"
	"github.com/go-auth-sessions/internal/infrastructure/cache"
	"github.com/go-auth-sessions/internal/transport/http/cookies"
	"github.com/go-auth-sessions/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-sessions/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	var userCache UserCache = cache.Nop{}
	if deps.Cache != nil {
		userCache = deps.Cache
	}

	r := chi.NewRouter()
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	jar := cookies.New(cfg.CookieNamespace(), deps.JWTProvider.TTL())
	origins := handler.NewOrigins(cfg.PublicURL, append([]string{cfg.FrontendURL}, cfg.AllowedOrigins...)...)
	authMw := appmiddleware.Auth(deps.JWTProvider, jar.AccessToken)
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	refresh := tokens.NewRefreshTokens(deps.RefreshTokens, cfg.RefreshTokenTTL, now)
	oneTime := tokens.NewOneTimeTokens(deps.OneTimeTokens, cfg.OneTimeTokenTTL, now)

	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:      deps.Users,
		RefreshTokens: refresh,
		JWTProvider:   deps.JWTProvider,
		Now:           now,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:      deps.Users,
		OneTimeTokens: oneTime,
		Mailer:        deps.Mailer,
		Cache:         userCache,
		AppName:       cfg.AppName,
		FrontendURL:   cfg.FrontendURL,
		BcryptCost:    cfg.BcryptCost,
		Now:           now,
	})
	accountSvc := account.NewService(account.ServiceDeps{
		UserRepo:      deps.Users,
		OneTimeTokens: oneTime,
		Mailer:        deps.Mailer,
		Cache:         userCache,
		AppName:       cfg.AppName,
		FrontendURL:   cfg.FrontendURL,
	})

	healthH := handler.NewHealthHandler(deps.HealthChecks)
	authH := handler.NewAuthHandler(authSvc, jar, origins)
	sessionH := handler.NewSessionHandler(sessionSvc, jar)
	accountH := handler.NewAccountHandler(accountSvc, jar, origins)
	credH := handler.NewCredentialsHandler(authSvc)

	// ── Public routes (no auth) ──────────────────────────────────────────
	r.Get("/health-check/{action}", healthH.Ping)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(sensitiveRL.Limit).Post("/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/login", sessionH.Login)
		r.Get("/verify", authH.Verify)
		r.Post("/token", sessionH.Token)
		r.Get("/signout", sessionH.SignOut)
	})
	r.Get("/account/confirm-deletion", accountH.ConfirmDeletion)
	r.With(sensitiveRL.Limit).Post("/credentials/password/reset", credH.RequestReset)
	r.Put("/credentials/password/reset", credH.ConfirmReset)
	r.Get("/credentials/password/reset", credH.ValidateReset)

	// ── Authenticated routes ─────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(authMw)

		r.Get("/account", accountH.Get)
		r.Patch("/account", accountH.Update)
		r.With(sensitiveRL.Limit).Post("/account/request-deletion", accountH.RequestDeletion)
		r.Put("/credentials/password", credH.ChangePassword)
	})

	return r
}
