package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"authsvc/internal/auth"
	"authsvc/internal/config"
)

// Limiter is the slice of the rate limiter the HTTP boundary uses.
// *auth.RateLimiter satisfies it; tests substitute a stub.
type Limiter interface {
	IsIPBanned(ctx context.Context, ip string) bool
	RegisterLoginFailure(ctx context.Context, ip string) error
	ResetLogin(ctx context.Context, ip string)
	RegisterVerifyAttempt(ctx context.Context, attemptKey string) (bool, time.Duration, error)
	ResetVerify(ctx context.Context, attemptKey string)
	RegisterRegisterAttempt(ctx context.Context, ip string) (bool, time.Duration, error)
	RegisterTwoFactorFailure(ctx context.Context, userID string) (bool, error)
	ResetTwoFactor(ctx context.Context, userID string)
	MagicLinkCooldownTTL(ctx context.Context, email string) time.Duration
	SetMagicLinkCooldown(ctx context.Context, email string)
}

type Server struct {
	Auth           *auth.Service
	Tokens         *auth.TokenIssuer
	RateLimiter    Limiter
	Config         config.Config
	trustedProxies []net.IPNet
}

func NewServer(cfg config.Config, svc *auth.Service, tokens *auth.TokenIssuer, rl Limiter) *Server {
	return &Server{
		Auth:           svc,
		Tokens:         tokens,
		RateLimiter:    rl,
		Config:         cfg,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	formatter := &middleware.DefaultLogFormatter{
		Logger:  log.New(log.Writer(), "", log.Flags()),
		NoColor: true,
	}
	r.Use(middleware.RequestLogger(formatter))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)

	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/verify-email", s.handleVerifyEmail)
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/magic-link", s.handleMagicLink)
	r.Post("/api/auth/magic-link/verify", s.handleMagicLinkVerify)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireToken)

		pr.Post("/api/auth/change-password", s.handleChangePassword)
		pr.Post("/api/auth/2fa/enable", s.handleEnable2FA)
		pr.Post("/api/auth/2fa/verify", s.handleVerify2FA)
	})

	return r
}
