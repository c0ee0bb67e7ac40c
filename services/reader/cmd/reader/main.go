package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"readlater/internal/ratelimit"
	"readlater/internal/servicetoken"
	"readlater/internal/usertoken"
	"readlater/internal/util"
	"readlater/services/reader/internal/app"
	"readlater/services/reader/internal/config"
	"readlater/services/reader/internal/identity"
	"readlater/services/reader/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	signer, err := servicetoken.NewSignerWithOptions(servicetoken.SignerOptions{
		PrivateKeyPath: cfg.InternalJWTPrivateKeyPath,
		KeyID:          cfg.InternalJWTKeyID,
		Issuer:         "readlater-reader",
	})
	if err != nil {
		log.Fatalf("failed to init service token signer: %v", err)
	}

	identityClient := identity.NewClient(identity.Options{
		BaseURL: cfg.AuthBaseURL,
		Signer:  signer,
	})

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Identity:    identityClient,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL: config.ResolveJWKSURL(cfg),
	})
	if err != nil {
		log.Fatalf("failed to init token verifier: %v", err)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	newLimiter := func(name string, limit, fallback int) *ratelimit.FixedWindowLimiter {
		if limit <= 0 {
			limit = fallback
		}
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword,
			"readlater:reader:ratelimit:"+name, limit, time.Minute,
		)
		if err != nil {
			log.Fatalf("failed to init %s limiter: %v", name, err)
		}
		return limiter
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		TokenVerifier:  tokenVerifier,
		TrustedProxies: trustedProxies,
		SignupLimiter:  newLimiter("signup", cfg.SignupRateLimitPerMinute, 5),
		LoginLimiter:   newLimiter("login", cfg.LoginRateLimitPerMinute, 10),
		RefreshLimiter: newLimiter("refresh", cfg.RefreshRateLimitPerMinute, 20),
	})

	handler := util.WithRequestID(
		util.WithRequestLog("reader", httpServer.Router()),
	)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("reader server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
