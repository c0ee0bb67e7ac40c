package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"readlater/internal/servicetoken"
	"readlater/internal/util"
	"readlater/services/auth/app"
	"readlater/services/auth/config"
	"readlater/services/auth/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	refreshTTL, err := config.ParseRefreshTTL(cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("failed to parse refresh TTL: %v", err)
	}
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse JWT leeway: %v", err)
	}
	verifyKeys, err := servicetoken.ParseVerifyPublicKeys(cfg.JWTVerifyPublicKeys)
	if err != nil {
		log.Fatalf("failed to parse JWT verify keys: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		DatabaseURL:         cfg.DatabaseURL,
		RedisAddr:           cfg.RedisAddr,
		RedisPassword:       cfg.RedisPassword,
		SessionTTL:          sessionTTL,
		RefreshTTL:          refreshTTL,
		JWTPrivateKeyPath:   cfg.JWTPrivateKeyPath,
		JWTPublicKeyPath:    cfg.JWTPublicKeyPath,
		JWTKeyID:            cfg.JWTKeyID,
		JWTVerifyPublicKeys: verifyKeys,
		JWTIssuer:           cfg.JWTIssuer,
		JWTAudience:         cfg.JWTAudience,
		JWTLeeway:           jwtLeeway,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	allowedIssuers := config.ParseAllowedIssuers(cfg.InternalAllowedIssuers)
	if len(allowedIssuers) == 0 {
		allowedIssuers = []string{"readlater-reader"}
	}
	internalVerifyKeys, err := servicetoken.ParseVerifyPublicKeys(cfg.InternalJWTVerifyKeys)
	if err != nil {
		log.Fatalf("failed to parse internal verify keys: %v", err)
	}
	internalVerifier, err := servicetoken.NewVerifierWithOptions(servicetoken.VerifierOptions{
		PublicKeyPath:      cfg.InternalJWTPublicKey,
		VerifyPublicKeyMap: internalVerifyKeys,
		Audience:           "readlater-auth",
		AllowedIssuers:     allowedIssuers,
	})
	if err != nil {
		log.Fatalf("failed to init internal verifier: %v", err)
	}

	httpServer := server.New(server.Config{
		App:              appCore,
		InternalVerifier: internalVerifier,
	})

	handler := util.WithSecurityHeaders(
		util.WithRequestID(
			util.WithRequestLog("auth", httpServer.Router()),
		),
	)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("auth server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
