package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"readlater/pkg/auth"
	"readlater/pkg/domain"
	"readlater/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	SessionTTL          time.Duration
	RefreshTTL          time.Duration
	JWTPrivateKeyPath   string
	JWTPublicKeyPath    string
	JWTKeyID            string
	JWTVerifyPublicKeys map[string]string
	JWTIssuer           string
	JWTAudience         string
	JWTLeeway           time.Duration
	Store               store.Store
	Sessions            store.SessionStore
	RefreshTokens       store.RefreshTokenStore
}

// App is the core identity service wiring together storage and auth logic.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	refreshTokens store.RefreshTokenStore
	refreshTTL    time.Duration
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.JWTPrivateKeyPath) == "" {
			return nil, fmt.Errorf("jwtPrivateKeyPath is required")
		}
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for jwt+redis session strategy")
		}
		revoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		jwtStore, err := store.NewJWTSessionStoreFromPEM(
			cfg.JWTPrivateKeyPath,
			cfg.JWTPublicKeyPath,
			cfg.JWTKeyID,
			cfg.JWTVerifyPublicKeys,
			cfg.SessionTTL,
			revoker,
			store.JWTOptions{
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
				Leeway:   cfg.JWTLeeway,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("init rs256 jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}

	refreshStore := cfg.RefreshTokens
	if refreshStore == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for jwt+redis refresh token strategy")
		}
		refreshStore = store.NewRedisRefreshTokenStore(cfg.RedisAddr, cfg.RedisPassword)
	}

	return &App{
		store:         dataStore,
		sessions:      sessionStore,
		refreshTokens: refreshStore,
		refreshTTL:    cfg.RefreshTTL,
	}, nil
}

// SignUp registers a new profile and issues a token pair.
func (a *App) SignUp(email, password string) (domain.User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", "", ErrEmailAndPasswordRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", "", err
	}
	exists, err := a.store.HasProfileEmail(email)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", "", ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveProfile(user); err != nil {
		return domain.User{}, "", "", fmt.Errorf("save profile: %w", err)
	}
	return a.issueUserTokens(user)
}

// Login validates credentials and issues a token pair.
// A missing account and a wrong password are indistinguishable to the caller.
func (a *App) Login(email, password string) (domain.User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetProfileByEmail(email)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch profile: %w", err)
	}
	if !ok {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	return a.issueUserTokens(user)
}

func (a *App) issueUserTokens(user domain.User) (domain.User, string, string, error) {
	accessToken, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := a.refreshTokens.NewToken(user.ID, a.refreshTTL)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	return user, accessToken, refreshToken, nil
}

// UserFromToken resolves a profile from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetProfileByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// Logout invalidates access token and optional refresh token.
func (a *App) Logout(accessToken, refreshToken string) error {
	if err := a.sessions.DeleteSession(accessToken); err != nil {
		return err
	}
	return a.RevokeRefreshToken(refreshToken)
}

// Refresh rotates refresh token and issues a new token pair.
func (a *App) Refresh(refreshToken string) (domain.User, string, string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.User{}, "", "", ErrRefreshTokenRequired
	}
	userID, newRefreshToken, err := a.refreshTokens.RotateToken(refreshToken, a.refreshTTL)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRefreshToken) || errors.Is(err, store.ErrRefreshTokenReplay) {
			return domain.User{}, "", "", ErrInvalidRefreshToken
		}
		return domain.User{}, "", "", fmt.Errorf("resolve refresh token: %w", err)
	}
	user, found, err := a.store.GetProfileByID(userID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch profile: %w", err)
	}
	if !found {
		_ = a.refreshTokens.DeleteToken(newRefreshToken)
		return domain.User{}, "", "", ErrInvalidRefreshToken
	}
	accessToken, err := a.sessions.NewSession(user.ID)
	if err != nil {
		_ = a.refreshTokens.DeleteToken(newRefreshToken)
		return domain.User{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	return user, accessToken, newRefreshToken, nil
}

// RevokeRefreshToken invalidates a refresh token explicitly.
func (a *App) RevokeRefreshToken(refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	return a.refreshTokens.DeleteToken(refreshToken)
}

// ProfileByID looks up a profile for internal service callers.
func (a *App) ProfileByID(id string) (domain.User, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, false, nil
	}
	return a.store.GetProfileByID(id)
}

// ProfileByEmail looks up a profile for internal service callers.
func (a *App) ProfileByEmail(email string) (domain.User, bool, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return domain.User{}, false, ErrEmailRequired
	}
	return a.store.GetProfileByEmail(email)
}

// JWKS returns public signing keys when session store supports it.
func (a *App) JWKS() []store.JWK {
	provider, ok := a.sessions.(store.JWKSProvider)
	if !ok {
		return nil
	}
	return provider.JWKS()
}
