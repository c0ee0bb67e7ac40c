package app

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"readlater/pkg/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	sessions, err := store.NewJWTSessionStoreFromPEM(
		writeTestPrivateKeyPEM(t),
		"",
		"test-active",
		nil,
		time.Minute,
		store.NewMemoryTokenRevoker(),
		store.JWTOptions{},
	)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	a, err := New(Config{
		Store:         store.NewMemoryStore(),
		Sessions:      sessions,
		RefreshTokens: store.NewMemoryRefreshTokenStore(),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestSignUpAndUserFromToken(t *testing.T) {
	a := newTestApp(t)
	user, access, refresh, err := a.SignUp("reader@example.com", "Str0ng!Passw0rd")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.ID == "" || access == "" || refresh == "" {
		t.Fatalf("expected user and token pair, got %+v access=%q refresh=%q", user, access, refresh)
	}
	resolved, ok := a.UserFromToken(access)
	if !ok || resolved.ID != user.ID {
		t.Fatalf("resolve token failed: ok=%v resolved=%+v", ok, resolved)
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	a := newTestApp(t)
	if _, _, _, err := a.SignUp("reader@example.com", "Str0ng!Passw0rd"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, _, _, err := a.SignUp("Reader@Example.com", "Str0ng!Passw0rd"); err != ErrEmailAlreadyExists {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestSignUpRejectsWeakPassword(t *testing.T) {
	a := newTestApp(t)
	if _, _, _, err := a.SignUp("reader@example.com", "short"); err == nil {
		t.Fatal("expected weak password to fail")
	}
}

func TestLoginFailureIsIndistinguishable(t *testing.T) {
	a := newTestApp(t)
	if _, _, _, err := a.SignUp("reader@example.com", "Str0ng!Passw0rd"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, _, _, wrongPassword := a.Login("reader@example.com", "Wr0ng!Passw0rd")
	_, _, _, unknownEmail := a.Login("ghost@example.com", "Str0ng!Passw0rd")
	if wrongPassword != ErrInvalidCredentials || unknownEmail != ErrInvalidCredentials {
		t.Fatalf("expected identical credential errors, got %v and %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("error messages differ: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestLoginSucceedsWithNormalizedEmail(t *testing.T) {
	a := newTestApp(t)
	if _, _, _, err := a.SignUp("reader@example.com", "Str0ng!Passw0rd"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	user, access, _, err := a.Login("  Reader@EXAMPLE.com ", "Str0ng!Passw0rd")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Email != "reader@example.com" || access == "" {
		t.Fatalf("unexpected login result: %+v", user)
	}
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	a := newTestApp(t)
	_, _, refresh, err := a.SignUp("reader@example.com", "Str0ng!Passw0rd")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, access2, refresh2, err := a.Refresh(refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if access2 == "" || refresh2 == "" || refresh2 == refresh {
		t.Fatalf("expected rotated token pair")
	}
	// Replaying the consumed token must fail and revoke the family.
	if _, _, _, err := a.Refresh(refresh); err != ErrInvalidRefreshToken {
		t.Fatalf("expected replay rejection, got %v", err)
	}
	if _, _, _, err := a.Refresh(refresh2); err != ErrInvalidRefreshToken {
		t.Fatalf("expected revoked family rejection, got %v", err)
	}
}

func TestLogoutInvalidatesAccessToken(t *testing.T) {
	a := newTestApp(t)
	_, access, refresh, err := a.SignUp("reader@example.com", "Str0ng!Passw0rd")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := a.Logout(access, refresh); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := a.UserFromToken(access); ok {
		t.Fatal("expected revoked token to be rejected")
	}
	if _, _, _, err := a.Refresh(refresh); err != ErrInvalidRefreshToken {
		t.Fatalf("expected revoked refresh token, got %v", err)
	}
}

func TestProfileLookups(t *testing.T) {
	a := newTestApp(t)
	user, _, _, err := a.SignUp("reader@example.com", "Str0ng!Passw0rd")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	byID, ok, err := a.ProfileByID(user.ID)
	if err != nil || !ok || byID.Email != user.Email {
		t.Fatalf("profile by id failed: ok=%v err=%v", ok, err)
	}
	byEmail, ok, err := a.ProfileByEmail("reader@example.com")
	if err != nil || !ok || byEmail.ID != user.ID {
		t.Fatalf("profile by email failed: ok=%v err=%v", ok, err)
	}
	if _, _, err := a.ProfileByEmail(""); err != ErrEmailRequired {
		t.Fatalf("expected email required error, got %v", err)
	}
	if _, ok, err := a.ProfileByID("missing"); err != nil || ok {
		t.Fatalf("expected missing profile, ok=%v err=%v", ok, err)
	}
}

func writeTestPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "jwt-private.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path
}
