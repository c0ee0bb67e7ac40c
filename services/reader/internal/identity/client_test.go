package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"readlater/internal/servicetoken"
	"readlater/pkg/domain"
)

func newStubIdentityServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "reader@example.com" || req.Password != "Str0ng!Passw0rd" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Incorrect email address or password"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":        "access-1",
			"refreshToken": "refresh-1",
			"user":         domain.User{ID: "user-1", Email: req.Email},
		})
	})
	mux.HandleFunc("/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":        "access-new",
			"refreshToken": "refresh-new",
			"user":         domain.User{ID: "user-new", Email: "new@example.com"},
		})
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.User{ID: "user-1", Email: "reader@example.com"})
	})
	mux.HandleFunc("/internal/profiles/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/internal/profiles/")
		if id != "user-1" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "profile not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(domain.User{ID: "user-1", Email: "reader@example.com"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSigner(t *testing.T) *servicetoken.Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "internal-private.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	signer, err := servicetoken.NewSignerWithOptions(servicetoken.SignerOptions{
		PrivateKeyPath: path,
		Issuer:         "readlater-reader",
	})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return signer
}

func TestVerifyLogin(t *testing.T) {
	srv := newStubIdentityServer(t)
	c := NewClient(Options{BaseURL: srv.URL})

	user, access, refresh, ok, err := c.VerifyLogin("reader@example.com", "Str0ng!Passw0rd")
	if err != nil || !ok {
		t.Fatalf("login failed: ok=%v err=%v", ok, err)
	}
	if user.ID != "user-1" || access != "access-1" || refresh != "refresh-1" {
		t.Fatalf("unexpected login result: %+v %q %q", user, access, refresh)
	}

	// Bad creds surface as ok=false, not error.
	_, _, _, ok, err = c.VerifyLogin("reader@example.com", "wrong")
	if err != nil {
		t.Fatalf("rejected credentials must not error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for rejected credentials")
	}
}

func TestVerifyLoginTransportFailureErrors(t *testing.T) {
	srv := newStubIdentityServer(t)
	srv.Close()
	c := NewClient(Options{BaseURL: srv.URL})
	if _, _, _, _, err := c.VerifyLogin("reader@example.com", "Str0ng!Passw0rd"); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestSignUpAndMe(t *testing.T) {
	srv := newStubIdentityServer(t)
	c := NewClient(Options{BaseURL: srv.URL})

	user, access, _, err := c.SignUp("new@example.com", "Str0ng!Passw0rd")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.ID != "user-new" || access != "access-new" {
		t.Fatalf("unexpected signup result: %+v %q", user, access)
	}

	me, err := c.Me("access-1")
	if err != nil || me.ID != "user-1" {
		t.Fatalf("me failed: %+v err=%v", me, err)
	}
	if _, err := c.Me("bogus"); err == nil {
		t.Fatal("expected unauthorized error")
	}
}

func TestProfileByIDAbsentOnAnyFailure(t *testing.T) {
	srv := newStubIdentityServer(t)
	c := NewClient(Options{BaseURL: srv.URL, Signer: newTestSigner(t)})

	if user, ok := c.ProfileByID("user-1"); !ok || user.Email != "reader@example.com" {
		t.Fatalf("expected profile, got ok=%v %+v", ok, user)
	}
	if _, ok := c.ProfileByID("user-unknown"); ok {
		t.Fatal("missing profile must read as absent")
	}
	if _, ok := c.ProfileByID(""); ok {
		t.Fatal("empty id must read as absent")
	}

	// No signer configured: absent, not panic.
	unsigned := NewClient(Options{BaseURL: srv.URL})
	if _, ok := unsigned.ProfileByID("user-1"); ok {
		t.Fatal("expected absent without signer")
	}
}

func TestProfileByEmailEmptyIsAbsent(t *testing.T) {
	srv := newStubIdentityServer(t)
	c := NewClient(Options{BaseURL: srv.URL, Signer: newTestSigner(t)})
	if _, ok := c.ProfileByEmail(""); ok {
		t.Fatal("empty email must read as absent")
	}
	if _, ok := c.ProfileByEmail("   "); ok {
		t.Fatal("blank email must read as absent")
	}
}
