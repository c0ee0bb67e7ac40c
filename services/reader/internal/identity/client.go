package identity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"readlater/internal/servicetoken"
	"readlater/pkg/domain"
)

// Client calls the identity service over HTTP. Credential checks, token
// issuance, and profile storage all live on the remote side; this adapter
// only shapes requests and interprets responses.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *servicetoken.Signer
	audience   string
}

// APIError represents an identity service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Options configures the identity client.
type Options struct {
	BaseURL string
	// Signer is required for the internal profile lookup endpoints.
	Signer     *servicetoken.Signer
	Audience   string
	HTTPClient *http.Client
}

// NewClient constructs an identity service client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	audience := strings.TrimSpace(opts.Audience)
	if audience == "" {
		audience = "readlater-auth"
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		signer:     opts.Signer,
		audience:   audience,
	}
}

// SignUp registers a new profile and returns it with a token pair.
func (c *Client) SignUp(email, password string) (domain.User, string, string, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.doJSON(http.MethodPost, "/auth/signup", "", payload, &resp); err != nil {
		return domain.User{}, "", "", err
	}
	return resp.User, resp.Token, resp.RefreshToken, nil
}

// VerifyLogin checks credentials against the identity service.
// Rejected credentials return ok=false with no error; the error return is
// reserved for transport and server failures.
func (c *Client) VerifyLogin(email, password string) (domain.User, string, string, bool, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.doJSON(http.MethodPost, "/auth/login", "", payload, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return domain.User{}, "", "", false, nil
		}
		return domain.User{}, "", "", false, err
	}
	return resp.User, resp.Token, resp.RefreshToken, true, nil
}

// Refresh rotates a refresh token.
func (c *Client) Refresh(refreshToken string) (domain.User, string, string, error) {
	payload := map[string]string{"refreshToken": refreshToken}
	var resp authResponse
	if err := c.doJSON(http.MethodPost, "/auth/refresh", "", payload, &resp); err != nil {
		return domain.User{}, "", "", err
	}
	return resp.User, resp.Token, resp.RefreshToken, nil
}

// Logout invalidates the access token and optional refresh token.
func (c *Client) Logout(token, refreshToken string) error {
	var payload any
	if strings.TrimSpace(refreshToken) != "" {
		payload = map[string]string{"refreshToken": refreshToken}
	}
	return c.doJSON(http.MethodPost, "/auth/logout", token, payload, nil)
}

// Me resolves the profile behind a user access token.
func (c *Client) Me(token string) (domain.User, error) {
	var user domain.User
	if err := c.doJSON(http.MethodGet, "/auth/me", token, nil, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ProfileByID fetches a profile through the internal endpoint.
// Any failure, transport included, reads as absent.
func (c *Client) ProfileByID(id string) (domain.User, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, false
	}
	token, err := c.serviceToken()
	if err != nil {
		return domain.User{}, false
	}
	var user domain.User
	if err := c.doJSON(http.MethodGet, "/internal/profiles/"+url.PathEscape(id), token, nil, &user); err != nil {
		return domain.User{}, false
	}
	return user, true
}

// ProfileByEmail fetches a profile through the internal endpoint.
// An empty email reads as absent without a network call.
func (c *Client) ProfileByEmail(email string) (domain.User, bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.User{}, false
	}
	token, err := c.serviceToken()
	if err != nil {
		return domain.User{}, false
	}
	var user domain.User
	path := "/internal/profiles/by-email?email=" + url.QueryEscape(email)
	if err := c.doJSON(http.MethodGet, path, token, nil, &user); err != nil {
		return domain.User{}, false
	}
	return user, true
}

func (c *Client) serviceToken() (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("identity client has no service token signer")
	}
	return c.signer.Sign(c.audience)
}

func (c *Client) doJSON(method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type authResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         domain.User `json:"user"`
}
