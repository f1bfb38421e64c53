// Package auth owns the JWT credential pair: login, two-factor
// verification, single-flight refresh, and logout. It is the only
// package that talks to the token endpoints.
package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/brewlog/brewsync/internal/errors"
	"github.com/brewlog/brewsync/internal/logging"
	"github.com/brewlog/brewsync/internal/models"
	"github.com/brewlog/brewsync/internal/store"
)

// Manager holds the in-memory credential pair and keeps the persisted
// copy in sync. Safe for concurrent use.
type Manager struct {
	baseURL string
	client  *http.Client
	store   *store.Store

	// refreshMu serializes refresh attempts so concurrent expired
	// requests share a single refresh outcome.
	refreshMu sync.Mutex

	mu    sync.RWMutex
	creds *models.Credentials
}

// Result reports the outcome of a login attempt. When the account has
// two-factor enabled the first step returns TwoFactorRequired and the
// caller must follow up with Verify2FA.
type Result struct {
	TwoFactorRequired bool
	Email             string
}

// New creates a Manager bound to the API base URL, restoring any
// persisted credentials.
func New(baseURL string, client *http.Client, st *store.Store) (*Manager, error) {
	m := &Manager{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		store:   st,
	}
	creds, err := st.LoadCredentials()
	if err != nil {
		return nil, err
	}
	m.creds = creds
	return m, nil
}

// Access returns the current access token, or "" when logged out.
func (m *Manager) Access() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return ""
	}
	return m.creds.AccessToken
}

// LoggedIn reports whether a credential pair is held.
func (m *Manager) LoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.Valid()
}

// Username returns the logged-in username, or "" when logged out.
func (m *Manager) Username() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return ""
	}
	return m.creds.Username
}

type tokenResponse struct {
	Access      string `json:"access"`
	Refresh     string `json:"refresh"`
	Requires2FA bool   `json:"requires_2fa"`
	Email       string `json:"email"`
}

// Login performs the credential step of the login flow. Accounts with
// two-factor enabled get a Result with TwoFactorRequired set instead of
// a token pair.
func (m *Manager) Login(ctx context.Context, username, password string) (*Result, error) {
	var resp tokenResponse
	err := m.postJSON(ctx, "/users/token/", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		if errors.StatusOf(err) == http.StatusUnauthorized {
			return nil, errors.Wrap(errors.ErrAuthFailed, "invalid username or password", err)
		}
		return nil, err
	}

	if resp.Requires2FA {
		return &Result{TwoFactorRequired: true, Email: resp.Email}, nil
	}
	if err := m.adopt(resp, username); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

// Verify2FA completes a login that required a two-factor code.
func (m *Manager) Verify2FA(ctx context.Context, email, code string) error {
	var resp tokenResponse
	err := m.postJSON(ctx, "/users/verify-2fa-login/", map[string]string{
		"email": email,
		"code":  code,
	}, &resp)
	if err != nil {
		if errors.StatusOf(err) == http.StatusUnauthorized || errors.StatusOf(err) == http.StatusBadRequest {
			return errors.Wrap(errors.ErrAuthFailed, "two-factor code rejected", err)
		}
		return err
	}
	return m.adopt(resp, email)
}

// Refresh exchanges the refresh token for a new access token. stale is
// the access token the caller saw rejected; when another caller already
// refreshed past it the current token is returned without a network
// round trip. A rejected refresh token forces a logout.
func (m *Manager) Refresh(ctx context.Context, stale string) (string, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.RLock()
	creds := m.creds
	m.mu.RUnlock()

	if !creds.Valid() {
		return "", errors.New(errors.ErrUnauthenticated, "not logged in")
	}
	if creds.AccessToken != "" && creds.AccessToken != stale {
		return creds.AccessToken, nil
	}

	var resp struct {
		Access string `json:"access"`
	}
	err := m.postJSON(ctx, "/users/token/refresh/", map[string]string{
		"refresh": creds.RefreshToken,
	}, &resp)
	if err != nil {
		logging.Warn("token refresh failed, logging out", map[string]interface{}{"error": err.Error()})
		m.Logout()
		return "", errors.Wrap(errors.ErrAuthFailed, "session expired", err)
	}

	m.mu.Lock()
	// A concurrent Logout may have discarded the pair while the refresh
	// request was in flight; the logout wins.
	if m.creds == nil {
		m.mu.Unlock()
		return "", errors.New(errors.ErrUnauthenticated, "logged out during refresh")
	}
	m.creds.AccessToken = resp.Access
	updated := *m.creds
	m.mu.Unlock()

	if err := m.store.SaveCredentials(&updated); err != nil {
		logging.Warn("failed to persist refreshed token", map[string]interface{}{"error": err.Error()})
	}
	return resp.Access, nil
}

// Logout discards the credential pair. It never fails: a storage error
// is logged and the in-memory state is cleared regardless.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.creds = nil
	m.mu.Unlock()

	if err := m.store.ClearCredentials(); err != nil {
		logging.Warn("failed to clear persisted credentials", map[string]interface{}{"error": err.Error()})
	}
}

func (m *Manager) adopt(resp tokenResponse, username string) error {
	creds := &models.Credentials{
		AccessToken:  resp.Access,
		RefreshToken: resp.Refresh,
		UserID:       userIDFromToken(resp.Access),
		Username:     username,
	}

	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()

	if err := m.store.SaveCredentials(creds); err != nil {
		return errors.Wrap(errors.ErrStore, "failed to persist credentials", err)
	}
	logging.Info("logged in", map[string]interface{}{"user": username})
	return nil
}

func (m *Manager) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrServerUnreachable, "auth request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrRequestFailed, "failed to read auth response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Request(resp.StatusCode, errorDetail(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(errors.ErrRequestFailed, "failed to decode auth response", err)
		}
	}
	return nil
}

// errorDetail extracts the server's {"detail": ...} or {"error": ...}
// message, falling back to the raw body.
func errorDetail(data []byte) string {
	var envelope struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.Detail != "" {
			return envelope.Detail
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return strings.TrimSpace(string(data))
}

// userIDFromToken pulls the user_id claim out of a JWT without
// verifying the signature; the server remains the authority.
func userIDFromToken(token string) int64 {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return 0
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return 0
	}
	var claims struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return 0
	}
	return claims.UserID
}
