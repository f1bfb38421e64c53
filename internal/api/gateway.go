// Package api is the authenticated HTTP gateway to the backend. Every
// remote call flows through Gateway.Do, which attaches the bearer token
// and transparently retries once after a token refresh.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/brewlog/brewsync/internal/auth"
	"github.com/brewlog/brewsync/internal/errors"
	"github.com/brewlog/brewsync/internal/logging"
)

// DefaultTimeout bounds every request to the backend.
const DefaultTimeout = 30 * time.Second

// Gateway issues HTTP requests against the API base URL with bearer
// authentication and single-retry refresh semantics.
type Gateway struct {
	baseURL string
	client  *http.Client
	tokens  *auth.Manager
}

// NewGateway creates a Gateway. A nil client gets a default with
// DefaultTimeout.
func NewGateway(baseURL string, client *http.Client, tokens *auth.Manager) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Gateway{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		tokens:  tokens,
	}
}

// Do sends one API request. body is JSON-encoded when non-nil. The
// response body is returned for 2xx statuses; anything else becomes a
// status-tagged error.
//
// A 401 on an authenticated request triggers exactly one token refresh
// followed by one retry. A second 401, or a failed refresh, surfaces as
// an error and the caller is logged out by the token manager.
func (g *Gateway) Do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInternal, "failed to encode request body", err)
		}
	}

	contentType := ""
	if payload != nil {
		contentType = "application/json"
	}
	return g.DoRaw(ctx, method, path, contentType, payload)
}

// DoRaw is Do with a pre-encoded body and explicit content type, for
// callers that do not speak JSON (multipart uploads).
func (g *Gateway) DoRaw(ctx context.Context, method, path, contentType string, payload []byte) ([]byte, error) {
	token := g.tokens.Access()
	if token == "" && method != http.MethodGet {
		return nil, errors.New(errors.ErrUnauthenticated, "login required")
	}

	data, status, err := g.send(ctx, method, path, contentType, payload, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized && token != "" {
		refreshed, refreshErr := g.tokens.Refresh(ctx, token)
		if refreshErr != nil {
			return nil, refreshErr
		}
		logging.Debug("retrying request with refreshed token", map[string]interface{}{
			"method": method, "path": path,
		})
		data, status, err = g.send(ctx, method, path, contentType, payload, refreshed)
		if err != nil {
			return nil, err
		}
	}

	if status < 200 || status >= 300 {
		if status == http.StatusUnauthorized {
			if token == "" {
				return nil, errors.New(errors.ErrUnauthenticated, "login required")
			}
			// Still rejected with a freshly refreshed token: the session
			// is unusable, and keeping the pair would retry it forever.
			logging.Warn("request rejected after token refresh, logging out", map[string]interface{}{
				"method": method, "path": path,
			})
			g.tokens.Logout()
			return nil, errors.New(errors.ErrAuthFailed, "request rejected after token refresh")
		}
		return nil, errors.Request(status, errorDetail(data))
	}
	return data, nil
}

func (g *Gateway) send(ctx context.Context, method, path, contentType string, payload []byte, token string) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrInternal, "failed to build request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrServerUnreachable, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrRequestFailed, "failed to read response", err)
	}
	return data, resp.StatusCode, nil
}

// errorDetail extracts the backend's {"detail": ...} or {"error": ...}
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
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = "request failed"
	}
	return msg
}
