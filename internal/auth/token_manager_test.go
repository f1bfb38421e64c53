package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/brewlog/brewsync/internal/errors"
	"github.com/brewlog/brewsync/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, database, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return st
}

// fakeJWT builds an unsigned token whose payload carries user_id.
func fakeJWT(userID int64) string {
	payload, _ := json.Marshal(map[string]int64{"user_id": userID})
	return "eyJhbGciOiJub25lIn0." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestLoginStoresCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/token/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "kim" || body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail":"No active account found"}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access": fakeJWT(7), "refresh": "refresh-1",
		})
	}))
	defer srv.Close()

	st := testStore(t)
	m, err := New(srv.URL, srv.Client(), st)
	if err != nil {
		t.Fatal(err)
	}

	result, err := m.Login(context.Background(), "kim", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if result.TwoFactorRequired {
		t.Error("unexpected 2FA challenge")
	}
	if !m.LoggedIn() || m.Username() != "kim" {
		t.Error("manager not logged in after login")
	}

	// The pair must survive a fresh manager built from the same store.
	m2, err := New(srv.URL, srv.Client(), st)
	if err != nil {
		t.Fatal(err)
	}
	if !m2.LoggedIn() || m2.Access() != m.Access() {
		t.Error("credentials not persisted")
	}
}

func TestLoginBadPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"detail":"No active account found"}`)
	}))
	defer srv.Close()

	m, err := New(srv.URL, srv.Client(), testStore(t))
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Login(context.Background(), "kim", "wrong")
	if !errors.Is(err, errors.ErrAuthFailed) {
		t.Errorf("expected AUTH_FAILED, got %v", err)
	}
	if m.LoggedIn() {
		t.Error("must not be logged in after rejected login")
	}
}

func TestLoginTwoFactorFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/token/":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"requires_2fa": true, "email": "kim@example.com",
			})
		case "/users/verify-2fa-login/":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["code"] != "123456" {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"Invalid code"}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"access": fakeJWT(7), "refresh": "refresh-2fa",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	m, err := New(srv.URL, srv.Client(), testStore(t))
	if err != nil {
		t.Fatal(err)
	}

	result, err := m.Login(context.Background(), "kim", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if !result.TwoFactorRequired || result.Email != "kim@example.com" {
		t.Fatalf("expected 2FA challenge, got %+v", result)
	}
	if m.LoggedIn() {
		t.Error("no tokens should be held before the code is verified")
	}

	if err := m.Verify2FA(context.Background(), result.Email, "000000"); !errors.Is(err, errors.ErrAuthFailed) {
		t.Errorf("bad code: expected AUTH_FAILED, got %v", err)
	}
	if err := m.Verify2FA(context.Background(), result.Email, "123456"); err != nil {
		t.Fatal(err)
	}
	if !m.LoggedIn() {
		t.Error("not logged in after verified code")
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	var refreshCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/token/":
			json.NewEncoder(w).Encode(map[string]string{
				"access": "stale-token", "refresh": "refresh-1",
			})
		case "/users/token/refresh/":
			atomic.AddInt32(&refreshCalls, 1)
			json.NewEncoder(w).Encode(map[string]string{"access": "fresh-token"})
		}
	}))
	defer srv.Close()

	m, err := New(srv.URL, srv.Client(), testStore(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Login(context.Background(), "kim", "pw"); err != nil {
		t.Fatal(err)
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Refresh(context.Background(), "stale-token")
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Errorf("refresh endpoint hit %d times, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != "fresh-token" {
			t.Errorf("caller %d got %q", i, results[i])
		}
	}
	if m.Access() != "fresh-token" {
		t.Errorf("manager access = %q", m.Access())
	}
}

func TestRefreshFailureForcesLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/token/":
			json.NewEncoder(w).Encode(map[string]string{
				"access": "stale-token", "refresh": "expired-refresh",
			})
		case "/users/token/refresh/":
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail":"Token is invalid or expired"}`)
		}
	}))
	defer srv.Close()

	st := testStore(t)
	m, err := New(srv.URL, srv.Client(), st)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Login(context.Background(), "kim", "pw"); err != nil {
		t.Fatal(err)
	}

	_, err = m.Refresh(context.Background(), "stale-token")
	if !errors.Is(err, errors.ErrAuthFailed) {
		t.Errorf("expected AUTH_FAILED, got %v", err)
	}
	if m.LoggedIn() {
		t.Error("failed refresh must force logout")
	}
	creds, err := st.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if creds != nil {
		t.Error("persisted credentials must be cleared")
	}
}

func TestLogoutDuringRefreshWins(t *testing.T) {
	var m *Manager
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/token/":
			json.NewEncoder(w).Encode(map[string]string{
				"access": "stale-token", "refresh": "refresh-1",
			})
		case "/users/token/refresh/":
			// The session is discarded while the refresh is in flight.
			m.Logout()
			json.NewEncoder(w).Encode(map[string]string{"access": "fresh-token"})
		}
	}))
	defer srv.Close()

	st := testStore(t)
	var err error
	m, err = New(srv.URL, srv.Client(), st)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Login(context.Background(), "kim", "pw"); err != nil {
		t.Fatal(err)
	}

	_, err = m.Refresh(context.Background(), "stale-token")
	if !errors.Is(err, errors.ErrUnauthenticated) {
		t.Errorf("expected UNAUTHENTICATED, got %v", err)
	}
	if m.LoggedIn() {
		t.Error("logout must win over the refreshed pair")
	}
	creds, err := st.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if creds != nil {
		t.Error("refreshed pair must not be re-persisted after logout")
	}
}

func TestRefreshWithoutLogin(t *testing.T) {
	m, err := New("http://127.0.0.1:0", &http.Client{}, testStore(t))
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Refresh(context.Background(), "whatever")
	if !errors.Is(err, errors.ErrUnauthenticated) {
		t.Errorf("expected UNAUTHENTICATED, got %v", err)
	}
}

func TestUserIDFromToken(t *testing.T) {
	if got := userIDFromToken(fakeJWT(42)); got != 42 {
		t.Errorf("user id = %d, want 42", got)
	}
	if got := userIDFromToken("garbage"); got != 0 {
		t.Errorf("garbage token user id = %d, want 0", got)
	}
}
