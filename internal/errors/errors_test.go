package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestRequestTags404AsNotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorCode
	}{
		{"not found", 404, ErrNotFound},
		{"server error", 500, ErrRequestFailed},
		{"bad request", 400, ErrRequestFailed},
		{"conflict", 409, ErrRequestFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Request(tt.status, "boom")
			if err.Code != tt.want {
				t.Errorf("Request(%d) code = %s, want %s", tt.status, err.Code, tt.want)
			}
			if err.Status != tt.status {
				t.Errorf("Request(%d) status = %d", tt.status, err.Status)
			}
		})
	}
}

func TestIsUnwrapsChain(t *testing.T) {
	inner := Request(404, "gone")
	mid := Wrap(ErrRequestFailed, "replay failed", inner)
	outer := fmt.Errorf("pass failed: %w", mid)

	if !Is(outer, ErrNotFound) {
		t.Error("expected ErrNotFound to be found through the chain")
	}
	if !Is(outer, ErrRequestFailed) {
		t.Error("expected ErrRequestFailed to be found through the chain")
	}
	if Is(outer, ErrAuthFailed) {
		t.Error("did not expect ErrAuthFailed in the chain")
	}
	if Is(nil, ErrNotFound) {
		t.Error("nil error must not match any code")
	}
}

func TestStatusOfUnwrapsChain(t *testing.T) {
	inner := Request(401, "expired")
	outer := Wrap(ErrAuthFailed, "session expired", inner)

	if got := StatusOf(outer); got != 401 {
		t.Errorf("StatusOf = %d, want 401", got)
	}
	if got := StatusOf(New(ErrStore, "no status")); got != 0 {
		t.Errorf("StatusOf without status = %d, want 0", got)
	}
	if got := StatusOf(stderrors.New("plain")); got != 0 {
		t.Errorf("StatusOf plain error = %d, want 0", got)
	}
}

func TestErrorFormatting(t *testing.T) {
	plain := New(ErrStore, "write failed")
	if plain.Error() != "[STORE_ERROR] write failed" {
		t.Errorf("unexpected message: %s", plain.Error())
	}

	withStatus := Request(500, "internal")
	if withStatus.Error() != "[REQUEST_FAILED] 500 internal" {
		t.Errorf("unexpected message: %s", withStatus.Error())
	}

	wrapped := Wrap(ErrConfig, "parse failed", stderrors.New("bad toml"))
	if !stderrors.Is(wrapped, wrapped.Err) {
		t.Error("Unwrap must expose the inner error")
	}
}
