package syncer

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brewlog/brewsync/internal/logging"
	"github.com/brewlog/brewsync/internal/models"
)

// Realtime is the optional live-update channel. The backend pushes
// recipes created by other sessions; each one is prepended to the
// visible list. Failures here are never fatal: the REST sync pass
// remains authoritative.
type Realtime struct {
	url        string
	reconciler *Reconciler

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewRealtime creates a Realtime client for the given ws:// URL.
func NewRealtime(url string, reconciler *Reconciler) *Realtime {
	return &Realtime{
		url:        url,
		reconciler: reconciler,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Run connects and reads pushed recipes until ctx is cancelled,
// reconnecting with jittered exponential backoff on any failure.
func (rt *Realtime) Run(ctx context.Context) {
	backoff := rt.minBackoff
	for {
		if err := rt.readLoop(ctx); err != nil {
			logging.Debug("realtime channel closed", map[string]interface{}{
				"error": err.Error(), "retry_in": backoff.String(),
			})
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter(backoff)):
		}
		backoff *= 2
		if backoff > rt.maxBackoff {
			backoff = rt.maxBackoff
		}
	}
}

func (rt *Realtime) readLoop(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, rt.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	logging.Info("realtime channel connected", map[string]interface{}{"url": rt.url})

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var recipe models.Recipe
		if err := json.Unmarshal(data, &recipe); err != nil || recipe.ID == 0 {
			logging.Debug("ignoring malformed realtime message")
			continue
		}
		rt.reconciler.Prepend(recipe)
	}
}

// jitter spreads reconnect attempts so clients do not stampede.
func jitter(d time.Duration) time.Duration {
	return d/2 + time.Duration(rand.Int63n(int64(d)))/2
}
