// Package netmon tracks two layers of connectivity: general network
// reachability (probed against a well-known external URL) and the
// backend's own health endpoint. The backend is never reported online
// while the network is down.
package netmon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/brewlog/brewsync/internal/logging"
)

// Status is a point-in-time connectivity snapshot.
type Status struct {
	NetworkOnline bool
	ServerOnline  bool
}

// HealthFunc probes the backend health endpoint.
type HealthFunc func(ctx context.Context) error

// Monitor runs the two probe loops and fans status changes out to
// subscribers.
type Monitor struct {
	probeURL        string
	client          *http.Client
	health          HealthFunc
	networkInterval time.Duration
	serverInterval  time.Duration

	mu     sync.RWMutex
	status Status
	subs   []chan Status

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New creates a Monitor. Probes do not start until Start is called;
// until the first probe completes both layers read as offline.
func New(probeURL string, client *http.Client, health HealthFunc, networkInterval, serverInterval time.Duration) *Monitor {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Monitor{
		probeURL:        probeURL,
		client:          client,
		health:          health,
		networkInterval: networkInterval,
		serverInterval:  serverInterval,
	}
}

// Start launches the probe loops. Each runs an immediate probe, then
// ticks at its configured interval.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(2)
	go m.loop(m.networkInterval, m.checkNetwork)
	go m.loop(m.serverInterval, m.checkServer)

	logging.Info("connectivity monitor started", map[string]interface{}{
		"network_interval": m.networkInterval.String(),
		"server_interval":  m.serverInterval.String(),
	})
}

// Stop halts the probe loops and waits for them to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	logging.Info("connectivity monitor stopped")
}

func (m *Monitor) loop(interval time.Duration, probe func()) {
	defer m.wg.Done()

	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			probe()
		}
	}
}

// Status returns the current connectivity snapshot.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Subscribe returns a channel receiving status changes. Sends never
// block the probes; a slow subscriber may miss intermediate states but
// always finds the newest one in its channel.
func (m *Monitor) Subscribe() <-chan Status {
	ch := make(chan Status, 4)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// ForceCheck probes both layers immediately and returns the resulting
// snapshot. Used when a request failure suggests the cached state is
// stale.
func (m *Monitor) ForceCheck() Status {
	m.checkNetwork()
	m.checkServer()
	return m.Status()
}

func (m *Monitor) checkNetwork() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	online := false
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err == nil {
		resp, err := m.client.Do(req)
		if err == nil {
			resp.Body.Close()
			online = true
		}
	}
	m.update(func(s *Status) {
		s.NetworkOnline = online
		if !online {
			s.ServerOnline = false
		}
	})
}

func (m *Monitor) checkServer() {
	m.mu.RLock()
	networkOnline := m.status.NetworkOnline
	m.mu.RUnlock()
	if !networkOnline {
		m.update(func(s *Status) { s.ServerOnline = false })
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	online := m.health(ctx) == nil

	m.update(func(s *Status) {
		// Re-check: the network probe may have flipped meanwhile.
		if !s.NetworkOnline {
			s.ServerOnline = false
			return
		}
		s.ServerOnline = online
	})
}

func (m *Monitor) update(apply func(*Status)) {
	m.mu.Lock()
	prev := m.status
	apply(&m.status)
	cur := m.status
	var subs []chan Status
	if cur != prev {
		subs = append(subs, m.subs...)
	}
	m.mu.Unlock()

	if cur == prev {
		return
	}
	logging.Info("connectivity changed", map[string]interface{}{
		"network_online": cur.NetworkOnline,
		"server_online":  cur.ServerOnline,
	})
	for _, ch := range subs {
		select {
		case ch <- cur:
			continue
		default:
		}
		// Full buffer: evict the oldest queued status so the newest one
		// is never lost to a slow subscriber.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cur:
		default:
		}
	}
}
