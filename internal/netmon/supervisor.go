// Package netmon runs the periodic connectivity check: it watches the Wi-Fi
// uplink and the correction relay and nudges whichever one is down.
package netmon

import (
	"log"
	"sync/atomic"
	"time"
)

const DefaultInterval = 5 * time.Second

// WifiLink is the uplink as the supervisor sees it. Reconnect may block for
// seconds, so the supervisor never calls it on the control loop.
type WifiLink interface {
	Up() bool
	Reconnect() error
}

// Relay is the correction link. EnsureConnected is a single bounded attempt.
type Relay interface {
	Connected() bool
	EnsureConnected() bool
}

type Supervisor struct {
	wifi     WifiLink
	relay    Relay
	interval time.Duration

	lastCheck    time.Time
	reconnecting atomic.Bool
}

func New(wifi WifiLink, relay Relay, interval time.Duration) *Supervisor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Supervisor{wifi: wifi, relay: relay, interval: interval}
}

// Tick is a no-op until the check interval has elapsed since the last check.
// When due: a downed uplink gets an asynchronous reconnect kick (the result
// is observed on later ticks, never awaited); an up link with a disconnected
// relay gets one EnsureConnected attempt. The check time advances either way.
func (s *Supervisor) Tick(now time.Time) {
	if !s.lastCheck.IsZero() && now.Sub(s.lastCheck) < s.interval {
		return
	}
	s.lastCheck = now

	if !s.wifi.Up() {
		if s.reconnecting.CompareAndSwap(false, true) {
			go func() {
				defer s.reconnecting.Store(false)
				if err := s.wifi.Reconnect(); err != nil {
					log.Printf("wifi reconnect failed: %v", err)
				}
			}()
		}
		return
	}

	if !s.relay.Connected() {
		s.relay.EnsureConnected()
	}
}
