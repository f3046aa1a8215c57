package client

import (
	"fmt"
	"sync"
	"time"
)

// SafetyMonitor watches for ban signals (403/429) on any response passing
// through the client. It never fails a request by itself — availability
// errors are detected from the JSON body only — but the supervisor consults
// it between epochs to decide whether to cool down before signing in again.
type SafetyMonitor struct {
	mu        sync.Mutex
	tripped   bool
	reason    string
	trippedAt time.Time
}

func NewSafetyMonitor() *SafetyMonitor {
	return &SafetyMonitor{}
}

// Observe records one response status.
func (m *SafetyMonitor) Observe(status int) {
	if status != 403 && status != 429 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tripped {
		m.tripped = true
		m.reason = fmt.Sprintf("HTTP %d", status)
		m.trippedAt = time.Now()
	}
}

// Tripped reports whether a ban signal was seen since the last Reset.
func (m *SafetyMonitor) Tripped() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tripped, m.reason
}

// Reset clears the trip after the supervisor has waited out the cooldown.
func (m *SafetyMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tripped = false
	m.reason = ""
}
