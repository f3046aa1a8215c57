package client

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// After a mid-poll failure the supervisor must sign in again and resume with
// the advanced held date, not the original seed.
func TestSupervisorResumesWithLastHeldDate(t *testing.T) {
	fake := &fakeService{
		days: []string{
			`[{"date":"2025-05-10"}]`,        // cycle 1: earlier date, held advances
			`{"error":"session expired"}`,    // cycle 2: epoch dies
			`[]`,                             // after re-login: nothing available
		},
		timesBody: `{"business_times":["09:00"],"available_times":[]}`,
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL)
	sup := NewSupervisor(c, nil, NewLogger(io.Discard), "2025-06-01", 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	require.Eventually(t, func() bool {
		logins, daysCalls, _ := fake.counts()
		return logins >= 2 && daysCalls >= 3
	}, 3*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.Equal(t, "2025-05-10", sup.Held().Get())
}

func TestSupervisorRetriesFailedLogin(t *testing.T) {
	// Every sign-in POST fails; the supervisor must keep trying.
	fake := &fakeService{days: []string{`[]`}}
	srv := httptest.NewServer(fake.handler(t))
	srvURL := srv.URL
	srv.Close()

	c := newTestClient(srvURL)
	sup := NewSupervisor(c, nil, NewLogger(io.Discard), "2025-06-01", 5*time.Millisecond, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := sup.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, "2025-06-01", sup.Held().Get())
}

func TestSafetyMonitorTripsOnBanStatus(t *testing.T) {
	m := NewSafetyMonitor()
	tripped, _ := m.Tripped()
	require.False(t, tripped)

	m.Observe(200)
	tripped, _ = m.Tripped()
	require.False(t, tripped)

	m.Observe(429)
	tripped, reason := m.Tripped()
	require.True(t, tripped)
	require.Equal(t, "HTTP 429", reason)

	// First signal wins.
	m.Observe(403)
	_, reason = m.Tripped()
	require.Equal(t, "HTTP 429", reason)

	m.Reset()
	tripped, _ = m.Tripped()
	require.False(t, tripped)
}
