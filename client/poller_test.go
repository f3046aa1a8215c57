package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeService scripts the remote surface for loop tests: sign-in handshake,
// a queue of days-endpoint bodies (last one repeats), a fixed times body and
// a booking counter.
type fakeService struct {
	mu        sync.Mutex
	logins    int
	days      []string
	daysCalls int
	timesBody string
	bookings  int
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/en-ca/niv/users/sign_in", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Add("Set-Cookie", "_yatri_session=anon; path=/")
			io.WriteString(w, signInPage)
			return
		}
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		w.Header().Add("Set-Cookie", "_yatri_session=auth; path=/")
		w.Header().Set("Location", "/en-ca/niv/groups")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/en-ca/niv/schedule/12345678/appointment/days/94.json", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body := f.days[min(f.daysCalls, len(f.days)-1)]
		f.daysCalls++
		f.mu.Unlock()
		io.WriteString(w, body)
	})
	mux.HandleFunc("/en-ca/niv/schedule/12345678/appointment/times/94.json", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, f.timesBody)
	})
	mux.HandleFunc("/en-ca/niv/schedule/12345678/appointment", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Add("Set-Cookie", "_yatri_session=fresh; path=/")
			io.WriteString(w, `<meta name="csrf-token" content="fresh-token">`)
			return
		}
		f.mu.Lock()
		f.bookings++
		f.mu.Unlock()
		io.WriteString(w, "booked")
	})
	return mux
}

func (f *fakeService) counts() (logins, daysCalls, bookings int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins, f.daysCalls, f.bookings
}

func TestPollBooksEarlierDateAndAdvancesHeld(t *testing.T) {
	fake := &fakeService{
		days:      []string{`[{"date":"2025-05-10"}]`},
		timesBody: `{"business_times":["09:00"],"available_times":["10:00"]}`,
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL)
	held := NewHeldDate("2025-06-01")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Poll(ctx, testSession(), held, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		_, _, bookings := fake.counts()
		return bookings >= 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	require.Equal(t, "2025-05-10", held.Get())
}

func TestPollIgnoresLaterDate(t *testing.T) {
	fake := &fakeService{days: []string{`[{"date":"2025-07-01"}]`}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL)
	held := NewHeldDate("2025-06-01")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Poll(ctx, testSession(), held, 5*time.Millisecond) }()

	require.Eventually(t, func() bool {
		_, daysCalls, _ := fake.counts()
		return daysCalls >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	_, _, bookings := fake.counts()
	require.Zero(t, bookings)
	require.Equal(t, "2025-06-01", held.Get())
}

func TestPollIgnoresEmptyAvailability(t *testing.T) {
	fake := &fakeService{days: []string{`[]`}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL)
	held := NewHeldDate("2025-06-01")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Poll(ctx, testSession(), held, 5*time.Millisecond) }()

	require.Eventually(t, func() bool {
		_, daysCalls, _ := fake.counts()
		return daysCalls >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	_, _, bookings := fake.counts()
	require.Zero(t, bookings)
	require.Equal(t, "2025-06-01", held.Get())
}

// An equal polled date still triggers a booking on every cycle. Known
// duplicate-submission behavior, kept on purpose.
func TestPollRebooksEqualDate(t *testing.T) {
	fake := &fakeService{
		days:      []string{`[{"date":"2025-05-10"}]`},
		timesBody: `{"business_times":["09:00"],"available_times":[]}`,
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL)
	held := NewHeldDate("2025-05-10")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Poll(ctx, testSession(), held, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		_, _, bookings := fake.counts()
		return bookings >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.Equal(t, "2025-05-10", held.Get())
}

func TestPollPropagatesServiceError(t *testing.T) {
	fake := &fakeService{days: []string{`{"error":"session expired"}`}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.Poll(context.Background(), testSession(), NewHeldDate("2025-06-01"), time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "session expired")
}
