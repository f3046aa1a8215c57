package client

import (
	"context"
	"sync"
	"time"
)

// HeldDate is the appointment date currently reserved for the account. It
// only ever moves to an earlier or equal date; the supervisor threads it
// through restarts so a reconnect never loses progress.
type HeldDate struct {
	mu   sync.Mutex
	date string
}

func NewHeldDate(date string) *HeldDate {
	return &HeldDate{date: date}
}

func (h *HeldDate) Get() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.date
}

func (h *HeldDate) Set(date string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.date = date
}

// Supervisor keeps the authenticate-then-poll sequence running forever.
// Every failure anywhere in login or polling lands here; the response is
// always the same: log it, wait out the poll delay (plus the ban cooldown
// when the safety monitor tripped), rotate the proxy if one is configured,
// and start over with the last known held date.
type Supervisor struct {
	client   *Client
	proxies  *ProxyRing
	log      *Logger
	held     *HeldDate
	delay    time.Duration
	cooldown time.Duration
}

func NewSupervisor(c *Client, proxies *ProxyRing, log *Logger, initialDate string, delay, cooldown time.Duration) *Supervisor {
	return &Supervisor{
		client:   c,
		proxies:  proxies,
		log:      log,
		held:     NewHeldDate(initialDate),
		delay:    delay,
		cooldown: cooldown,
	}
}

// Held returns the shared held-date handle.
func (s *Supervisor) Held() *HeldDate { return s.held }

// Run loops until the context is cancelled. Retries are unbounded with no
// backoff beyond the fixed poll delay; the process is meant to run
// unattended until someone stops it.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if err := s.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Errorf("%v", err)
			s.log.Infof("trying again")
		}

		if tripped, reason := s.client.Safety().Tripped(); tripped {
			s.log.Warnf("ban signals observed (%s), cooling down for %s", reason, s.cooldown)
			if err := sleepCtx(ctx, s.cooldown); err != nil {
				return err
			}
			s.client.Safety().Reset()
		}
		if s.proxies != nil {
			next := s.proxies.Next()
			s.log.Infof("rotating proxy: %s", redactProxy(next))
			s.client.SetProxy(next)
		}

		if err := sleepCtx(ctx, s.delay); err != nil {
			return err
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) error {
	sess, err := s.client.Login(ctx)
	if err != nil {
		return err
	}
	s.log.Infof("signed in, polling every %s (held date %s)", s.delay, s.held.Get())
	return s.client.Poll(ctx, sess, s.held, s.delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
