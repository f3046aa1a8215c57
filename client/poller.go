package client

import (
	"context"
	"time"
)

// Poll runs the availability loop until the context is cancelled or a
// request fails: check the earliest open date, compare it against the held
// date, book anything earlier or equal, sleep, repeat.
//
// held is shared with the supervisor so the date survives restarts. The
// booking call is fire-and-forget: it runs on its own goroutine and reports
// through the log when it resolves, so one slow booking request cannot stall
// the poll cadence. The held date is advanced before the booking resolves;
// the next cycle polling the same date will book it again (the service
// tolerates resubmission of the held slot).
func (c *Client) Poll(ctx context.Context, sess Session, held *HeldDate, delay time.Duration) error {
	for {
		date, ok, err := c.AvailableDate(ctx, sess)
		if err != nil {
			return err
		}

		switch {
		case !ok:
			c.log.Infof("no dates available")
		case dateAfter(date, held.Get()):
			c.log.Infof("nearest date %s is further than held %s", date, held.Get())
		default:
			held.Set(date)
			slot, _, err := c.AvailableTime(ctx, sess, date)
			if err != nil {
				return err
			}
			c.log.Infof("earlier date found, booking %s %s", date, slot)
			go c.bookAsync(date, slot, sess)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// bookAsync submits the booking and logs its eventual outcome. Runs outside
// the poll loop's cancellation scope: a booking already in flight should
// finish even if the loop is torn down.
func (c *Client) bookAsync(date, slot string, sess Session) {
	if _, err := c.Book(context.Background(), sess, date, slot); err != nil {
		c.log.Errorf("booking %s %s failed: %v", date, slot, err)
		return
	}
	c.log.Successf("booked time at %s %s", date, slot)
}

// dateAfter reports whether a falls after b. The service's YYYY-MM-DD
// strings order correctly under plain string comparison.
func dateAfter(a, b string) bool {
	return a > b
}
