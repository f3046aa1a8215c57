package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Book claims the given slot. Anti-forgery tokens are single-use on the
// remote side, so the appointment page is fetched first for a fresh
// cookie/token pair; the token cached at login is never reused here.
//
// The raw response body is returned without interpretation: the service does
// not expose a machine-readable booking outcome, and the caller is not
// expected to verify one.
func (c *Client) Book(ctx context.Context, sess Session, date, slot string) ([]byte, error) {
	res, body, err := c.do(ctx, c.httpc, http.MethodGet, c.appointmentURL(), sess.Headers, nil)
	if err != nil {
		c.recordAttempt(date, slot, err)
		return nil, fmt.Errorf("fetch appointment page: %w", err)
	}
	fresh := newSession(res, body)
	if fresh.CSRFToken == "" {
		dumpDebugHTML("debug_appointment_page.html", body)
		err := fmt.Errorf("appointment page carried no csrf token")
		c.recordAttempt(date, slot, err)
		return nil, err
	}

	form := url.Values{}
	form.Set("utf8", "✓")
	form.Set("authenticity_token", fresh.CSRFToken)
	form.Set("confirmed_limit_message", "1")
	form.Set("use_consulate_appointment_capacity", "true")
	form.Set("appointments[consulate_appointment][facility_id]", c.facilityID)
	form.Set("appointments[consulate_appointment][date]", date)
	form.Set("appointments[consulate_appointment][time]", slot)
	// The service requires the ASC namespace present even when unused.
	form.Set("appointments[asc_appointment][facility_id]", "")
	form.Set("appointments[asc_appointment][date]", "")
	form.Set("appointments[asc_appointment][time]", "")

	headers := fresh.headersWith(map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Referer":      c.appointmentURL(),
	})
	_, payload, err := c.do(ctx, c.httpc, http.MethodPost, c.appointmentURL(), headers, strings.NewReader(form.Encode()))
	c.recordAttempt(date, slot, err)
	if err != nil {
		return nil, fmt.Errorf("submit booking: %w", err)
	}
	return payload, nil
}

// recordAttempt appends the attempt to the JSON-line history file when one
// is configured.
func (c *Client) recordAttempt(date, slot string, err error) {
	if c.historyFile == "" {
		return
	}
	attempt := Attempt{At: time.Now().UTC(), Date: date, Time: slot}
	if err != nil {
		attempt.Error = err.Error()
	}
	if werr := appendAttempt(c.historyFile, attempt); werr != nil {
		c.log.Errorf("write attempt history: %v", werr)
	}
}

// dumpDebugHTML saves an unparseable page beside the binary for inspection.
// Best effort only.
func dumpDebugHTML(name string, body []byte) {
	_ = os.WriteFile(name, body, 0644)
}
