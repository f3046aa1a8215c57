package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// getJSON issues an authenticated GET against a JSON endpoint and decodes
// the body into out. A body carrying a non-empty "error" field fails the
// request with that message; this is the only error signal the service
// documents, so the HTTP status is deliberately not checked here.
func (c *Client) getJSON(ctx context.Context, sess Session, rawurl string, out any) error {
	headers := sess.headersWith(map[string]string{
		"Accept":           "application/json",
		"X-Requested-With": "XMLHttpRequest",
		"Cache-Control":    "no-store",
	})
	_, body, err := c.do(ctx, c.httpc, http.MethodGet, rawurl, headers, nil)
	if err != nil {
		return err
	}

	// The error field only ever appears on object bodies; list bodies fall
	// through to the real decode.
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.Error != "" {
		return fmt.Errorf("service error: %s", probe.Error)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", rawurl, err)
	}
	return nil
}

// AvailableDate returns the earliest available appointment date at the
// configured facility, or ok=false when no slots are open.
func (c *Client) AvailableDate(ctx context.Context, sess Session) (string, bool, error) {
	query := url.Values{}
	query.Set("appointments[expedite]", "false")
	endpoint := fmt.Sprintf("%s/days/%s.json?%s", c.appointmentURL(), c.facilityID, query.Encode())

	var days []struct {
		Date string `json:"date"`
	}
	if err := c.getJSON(ctx, sess, endpoint, &days); err != nil {
		return "", false, err
	}
	if len(days) == 0 {
		return "", false, nil
	}
	return days[0].Date, true, nil
}

// AvailableTime returns the earliest bookable time on the given date.
// Business times win over general availability when both exist; ok=false
// means the date has no usable time at all.
func (c *Client) AvailableTime(ctx context.Context, sess Session, date string) (string, bool, error) {
	query := url.Values{}
	query.Set("date", date)
	query.Set("appointments[expedite]", "false")
	endpoint := fmt.Sprintf("%s/times/%s.json?%s", c.appointmentURL(), c.facilityID, query.Encode())

	var times struct {
		Business  []string `json:"business_times"`
		Available []string `json:"available_times"`
	}
	if err := c.getJSON(ctx, sess, endpoint, &times); err != nil {
		return "", false, err
	}
	if len(times.Business) > 0 {
		return times.Business[0], true, nil
	}
	if len(times.Available) > 0 {
		return times.Available[0], true, nil
	}
	return "", false, nil
}
