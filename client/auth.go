package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// staticHeaders is the fixed header set carried by anonymous requests before
// a session exists.
var staticHeaders = map[string]string{
	"User-Agent":      userAgent,
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Cache-Control":   "no-store",
	"Connection":      "keep-alive",
	"Referrer-Policy": "strict-origin-when-cross-origin",
}

// Login performs the two-step sign-in handshake and returns an authenticated
// session: an anonymous GET for the cookie/token pair, then a credential
// POST whose Set-Cookie becomes the authoritative session cookie. Failures
// are returned as-is; retry policy lives in the supervisor.
func (c *Client) Login(ctx context.Context) (Session, error) {
	res, body, err := c.do(ctx, c.httpc, http.MethodGet, c.signInURL(), staticHeaders, nil)
	if err != nil {
		return Session{}, fmt.Errorf("fetch sign-in page: %w", err)
	}
	anon := newSession(res, body)

	form := url.Values{}
	form.Set("user[email]", c.email)
	form.Set("user[password]", c.password)
	form.Set("policy_confirmed", "1")
	form.Set("commit", "Sign In")

	headers := anon.headersWith(map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Referer":      c.signInURL(),
	})
	// The service answers a successful credential POST with a redirect, so
	// it is issued on the no-redirect client to keep its Set-Cookie header.
	res, _, err = c.do(ctx, c.noRedirect, http.MethodPost, c.signInURL(), headers, strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, fmt.Errorf("submit credentials: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return Session{}, fmt.Errorf("sign-in rejected: %s", res.Status)
	}

	return anon.WithCookie(strings.Join(res.Header.Values("Set-Cookie"), "; ")), nil
}
