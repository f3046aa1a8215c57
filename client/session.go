package client

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// sessionCookieName is the only cookie the remote service keys the session
// on; everything else in Set-Cookie is discarded.
const sessionCookieName = "_yatri_session"

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Session is the cookie/token/header bundle required for authenticated
// requests. It is a value type: callers replace the whole session rather
// than mutating fields, so a partially updated bundle can never be observed.
type Session struct {
	Cookie    string
	CSRFToken string
	Headers   map[string]string
}

// newSession derives a Session from a raw response. Pure transform: a
// missing cookie or token produces the degenerate values below rather than
// an error, and any failure surfaces downstream when the session is used.
func newSession(res *http.Response, body []byte) Session {
	cookie := extractCookie(strings.Join(res.Header.Values("Set-Cookie"), "; "))
	token := extractCSRF(body)

	headers := make(map[string]string, len(staticHeaders)+2)
	for k, v := range staticHeaders {
		headers[k] = v
	}
	headers["Cookie"] = cookie
	headers["X-CSRF-Token"] = token
	return Session{Cookie: cookie, CSRFToken: token, Headers: headers}
}

// WithCookie returns a copy of the session whose cookie is replaced by the
// one extracted from the given Set-Cookie header. The receiver is untouched.
func (s Session) WithCookie(setCookie string) Session {
	next := Session{
		Cookie:    extractCookie(setCookie),
		CSRFToken: s.CSRFToken,
		Headers:   make(map[string]string, len(s.Headers)),
	}
	for k, v := range s.Headers {
		next.Headers[k] = v
	}
	next.Headers["Cookie"] = next.Cookie
	return next
}

// headersWith merges extra headers over the session's own without mutating
// either map.
func (s Session) headersWith(extra map[string]string) map[string]string {
	merged := make(map[string]string, len(s.Headers)+len(extra))
	for k, v := range s.Headers {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// extractCookie pulls the session cookie out of a raw Set-Cookie header and
// re-serializes it as name=value. When the cookie is absent the literal
// "undefined" placeholder is kept: the remote service has always accepted it
// on anonymous requests and existing deployments depend on the exact string.
func extractCookie(setCookie string) string {
	for _, part := range strings.Split(setCookie, ";") {
		name, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		if name == sessionCookieName {
			return sessionCookieName + "=" + value
		}
	}
	return sessionCookieName + "=undefined"
}

// extractCSRF finds the anti-forgery token in the page's csrf-token meta
// element. Malformed or token-less HTML yields an empty token.
func extractCSRF(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return doc.Find(`meta[name="csrf-token"]`).AttrOr("content", "")
}
