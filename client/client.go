package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/proxy"

	"visa-rescheduler/config"
)

// Client issues requests against one regional instance of the scheduling
// service on behalf of a single account. Requests carry explicit header maps
// built from a Session; no cookie jar is involved.
type Client struct {
	// httpc follows redirects (page fetches, booking submission).
	// noRedirect returns the first response untouched so a Set-Cookie on a
	// redirect is not lost (sign-in POST). Both route through transport,
	// which SetProxy replaces wholesale: a fire-and-forget booking may still
	// be in flight when the supervisor rotates proxies, so the swap has to
	// be atomic, same as Session replacement.
	httpc      *http.Client
	noRedirect *http.Client
	transport  atomic.Pointer[http.Transport]

	base        string // e.g. https://ais.usvisa-info.com/en-ca/niv
	email       string
	password    string
	scheduleID  string
	facilityID  string
	fingerprint bool
	historyFile string

	safety *SafetyMonitor
	log    *Logger
}

// New builds a Client for the configured locale and schedule. Proxying is
// off until SetProxy is called.
func New(cfg config.Config, log *Logger) *Client {
	c := &Client{
		base:        fmt.Sprintf("%s/%s/niv", cfg.BaseHost, cfg.Locale),
		email:       cfg.Email,
		password:    cfg.Password,
		scheduleID:  cfg.ScheduleID,
		facilityID:  cfg.FacilityID,
		fingerprint: cfg.FingerprintTLS,
		historyFile: cfg.HistoryFile,
		safety:      NewSafetyMonitor(),
		log:         log,
	}
	c.transport.Store(newTransport(cfg.FingerprintTLS, ""))

	rt := swappableTransport{current: &c.transport}
	c.httpc = &http.Client{
		Transport: rt,
		Timeout:   20 * time.Second,
	}
	c.noRedirect = &http.Client{
		Transport: rt,
		Timeout:   20 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return c
}

// swappableTransport dispatches every request on the transport current at
// call time, so SetProxy can rotate the dialing stack while requests are in
// flight; an in-flight request simply finishes on the transport it started
// with.
type swappableTransport struct {
	current *atomic.Pointer[http.Transport]
}

func (t swappableTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.current.Load().RoundTrip(req)
}

// Safety exposes the ban-signal monitor to the supervisor.
func (c *Client) Safety() *SafetyMonitor { return c.safety }

// SetProxy replaces the transport with one dialing through the given SOCKS5
// proxy (empty string for a direct connection). Safe to call concurrently
// with in-flight requests, including a fire-and-forget booking that
// outlives its poll epoch.
func (c *Client) SetProxy(proxyURL string) {
	c.transport.Store(newTransport(c.fingerprint, proxyURL))
}

// do executes one request with the given header map, reads the full body and
// reports the status to the safety monitor. hc selects the redirect policy.
func (c *Client) do(ctx context.Context, hc *http.Client, method, rawurl string, headers map[string]string, body io.Reader) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawurl, body)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := hc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer res.Body.Close()

	c.safety.Observe(res.StatusCode)

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return res, nil, fmt.Errorf("read response body: %w", err)
	}
	return res, payload, nil
}

func (c *Client) signInURL() string {
	return c.base + "/users/sign_in"
}

func (c *Client) appointmentURL() string {
	return fmt.Sprintf("%s/schedule/%s/appointment", c.base, c.scheduleID)
}

// newTransport builds the dialing stack: optional SOCKS5 tunneling and an
// optional browser-fingerprinted TLS handshake. The fingerprinted handshake
// forces HTTP/1.1 because the spoofed ClientHello must not negotiate h2 with
// Go's default HTTP/2 client.
func newTransport(fingerprint bool, proxyURL string) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if proxyURL == "" {
			return dialer.DialContext(ctx, network, addr)
		}
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		var auth *proxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
		socks, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return nil, err
		}
		return socks.Dial(network, addr)
	}

	transport := &http.Transport{DialContext: dial}
	if !fingerprint {
		return transport
	}

	transport.ForceAttemptHTTP2 = false
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, _ := net.SplitHostPort(addr)

		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		uconn := utls.UClient(conn, &utls.Config{
			ServerName: host,
			NextProtos: []string{"http/1.1"},
		}, utls.HelloCustom)

		spec, err := utls.UTLSIdToSpec(utls.HelloFirefox_Auto)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("utls spec: %w", err)
		}
		// Strip h2 from ALPN so the server answers in HTTP/1.1.
		for i, ext := range spec.Extensions {
			if alpn, ok := ext.(*utls.ALPNExtension); ok {
				alpn.AlpnProtocols = []string{"http/1.1"}
				spec.Extensions[i] = alpn
			}
		}
		if err := uconn.ApplyPreset(&spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply utls preset: %w", err)
		}
		if err := uconn.Handshake(); err != nil {
			conn.Close()
			return nil, err
		}
		return uconn, nil
	}
	return transport
}
