package client

import (
	"bufio"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ProxyRing hands out SOCKS5 proxy URLs round-robin, one per authentication
// epoch, so a banned exit IP is not reused on the next sign-in.
type ProxyRing struct {
	mu      sync.Mutex
	proxies []string
	next    int
}

// LoadProxyRing reads a proxy list file (one URL per line, blanks skipped)
// and shuffles it so restarts do not always begin from the same exit.
func LoadProxyRing(path string) (*ProxyRing, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var proxies []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// Trim before validating: url.Parse accepts almost anything, so a
		// CRLF tail or a whitespace-only line would otherwise enter the
		// ring as a junk proxy.
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := url.Parse(line); err != nil {
			return nil, fmt.Errorf("bad proxy url %q: %w", line, err)
		}
		proxies = append(proxies, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(proxies) == 0 {
		return nil, fmt.Errorf("proxy file %s is empty", path)
	}

	random := rand.New(rand.NewSource(time.Now().UnixNano()))
	random.Shuffle(len(proxies), func(i, j int) {
		proxies[i], proxies[j] = proxies[j], proxies[i]
	})
	return &ProxyRing{proxies: proxies}, nil
}

// Next returns the next proxy in rotation.
func (r *ProxyRing) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.proxies[r.next]
	r.next = (r.next + 1) % len(r.proxies)
	return p
}

// Len reports how many proxies are loaded.
func (r *ProxyRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies)
}

// redactProxy strips credentials from a proxy URL for logging.
func redactProxy(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.Redacted()
}
