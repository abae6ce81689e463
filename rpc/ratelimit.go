package rpc

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorIdleTTL = 5 * time.Minute

// RateLimit bounds requests per client address. A non-positive
// RequestsPerMinute disables limiting. Forwarding headers are honoured only
// on requests arriving from a TrustedProxies address or CIDR.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
	TrustedProxies    []string
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client.
type RateLimiter struct {
	limit    RateLimit
	proxies  []netip.Prefix
	mu       sync.Mutex
	visitors map[string]*rateEntry
	clockNow func() time.Time
}

// NewRateLimiter builds a limiter. Unparseable TrustedProxies entries are
// ignored; the daemon validates them when loading its config.
func NewRateLimiter(limit RateLimit) *RateLimiter {
	proxies := make([]netip.Prefix, 0, len(limit.TrustedProxies))
	for _, entry := range limit.TrustedProxies {
		if prefix, ok := parseProxy(entry); ok {
			proxies = append(proxies, prefix)
		}
	}
	return &RateLimiter{
		limit:    limit,
		proxies:  proxies,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
	}
}

func parseProxy(entry string) (netip.Prefix, bool) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		return prefix.Masked(), err == nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()), true
}

// Middleware rejects requests over the limit with a JSON-RPC error and HTTP
// 429.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r == nil || r.limit.RequestsPerMinute <= 0 {
			next.ServeHTTP(w, req)
			return
		}
		identifier := r.clientID(req)
		if !r.allow(identifier) {
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", identifier)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) allow(id string) bool {
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.visitors {
		if now.Sub(entry.lastSeen) > visitorIdleTTL {
			delete(r.visitors, key)
		}
	}
	entry, ok := r.visitors[id]
	if !ok {
		burst := r.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(r.limit.RequestsPerMinute/60.0), burst)}
		r.visitors[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// clientID keys the limiter by peer address, or by the forwarded client
// address when the peer is a trusted proxy.
func (r *RateLimiter) clientID(req *http.Request) string {
	peer := req.RemoteAddr
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		peer = host
	}
	if !r.trusted(peer) {
		return peer
	}
	if parsed := net.ParseIP(strings.TrimSpace(req.Header.Get("X-Real-IP"))); parsed != nil {
		return parsed.String()
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if parsed := net.ParseIP(first); parsed != nil {
			return parsed.String()
		}
	}
	return peer
}

func (r *RateLimiter) trusted(peer string) bool {
	if len(r.proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range r.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
