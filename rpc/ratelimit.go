package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"recycless/observability"
)

const visitorTTL = 5 * time.Minute

// RateLimit bounds requests per client. A non-positive RequestsPerMinute
// disables limiting. Forwarding headers are only honoured for requests whose
// peer address is listed in TrustedProxies.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
	TrustedProxies    []string
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	limit    RateLimit
	trusted  map[string]struct{}
	mu       sync.Mutex
	visitors map[string]*visitor
	clockNow func() time.Time
}

func NewRateLimiter(limit RateLimit) *RateLimiter {
	trusted := make(map[string]struct{}, len(limit.TrustedProxies))
	for _, proxy := range limit.TrustedProxies {
		if ip := canonicalIP(proxy); ip != "" {
			trusted[ip] = struct{}{}
		}
	}
	return &RateLimiter{
		limit:    limit,
		trusted:  trusted,
		visitors: make(map[string]*visitor),
		clockNow: time.Now,
	}
}

// Middleware rejects requests from clients that exhausted their budget with a
// JSON-RPC error and HTTP 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l == nil || l.limit.RequestsPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		source := l.clientSource(r)
		if !l.allow(source) {
			observability.Recycle().RecordThrottle()
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", source)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(source string) bool {
	if source == "" {
		source = "unknown"
	}
	now := l.clockNow()
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, id)
		}
	}
	v, ok := l.visitors[source]
	if !ok {
		burst := l.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.limit.RequestsPerMinute/60.0), burst)}
		l.visitors[source] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// clientSource identifies the caller by peer address, or by the forwarded
// client address when the peer is a trusted proxy.
func (l *RateLimiter) clientSource(r *http.Request) string {
	peer := canonicalIP(r.RemoteAddr)
	if peer == "" {
		peer = r.RemoteAddr
	}
	if _, ok := l.trusted[peer]; !ok {
		return peer
	}
	if ip := canonicalIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := canonicalIP(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}
	return peer
}

// canonicalIP strips an optional port and returns the normalised address, or
// "" when value is not an IP.
func canonicalIP(value string) string {
	value = strings.TrimSpace(value)
	if host, _, err := net.SplitHostPort(value); err == nil {
		value = host
	}
	ip := net.ParseIP(value)
	if ip == nil {
		return ""
	}
	return ip.String()
}
