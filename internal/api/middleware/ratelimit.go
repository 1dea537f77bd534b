package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how fast a single client may drive the control
// API. Call operations go straight onto the tracker loop, so the limit
// protects the loop from a misbehaving client more than the HTTP layer.
type RateLimitConfig struct {
	// Rate is the sustained requests per second allowed per client IP.
	Rate rate.Limit
	// Burst is how many requests a client may issue back to back.
	Burst int
	// SweepInterval is how often idle clients are evicted.
	SweepInterval time.Duration
	// IdleAfter is how long a client may be silent before eviction.
	IdleAfter time.Duration
}

// DefaultRateLimitConfig allows 20 req/s with a burst of 40, far above
// what a human operator or a dashboard poller produces.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:          rate.Limit(20),
		Burst:         40,
		SweepInterval: 5 * time.Minute,
		IdleAfter:     10 * time.Minute,
	}
}

type rateClient struct {
	lim  *rate.Limiter
	seen time.Time
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rateClient
	cfg     RateLimitConfig
	stop    chan struct{}
}

// NewIPRateLimiter starts the limiter and its background sweep.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		clients: make(map[string]*rateClient),
		cfg:     cfg,
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Allow reports whether a request from ip fits the budget.
func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	c := rl.clients[ip]
	if c == nil {
		c = &rateClient{lim: rate.NewLimiter(rl.cfg.Rate, rl.cfg.Burst)}
		rl.clients[ip] = c
	}
	c.seen = time.Now()
	rl.mu.Unlock()

	return c.lim.Allow()
}

// Stop ends the background sweep.
func (rl *IPRateLimiter) Stop() {
	close(rl.stop)
}

func (rl *IPRateLimiter) sweepLoop() {
	tick := time.NewTicker(rl.cfg.SweepInterval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// sweep drops clients not seen within IdleAfter.
func (rl *IPRateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.cfg.IdleAfter)
	evicted := 0
	for ip, c := range rl.clients {
		if c.seen.Before(cutoff) {
			delete(rl.clients, ip)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Debug("rate limiter sweep", "evicted", evicted, "active", len(rl.clients))
	}
}

// RateLimit throttles requests by client IP, answering 429 with a
// Retry-After once the budget is spent.
func RateLimit(limiter *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiter.Allow(ip) {
				slog.Warn("control request throttled",
					"ip", ip,
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", "1")
				writeAuthError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr. chi's RealIP runs earlier
// and rewrites RemoteAddr when the server sits behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
