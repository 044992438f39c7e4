package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"wiki-graphql/internal/observability"
)

// RateLimitConfig configures request throttling. The global bucket is shared
// by every caller; the client buckets are keyed by remote IP and forgotten
// after ClientExpiry without traffic.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int

	ClientRPS    float64
	ClientBurst  int
	ClientExpiry time.Duration

	Metrics *observability.GraphQLMetrics
}

func (c RateLimitConfig) perClient() bool {
	return c.ClientRPS > 0 && c.ClientBurst > 0
}

// RateLimitMiddleware rejects requests over the configured rates with 429.
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	global := cfg.Enabled && cfg.RPS > 0 && cfg.Burst > 0
	if !global && !cfg.perClient() {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	var bucket *tokenBucket
	if global {
		bucket = newTokenBucket(cfg.RPS, cfg.Burst)
	}
	var clients *clientBuckets
	if cfg.perClient() {
		clients = newClientBuckets(cfg.ClientRPS, cfg.ClientBurst, cfg.ClientExpiry)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if clients != nil && !clients.allow(clientKey(r)) {
				rejectRateLimited(w, r, cfg.Metrics, "client_rate_limit", clients.retryAfter())
				return
			}
			if bucket != nil && !bucket.allow() {
				rejectRateLimited(w, r, cfg.Metrics, "rate_limit", bucket.retryAfter())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, metrics *observability.GraphQLMetrics, reason string, retryAfter int) {
	metrics.RecordRejected(r.Context(), reason)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeGraphQLError(w, http.StatusTooManyRequests, "rate limit exceeded", reason)
}

// clientKey is the caller's IP without the port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type clientBuckets struct {
	mu      sync.Mutex
	buckets *cache.Cache
	rps     float64
	burst   int
}

func newClientBuckets(rps float64, burst int, expiry time.Duration) *clientBuckets {
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	return &clientBuckets{
		buckets: cache.New(expiry, 2*expiry),
		rps:     rps,
		burst:   burst,
	}
}

func (c *clientBuckets) allow(key string) bool {
	c.mu.Lock()
	bucket, ok := c.buckets.Get(key)
	if !ok {
		bucket = newTokenBucket(c.rps, c.burst)
	}
	// Refresh the expiry on every request so active clients keep their state.
	c.buckets.SetDefault(key, bucket)
	c.mu.Unlock()
	return bucket.(*tokenBucket).allow()
}

func (c *clientBuckets) retryAfter() int {
	return secondsPerToken(c.rps)
}

type tokenBucket struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

func newTokenBucket(rps float64, burst int) *tokenBucket {
	return &tokenBucket{
		rate:   rps,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.burst, b.tokens+elapsed*b.rate)
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (b *tokenBucket) retryAfter() int {
	return secondsPerToken(b.rate)
}

// secondsPerToken rounds the refill interval up to whole seconds, minimum 1.
func secondsPerToken(rps float64) int {
	if rps >= 1 || rps <= 0 {
		return 1
	}
	secs := int(1 / rps)
	if float64(secs) < 1/rps {
		secs++
	}
	return secs
}
