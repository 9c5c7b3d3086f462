package nlp

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultSubmitsPerMinute is used when no limit is configured.
	DefaultSubmitsPerMinute = 20
	// defaultBurst lets a user send a few quick messages in a row.
	defaultBurst = 5
)

// RateLimiter throttles submissions per identity with a token bucket.
// It is safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewRateLimiter allows perMinute submissions per identity on average.
// perMinute <= 0 selects DefaultSubmitsPerMinute.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultSubmitsPerMinute
	}
	burst := defaultBurst
	if perMinute < burst {
		burst = perMinute
	}
	return &RateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether key may submit now, consuming a token if so.
func (r *RateLimiter) Allow(key string) bool {
	return r.allowAt(key, time.Now())
}

func (r *RateLimiter) allowAt(key string, now time.Time) bool {
	r.mu.Lock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = l
	}
	r.mu.Unlock()
	return l.AllowN(now, 1)
}

// Reset forgets all per-identity state.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters = make(map[string]*rate.Limiter)
}
