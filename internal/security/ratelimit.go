package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig holds configurable per-minute limits.
type RateLimitConfig struct {
	// AuthPerMin bounds authenticate calls per client key per minute.
	AuthPerMin int `yaml:"auth_per_min"`

	// IntentsPerMin bounds intent minting per session per minute.
	IntentsPerMin int `yaml:"intents_per_min"`
}

func rateLimitConfigDefaults() RateLimitConfig {
	return RateLimitConfig{
		AuthPerMin:    30,
		IntentsPerMin: 10,
	}
}

// Limit kinds accepted by RateLimiter.Allow.
const (
	LimitAuth   = "auth"
	LimitIntent = "intent"
)

// RateLimiter implements sliding window rate limiting, keyed by a
// caller-chosen subject (client IP, session id). Each (kind, subject)
// bucket tracks timestamps of recent events within its window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	limits  map[string]int
	now     func() time.Time
}

type bucketKey struct {
	kind    string
	subject string
}

type bucket struct {
	events []time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
// Zero-value fields in cfg are replaced with defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := rateLimitConfigDefaults()
	if cfg.AuthPerMin <= 0 {
		cfg.AuthPerMin = defaults.AuthPerMin
	}
	if cfg.IntentsPerMin <= 0 {
		cfg.IntentsPerMin = defaults.IntentsPerMin
	}

	return &RateLimiter{
		buckets: make(map[bucketKey]*bucket),
		limits: map[string]int{
			LimitAuth:   cfg.AuthPerMin,
			LimitIntent: cfg.IntentsPerMin,
		},
		now: time.Now,
	}
}

// Allow checks whether an event of the given kind is allowed for the
// subject. Returns nil if allowed, ErrRateLimited if the per-minute
// limit is exceeded. Unknown kinds carry no limit.
func (rl *RateLimiter) Allow(kind, subject string) error {
	limit, ok := rl.limits[kind]
	if !ok {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := bucketKey{kind, subject}
	b := rl.buckets[key]
	if b == nil {
		b = &bucket{}
		rl.buckets[key] = b
	}

	now := rl.now()
	b.evict(now)

	if len(b.events) >= limit {
		return ErrRateLimited
	}

	b.events = append(b.events, now)
	return nil
}

// Sweep drops buckets with no events in the last minute. Called
// periodically so idle subjects do not accumulate.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.evict(now)
		if len(b.events) == 0 {
			delete(rl.buckets, key)
		}
	}
}

// evict removes events outside the one-minute sliding window.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-time.Minute)
	// Events are chronologically ordered.
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
