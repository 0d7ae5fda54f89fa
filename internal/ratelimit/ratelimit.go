// File: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config holds rate limiting configuration
type Config struct {
	WindowSize    time.Duration // Time window for counting triggers
	MaxAttempts   int           // Maximum triggers per window
	CleanupPeriod time.Duration // How often to clean up old entries
	BanDuration   time.Duration // Cool-down after exceeding the limit; zero means until the window ends
}

// DefaultTriggerConfig limits how often one client can start suggestion calls.
// Every trigger may cost up to MaxAttempts upstream calls, so the budget is small.
func DefaultTriggerConfig(maxAttempts int, window time.Duration) *Config {
	return &Config{
		WindowSize:    window,
		MaxAttempts:   maxAttempts,
		CleanupPeriod: 2 * window,
	}
}

// attemptRecord tracks triggers for one client
type attemptRecord struct {
	Count     int
	FirstSeen time.Time
	BannedAt  *time.Time
}

// Info describes a client's standing after a call to Allow.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
	Banned     bool
}

// MemoryRateLimiter is a fixed-window limiter keyed by client identifier.
type MemoryRateLimiter struct {
	config   *Config
	now      func() time.Time
	attempts map[string]*attemptRecord
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryRateLimiter starts the limiter and its cleanup goroutine.
func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	return newMemoryRateLimiter(config, time.Now)
}

func newMemoryRateLimiter(config *Config, now func() time.Time) *MemoryRateLimiter {
	limiter := &MemoryRateLimiter{
		config:   config,
		now:      now,
		attempts: make(map[string]*attemptRecord),
		stopCh:   make(chan struct{}),
	}
	if config.CleanupPeriod > 0 {
		go limiter.cleanupLoop()
	}
	return limiter
}

// Allow counts one trigger for identifier and reports whether it may proceed.
func (rl *MemoryRateLimiter) Allow(identifier string) (bool, Info) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	record, exists := rl.attempts[identifier]
	if !exists || rl.expired(record, now) {
		rl.attempts[identifier] = &attemptRecord{Count: 1, FirstSeen: now}
		return true, rl.allowed(rl.config.MaxAttempts-1, now.Add(rl.config.WindowSize))
	}

	if record.BannedAt != nil {
		reset := rl.banEnd(record)
		return false, Info{Limit: rl.config.MaxAttempts, ResetTime: reset, RetryAfter: reset.Sub(now), Banned: rl.config.BanDuration > 0}
	}

	record.Count++
	if record.Count > rl.config.MaxAttempts {
		banTime := now
		record.BannedAt = &banTime
		reset := rl.banEnd(record)
		return false, Info{Limit: rl.config.MaxAttempts, ResetTime: reset, RetryAfter: reset.Sub(now), Banned: rl.config.BanDuration > 0}
	}
	return true, rl.allowed(rl.config.MaxAttempts-record.Count, record.FirstSeen.Add(rl.config.WindowSize))
}

func (rl *MemoryRateLimiter) allowed(remaining int, reset time.Time) Info {
	return Info{Allowed: true, Limit: rl.config.MaxAttempts, Remaining: remaining, ResetTime: reset}
}

func (rl *MemoryRateLimiter) banEnd(record *attemptRecord) time.Time {
	if rl.config.BanDuration > 0 {
		return record.BannedAt.Add(rl.config.BanDuration)
	}
	return record.FirstSeen.Add(rl.config.WindowSize)
}

func (rl *MemoryRateLimiter) expired(record *attemptRecord, now time.Time) bool {
	if record.BannedAt != nil {
		return !now.Before(rl.banEnd(record))
	}
	return now.Sub(record.FirstSeen) >= rl.config.WindowSize
}

// cleanupLoop periodically removes old records
func (rl *MemoryRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *MemoryRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for identifier, record := range rl.attempts {
		if rl.expired(record, now) {
			delete(rl.attempts, identifier)
		}
	}
}

// Close stops the cleanup goroutine
func (rl *MemoryRateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GetClientIP extracts the real client IP from request
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := parseFirstIP(forwarded); ip != "" {
			return ip
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// parseFirstIP extracts the first IP from a comma-separated list
func parseFirstIP(forwarded string) string {
	first, _, _ := strings.Cut(forwarded, ",")
	return strings.TrimSpace(first)
}
