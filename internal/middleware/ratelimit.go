package middleware

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultMaxAttemptsPerMinute is the default limit on failed auth
	// attempts per client IP.
	DefaultMaxAttemptsPerMinute = 10

	// DefaultMaxTrackedIPs bounds the limiter's memory.
	DefaultMaxTrackedIPs = 10000

	cleanupInterval = time.Minute
	staleThreshold  = 5 * time.Minute
)

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles repeated authentication failures per client IP.
// IPs with no recorded failures pass Allow without consuming anything, so
// well-behaved clients never pay for the tracking.
type RateLimiter struct {
	mu            sync.Mutex
	entries       map[string]*ipEntry
	maxPerMinute  int
	maxTrackedIPs int
	cancel        context.CancelFunc
}

// NewRateLimiter creates a per-IP limiter allowing maxPerMinute failed
// attempts. Pass 0 to use DefaultMaxAttemptsPerMinute. A background
// goroutine drops IPs that stay quiet; Stop cancels it.
func NewRateLimiter(ctx context.Context, maxPerMinute int) *RateLimiter {
	if maxPerMinute <= 0 {
		maxPerMinute = DefaultMaxAttemptsPerMinute
	}
	ctx, cancel := context.WithCancel(ctx)
	rl := &RateLimiter{
		entries:       make(map[string]*ipEntry),
		maxPerMinute:  maxPerMinute,
		maxTrackedIPs: DefaultMaxTrackedIPs,
		cancel:        cancel,
	}
	go rl.cleanup(ctx)
	return rl
}

// Allow reports whether ip may make another auth attempt. IPs that have
// never failed are always allowed; tracked IPs consume a token.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[ip]
	if !ok {
		return true
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// RecordFailure charges ip with one failed auth attempt.
func (rl *RateLimiter) RecordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e := rl.getOrCreateEntryLocked(ip, time.Now())
	e.limiter.Allow()
}

func (rl *RateLimiter) getOrCreateEntryLocked(ip string, now time.Time) *ipEntry {
	e, ok := rl.entries[ip]
	if !ok {
		if len(rl.entries) >= rl.maxTrackedIPs {
			rl.evictOldestLocked()
		}
		r := rate.Limit(float64(rl.maxPerMinute) / 60.0)
		e = &ipEntry{
			limiter:  rate.NewLimiter(r, rl.maxPerMinute),
			lastSeen: now,
		}
		rl.entries[ip] = e
	}
	e.lastSeen = now
	return e
}

// Stop cancels the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.cancel()
}

func (rl *RateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.removeStale()
		}
	}
}

func (rl *RateLimiter) removeStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for ip, e := range rl.entries {
		if now.Sub(e.lastSeen) > staleThreshold {
			delete(rl.entries, ip)
		}
	}
}

func (rl *RateLimiter) evictOldestLocked() {
	var oldestIP string
	var oldestTime time.Time
	first := true
	for ip, e := range rl.entries {
		if first || e.lastSeen.Before(oldestTime) {
			oldestIP = ip
			oldestTime = e.lastSeen
			first = false
		}
	}
	if oldestIP != "" {
		delete(rl.entries, oldestIP)
	}
}

// ExtractIP strips the port from a RemoteAddr string.
func ExtractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
