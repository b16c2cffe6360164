package middleware

import (
	"sync"
	"time"
)

// RateLimiter implements a simple in-memory fixed window rate limiter
// keyed by player and by client IP
type RateLimiter struct {
	playerLimits map[PlayerKey]*windowLimit
	ipLimits     map[string]*windowLimit
	mu           sync.RWMutex

	playerMaxRequests int
	ipMaxRequests     int
	window            time.Duration
	now               func() time.Time
	stop              chan struct{}
	stopOnce          sync.Once
}

// PlayerKey scopes a player budget to the client IP that spends it.
type PlayerKey struct {
	IP       string
	PlayerID uint
}

type windowLimit struct {
	requests  int
	resetTime time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(playerMaxRequests, ipMaxRequests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		playerLimits:      make(map[PlayerKey]*windowLimit),
		ipLimits:          make(map[string]*windowLimit),
		playerMaxRequests: playerMaxRequests,
		ipMaxRequests:     ipMaxRequests,
		window:            window,
		now:               time.Now,
		stop:              make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// CheckPlayerLimit checks if a player has exceeded the rate limit
func (rl *RateLimiter) CheckPlayerLimit(key PlayerKey) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	// Get or create player limit
	limit, exists := rl.playerLimits[key]
	if !exists || now.After(limit.resetTime) {
		rl.playerLimits[key] = &windowLimit{
			requests:  1,
			resetTime: now.Add(rl.window),
		}
		return true
	}

	// Check if limit exceeded
	if limit.requests >= rl.playerMaxRequests {
		return false
	}

	// Increment counter
	limit.requests++
	return true
}

// CheckIPLimit checks if IP has exceeded rate limit
func (rl *RateLimiter) CheckIPLimit(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	// Get or create IP limit
	limit, exists := rl.ipLimits[ip]
	if !exists || now.After(limit.resetTime) {
		rl.ipLimits[ip] = &windowLimit{
			requests:  1,
			resetTime: now.Add(rl.window),
		}
		return true
	}

	// Check if limit exceeded
	if limit.requests >= rl.ipMaxRequests {
		return false
	}

	// Increment counter
	limit.requests++
	return true
}

// GetPlayerRemaining returns remaining requests for a player
func (rl *RateLimiter) GetPlayerRemaining(key PlayerKey) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	limit, exists := rl.playerLimits[key]
	if !exists || rl.now().After(limit.resetTime) {
		return rl.playerMaxRequests
	}

	remaining := rl.playerMaxRequests - limit.requests
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetIPRemaining returns remaining requests for IP
func (rl *RateLimiter) GetIPRemaining(ip string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	limit, exists := rl.ipLimits[ip]
	if !exists || rl.now().After(limit.resetTime) {
		return rl.ipMaxRequests
	}

	remaining := rl.ipMaxRequests - limit.requests
	if remaining < 0 {
		return 0
	}
	return remaining
}

// cleanup removes expired entries until Stop is called
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()

	for key, limit := range rl.playerLimits {
		if now.After(limit.resetTime) {
			delete(rl.playerLimits, key)
		}
	}
	for ip, limit := range rl.ipLimits {
		if now.After(limit.resetTime) {
			delete(rl.ipLimits, ip)
		}
	}
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Reset clears all rate limits (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.playerLimits = make(map[PlayerKey]*windowLimit)
	rl.ipLimits = make(map[string]*windowLimit)
}
