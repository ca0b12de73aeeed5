package infrastructure

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MessageRateLimiter keeps one token bucket per remote sender.
type MessageRateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*senderBucket
	rate        rate.Limit
	burst       int
	cleanupTick time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

type senderBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMessageRateLimiter creates a rate limiter with specified rate and burst
// perSecond: messages per second allowed
// burst: maximum burst capacity
func NewMessageRateLimiter(perSecond float64, burst int) *MessageRateLimiter {
	rl := &MessageRateLimiter{
		buckets:     make(map[string]*senderBucket),
		rate:        rate.Limit(perSecond),
		burst:       burst,
		cleanupTick: 5 * time.Minute,
		stop:        make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func (rl *MessageRateLimiter) bucket(key string) *senderBucket {
	b, exists := rl.buckets[key]
	if !exists {
		b = &senderBucket{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b
}

// Allow checks if the sender can send a message (consumes 1 token if allowed)
func (rl *MessageRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.bucket(key).limiter.Allow()
}

// WaitTime returns how long to wait before next message is allowed
func (rl *MessageRateLimiter) WaitTime(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists || rl.rate <= 0 {
		return 0
	}
	tokens := b.limiter.Tokens()
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) / float64(rl.rate) * float64(time.Second))
}

// Reset removes rate limit state for a sender
func (rl *MessageRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// Close stops the cleanup goroutine.
func (rl *MessageRateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanup removes stale buckets periodically
func (rl *MessageRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupTick)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, b := range rl.buckets {
				// Remove buckets not used in last 10 minutes
				if now.Sub(b.lastSeen) > 10*time.Minute {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// GetStats returns rate limiter statistics
func (rl *MessageRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"active_senders": len(rl.buckets),
		"rate":           float64(rl.rate),
		"burst":          rl.burst,
	}
}
