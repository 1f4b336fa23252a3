package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter counts requests per client in fixed windows.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]windowCount
	swept   time.Time
}

type windowCount struct {
	n     int
	reset time.Time
}

// NewLimiter allows limit requests per window. A limit below 1 allows
// everything.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{limit: limit, window: window, now: time.Now, clients: make(map[string]windowCount)}
}

// Allow records a request from key. When the window is exhausted it
// reports how long until the next one starts.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if l.limit < 1 {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) >= l.window {
		for k, c := range l.clients {
			if !now.Before(c.reset) {
				delete(l.clients, k)
			}
		}
		l.swept = now
	}

	c, ok := l.clients[key]
	if !ok || !now.Before(c.reset) {
		c = windowCount{reset: now.Add(l.window)}
	}
	if c.n >= l.limit {
		return false, c.reset.Sub(now)
	}
	c.n++
	l.clients[key] = c
	return true, 0
}

// Handler rejects clients over the limit with 429 and a Retry-After hint.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	if l.limit < 1 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.Allow(ClientIP(r))
		if !ok {
			secs := int((wait + time.Second - 1) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit is NewLimiter(limit, per).Handler in chi's middleware shape.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return NewLimiter(limit, per).Handler
}
