package main

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client address. Buckets idle
// for longer than the prune age are dropped by Prune or RunCleanup.
type IPRateLimiter struct {
	ips map[string]*visitor
	mu  sync.Mutex
	r   rate.Limit
	b   int
	now func() time.Time
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*visitor),
		r:   r,
		b:   b,
		now: time.Now,
	}
}

func (l *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.ips[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.r, l.b)}
		l.ips[ip] = v
	}
	v.lastSeen = l.now()

	return v.limiter
}

// Prune drops buckets not used within idle and returns how many went
func (l *IPRateLimiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	pruned := 0
	for ip, v := range l.ips {
		if v.lastSeen.Before(cutoff) {
			delete(l.ips, ip)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of tracked clients
func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ips)
}

// RunCleanup prunes idle buckets every interval until stop is closed
func (l *IPRateLimiter) RunCleanup(interval, idle time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Prune(idle)
		case <-stop:
			return
		}
	}
}

// Middleware rejects requests over the client's budget with 429
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !l.GetLimiter(ip).Allow() {
			respondError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
