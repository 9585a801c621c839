package server

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// LimitReason describes why a connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits guards connection admission with three checks: a global
// concurrent-connection cap, a per-IP concurrent cap, and a per-IP token
// bucket limiting the rate of new connections.
type ConnectionLimits struct {
	current atomic.Int64
	max     int64

	mu       sync.Mutex
	perIP    map[string]int
	maxPerIP int
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewConnectionLimits creates a combined limiter.
// globalMax caps concurrent connections per instance, perIPMax per source IP,
// and perSecond/burst configure the per-IP token bucket for new connections.
func NewConnectionLimits(globalMax int64, perIPMax int, perSecond float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		max:      globalMax,
		perIP:    make(map[string]int),
		maxPerIP: perIPMax,
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

// Acquire attempts to admit a connection from the given IP.
// Returns true and an empty reason on success, otherwise false and the limit
// that rejected it. A successful Acquire must be paired with Release.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.allowRate(ip) {
		return false, LimitReasonRate
	}

	for {
		current := l.current.Load()
		if current >= l.max {
			return false, LimitReasonGlobal
		}
		if l.current.CompareAndSwap(current, current+1) {
			break
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perIP[ip] >= l.maxPerIP {
		l.current.Add(-1)
		return false, LimitReasonPerIP
	}
	l.perIP[ip]++
	return true, ""
}

// Release frees the slots acquired for the given IP.
func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	if count := l.perIP[ip]; count > 1 {
		l.perIP[ip] = count - 1
	} else if count == 1 {
		delete(l.perIP, ip)
	}
	l.mu.Unlock()

	l.current.Add(-1)
}

// Active returns the current number of admitted connections.
func (l *ConnectionLimits) Active() int64 {
	return l.current.Load()
}

// UniqueIPs returns the number of distinct IPs with admitted connections.
func (l *ConnectionLimits) UniqueIPs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perIP)
}

func (l *ConnectionLimits) allowRate(ip string) bool {
	l.mu.Lock()
	limiter, exists := l.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[ip] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
