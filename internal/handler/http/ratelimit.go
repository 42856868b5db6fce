package httpapi

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"todo-planner/internal/logger"
)

// Limit allows Requests per Window for each client address.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Limits configures the per-IP request budgets.
type Limits struct {
	API      Limit
	Login    Limit
	Register Limit
}

func DefaultLimits() Limits {
	return Limits{
		API:      Limit{Requests: 100, Window: 15 * time.Minute},
		Login:    Limit{Requests: 5, Window: 15 * time.Minute},
		Register: Limit{Requests: 3, Window: time.Hour},
	}
}

// withDefaults fills every unset or non-positive limit from DefaultLimits.
func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	fill := func(got *Limit, want Limit) {
		if got.Requests <= 0 || got.Window <= 0 {
			*got = want
		}
	}
	fill(&l.API, def.API)
	fill(&l.Login, def.Login)
	fill(&l.Register, def.Register)
	return l
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client address. The bucket holds the
// whole budget and refills at Requests/Window.
type ipLimiter struct {
	name    string
	message string
	limit   Limit
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

func newIPLimiter(name string, limit Limit, message string) *ipLimiter {
	return &ipLimiter{
		name:     name,
		message:  message,
		limit:    limit,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[ip]
	if !ok {
		every := rate.Every(l.limit.Window / time.Duration(l.limit.Requests))
		v = &visitor{limiter: rate.NewLimiter(every, l.limit.Requests)}
		l.visitors[ip] = v
	}
	v.lastSeen = l.now()
	return v.limiter
}

// reserve reports how long the client has to wait; zero means the request may proceed.
func (l *ipLimiter) reserve(ip string) time.Duration {
	lim := l.get(ip)
	now := l.now()
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return l.limit.Window
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay
	}
	return 0
}

func (l *ipLimiter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wait := l.reserve(clientIP(r)); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			logger.Warn("rate limited", "limiter", l.name, "ip", clientIP(r), "path", r.URL.Path)
			writeMessage(w, http.StatusTooManyRequests, l.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sweep forgets clients idle for longer than the window; their buckets are full again by then.
func (l *ipLimiter) Sweep() int {
	cutoff := l.now().Add(-l.limit.Window)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
			removed++
		}
	}
	return removed
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// SweepLimiters drops idle rate limiter entries. It is meant to run as a scheduled job.
func (h *Handler) SweepLimiters(context.Context) error {
	removed := 0
	for _, l := range []*ipLimiter{h.apiLimiter, h.loginLimiter, h.registerLimiter} {
		removed += l.Sweep()
	}
	if removed > 0 {
		logger.Debug("rate limiter sweep", "removed", removed)
	}
	return nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
