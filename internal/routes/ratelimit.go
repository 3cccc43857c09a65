package routes

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// A limiter idle this long has refilled its bucket and can be dropped.
	limiterIdleTTL = 10 * time.Minute
	limiterSweep   = 5 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PostLimiter keeps one token bucket per user for content creation.
type PostLimiter struct {
	mu        sync.Mutex
	visitors  map[int]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewPostLimiter allows perMinute posts per user per minute. A non-positive
// value disables limiting.
func NewPostLimiter(perMinute int) *PostLimiter {
	if perMinute <= 0 {
		return &PostLimiter{limit: rate.Inf}
	}
	return &PostLimiter{
		visitors:  make(map[int]*visitor),
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     perMinute,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *PostLimiter) Allow(userID int) bool {
	if l.limit == rate.Inf {
		return true
	}
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= limiterSweep {
		l.evictIdle(now)
	}
	v, ok := l.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[userID] = v
	}
	v.lastSeen = now
	l.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// evictIdle drops the limiters of users who haven't posted lately.
// l.mu must be held.
func (l *PostLimiter) evictIdle(now time.Time) {
	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(l.visitors, id)
		}
	}
	l.lastSweep = now
}

// LimitPosts rejects POSTs of a user over its posting rate. It must run
// after the user is loaded.
func (routes *Routes) LimitPosts(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userH := GetUserH(r)
		if r.Method == http.MethodPost && userH != nil && !routes.limiter.Allow(userH.ID()) {
			routes.HandleErr(w, r, &ErrTooManyRequests{})
			return
		}
		next.ServeHTTP(w, r)
	})
}
