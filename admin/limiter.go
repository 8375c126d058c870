package admin

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	loginBurst      = 5
	loginRefill     = 12 * time.Second
	maxTrackedLogin = 4096
)

// loginLimiter throttles login attempts per client address.
type loginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (l *loginLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxTrackedLogin {
			clear(l.limiters)
		}
		lim = rate.NewLimiter(rate.Every(loginRefill), loginBurst)
		l.limiters[key] = lim
	}
	return lim.Allow()
}
