package chat

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/emergent-company/testmind/internal/config"
)

// TurnLimiter bounds chat turns per user. A zero rate disables it.
type TurnLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewTurnLimiter(cfg *config.Config) *TurnLimiter {
	l := &TurnLimiter{limiters: make(map[string]*rate.Limiter)}
	if cfg.RateLimit.ChatPerMinute > 0 {
		l.limit = rate.Limit(cfg.RateLimit.ChatPerMinute / 60)
		l.burst = max(cfg.RateLimit.ChatBurst, 1)
	}
	return l
}

// Allow reports whether userID may start another turn now.
func (l *TurnLimiter) Allow(userID string) bool {
	if l.limit == 0 {
		return true
	}
	return l.get(userID).Allow()
}

func (l *TurnLimiter) get(userID string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[userID]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// another request may have created it meanwhile
	if limiter, ok = l.limiters[userID]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(l.limit, l.burst)
	l.limiters[userID] = limiter
	return limiter
}
