package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLimiter: fixed window in-process, para desarrollo y tests.
// Misma semántica que RedisLimiter pero sin dependencia externa.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu   sync.Mutex
	hits map[string]int64

	// Now permite inyectar el reloj en tests.
	Now func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:    int64(max),
		Window: window,
		hits:   make(map[string]int64),
		Now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.Now().UTC()
	winStart := now.Truncate(l.Window)
	k := fmt.Sprintf("%s:%d", key, winStart.Unix())

	l.mu.Lock()
	l.hits[k]++
	hits := l.hits[k]
	// limpieza perezosa de la ventana anterior
	delete(l.hits, fmt.Sprintf("%s:%d", key, winStart.Add(-l.Window).Unix()))
	l.mu.Unlock()

	remaining := l.Max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits <= l.Max,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   winStart.Add(l.Window).Sub(now),
	}
	if !res.Allowed {
		res.RetryAfter = res.WindowTTL
	}
	return res, nil
}
