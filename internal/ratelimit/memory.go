package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count     int
	windowEnd time.Time
}

// Memory is a process-local limiter. Counts are not shared between replicas.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*bucket
	now     func() time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  window,
		clients: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.clients[key]
	if !ok || !now.Before(b.windowEnd) {
		m.clients[key] = &bucket{count: 1, windowEnd: now.Add(m.window)}
		m.sweep(now)
		return true, 0, nil
	}

	if b.count >= m.limit {
		return false, b.windowEnd.Sub(now), nil
	}

	b.count++
	return true, 0, nil
}

// sweep drops expired buckets once the map has grown, so idle keys do not
// accumulate forever.
func (m *Memory) sweep(now time.Time) {
	if len(m.clients) < 1024 {
		return
	}
	for k, b := range m.clients {
		if !now.Before(b.windowEnd) {
			delete(m.clients, k)
		}
	}
}
