package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sievert/ingreso/internal/core"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingreso_session_lookups_total",
		Help: "Session store lookups by backend and result.",
	}, []string{"backend", "result"})
)

// Memory is an in-process session store. The least recently used session
// is evicted once maxEntries is reached, and every session expires ttl
// after its last save.
type Memory struct {
	cache *expirable.LRU[string, []byte]
}

// NewMemory creates a Memory store.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	return &Memory{cache: expirable.NewLRU[string, []byte](maxEntries, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, id string) (*core.Session, error) {
	data, ok := m.cache.Get(id)
	if !ok {
		lookupsTotal.WithLabelValues("memory", "miss").Inc()
		return nil, core.ErrSessionNotFound
	}
	lookupsTotal.WithLabelValues("memory", "hit").Inc()
	return decode(data)
}

func (m *Memory) Save(_ context.Context, s *core.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	m.cache.Add(s.ID, data)
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.cache.Remove(id)
	return nil
}

// Len reports how many sessions are held.
func (m *Memory) Len() int { return m.cache.Len() }

func decode(data []byte) (*core.Session, error) {
	var s core.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}
