package vpdstore

import (
	"context"
	"sync"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
)

// MemoryStore keeps the config in process memory. Used when no database path is set.
type MemoryStore struct {
	mu       sync.Mutex
	cfg      *entities.VPDConfig
	nextLog  uint
	logLimit int
}

func NewMemoryStore(logLimit int) *MemoryStore {
	if logLimit <= 0 {
		logLimit = DefaultLogLimit
	}
	return &MemoryStore{logLimit: logLimit, nextLog: 1}
}

func (m *MemoryStore) GetOrCreate(context.Context) (entities.VPDConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		cfg := entities.DefaultVPDConfig()
		cfg.ID = 1
		m.cfg = &cfg
	}
	return copyConfig(*m.cfg), nil
}

func (m *MemoryStore) Save(_ context.Context, cfg *entities.VPDConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.ID == 0 {
		cfg.ID = 1
	}
	for i := range cfg.Log {
		if cfg.Log[i].ID == 0 {
			cfg.Log[i].ID = m.nextLog
			cfg.Log[i].ConfigID = cfg.ID
			m.nextLog++
		}
	}
	c := copyConfig(*cfg)
	if n := len(c.Log); n > m.logLimit {
		c.Log = c.Log[n-m.logLimit:]
	}
	m.cfg = &c
	return nil
}
