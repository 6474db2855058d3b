package vpdstore

import (
	"context"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
)

// DefaultLogLimit is how many recent adjustment entries are loaded with the config.
const DefaultLogLimit = 50

// Store persists the single VPD controller configuration.
type Store interface {
	GetOrCreate(ctx context.Context) (entities.VPDConfig, error)
	Save(ctx context.Context, cfg *entities.VPDConfig) error
}

func copyConfig(c entities.VPDConfig) entities.VPDConfig {
	out := c
	if c.Log != nil {
		out.Log = append([]entities.VPDLogEntry(nil), c.Log...)
	}
	if c.Stats.LastAdjustment != nil {
		t := *c.Stats.LastAdjustment
		out.Stats.LastAdjustment = &t
	}
	return out
}
