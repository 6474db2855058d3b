package vpdstore

import (
	"context"

	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
)

// Guarded fails fast while the underlying store keeps erroring.
type Guarded struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

func WithBreaker(inner Store, cb *gobreaker.CircuitBreaker) *Guarded {
	return &Guarded{inner: inner, cb: cb}
}

func (g *Guarded) GetOrCreate(ctx context.Context) (entities.VPDConfig, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.GetOrCreate(ctx)
	})
	if err != nil {
		return entities.VPDConfig{}, err
	}
	return res.(entities.VPDConfig), nil
}

func (g *Guarded) Save(ctx context.Context, cfg *entities.VPDConfig) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.inner.Save(ctx, cfg)
	})
	return err
}
