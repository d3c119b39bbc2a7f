// Package registry looks up live per-model configuration.
package registry

import (
	"context"
	"errors"

	"github.com/erg0nix/ctxmeter/internal/config"
)

var (
	ErrNotFound      = errors.New("registry: model not found")
	ErrNoContextSize = errors.New("registry: model declares no context size")
)

// Model is the subset of a model's live configuration the counter needs.
type Model struct {
	ID          string
	ContextSize int
}

type Registry interface {
	Lookup(ctx context.Context, id string) (Model, error)
}

// Static serves models declared in the config file.
type Static struct {
	models map[string]Model
}

func NewStatic(models []config.RegistryModel) *Static {
	static := &Static{models: make(map[string]Model, len(models))}
	for _, model := range models {
		static.models[model.ID] = Model{ID: model.ID, ContextSize: model.NumCtx}
	}
	return static
}

func (s *Static) Lookup(_ context.Context, id string) (Model, error) {
	model, ok := s.models[id]
	if !ok {
		return Model{}, ErrNotFound
	}
	return model, nil
}

// Chain asks each registry in order and returns the first answer with a context size.
type Chain []Registry

func (c Chain) Lookup(ctx context.Context, id string) (Model, error) {
	var errs []error

	for _, registry := range c {
		if registry == nil {
			continue
		}

		model, err := registry.Lookup(ctx, id)
		if err == nil && model.ContextSize > 0 {
			return model, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return Model{}, errors.Join(append([]error{ErrNotFound}, errs...)...)
	}

	return Model{}, ErrNotFound
}

// FromConfig builds the registry chain described by cfg: static entries first, then the HTTP
// endpoint when one is configured.
func FromConfig(cfg config.RegistryConfig) Registry {
	chain := Chain{NewStatic(cfg.Models)}

	if cfg.Endpoint != "" {
		chain = append(chain, NewHTTP(HTTPConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Timeout:  cfg.Timeout(),
		}))
	}

	return chain
}
