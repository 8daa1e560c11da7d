package collector

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Registry holds the sources available on this host.
type Registry struct {
	sources []Source
	byName  map[string]Source
	logger  *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sources: make([]Source, 0),
		byName:  make(map[string]Source),
		logger:  logger,
	}
}

// Register adds a source if it is available on the current host.
// Unavailable sources are logged and skipped.
func (r *Registry) Register(s Source) {
	if !s.IsAvailable() {
		r.logger.Warn("Source not available, skipping", zap.String("name", s.Name()))
		return
	}
	if _, dup := r.byName[s.Name()]; dup {
		r.logger.Warn("Source already registered, skipping", zap.String("name", s.Name()))
		return
	}
	r.sources = append(r.sources, s)
	r.byName[s.Name()] = s
	r.logger.Info("Registered source", zap.String("name", s.Name()))
}

// Collect takes one sample from the named source.
func (r *Registry) Collect(ctx context.Context, name string) (interface{}, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("source %q is not registered", name)
	}
	return s.Collect(ctx)
}

// CollectAll samples every registered source and returns name -> sample.
// Sources run one after another because several of them share a provider
// handle. A failing source is logged and left out of the result; the
// failures are also returned combined.
func (r *Registry) CollectAll(ctx context.Context) (map[string]interface{}, error) {
	results := make(map[string]interface{}, len(r.sources))
	var errs error
	for _, s := range r.sources {
		data, err := s.Collect(ctx)
		if err != nil {
			r.logger.Error("Collection failed",
				zap.String("source", s.Name()),
				zap.String("class", ErrorClass(err)),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		results[s.Name()] = data
	}
	return results, errs
}

// Sources returns a copy of all registered sources.
func (r *Registry) Sources() []Source {
	result := make([]Source, len(r.sources))
	copy(result, r.sources)
	return result
}
