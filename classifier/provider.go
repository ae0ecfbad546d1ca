package classifier

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"noshow-prediction-api/pipeline"
)

// Provider loads the forest artifact on first use and shares it afterwards.
// A failed load is not cached, so the next caller tries again; loading has no
// side effects beyond reading the file.
type Provider struct {
	path string
	load func(path string) (*Forest, error)

	mu     sync.Mutex
	forest *Forest
}

func NewProvider(path string) *Provider {
	return &Provider{path: path, load: LoadForest}
}

// NewStaticProvider wraps an already loaded forest.
func NewStaticProvider(f *Forest) *Provider {
	return &Provider{forest: f}
}

func (p *Provider) Model(ctx context.Context) (*Forest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.forest != nil {
		return p.forest, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := p.load(p.path)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("path", p.path).
		Str("version", f.Version()).
		Int("trees", len(f.Trees)).
		Int("features", f.NumFeatures()).
		Msg("model artifact loaded")
	p.forest = f
	return f, nil
}

// Loaded reports whether the artifact is currently in memory.
func (p *Provider) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forest != nil
}

// Pipeline adapts the provider to pipeline.ModelProvider. The explicit nil
// return keeps a failed load from surfacing as a non-nil interface.
func (p *Provider) Pipeline() pipeline.ModelProvider {
	return pipeline.ModelFunc(func(ctx context.Context) (pipeline.Classifier, error) {
		f, err := p.Model(ctx)
		if err != nil {
			return nil, err
		}
		return f, nil
	})
}
