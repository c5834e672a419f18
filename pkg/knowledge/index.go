package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/internal/types"
	"github.com/xhad/agrisaathi/pkg/logger"
)

const PlaceholderContent = "No knowledge base available"

var ErrNoIndex = errors.New("knowledge index unavailable")

type BuilderConfig struct {
	Loader CorpusLoader
	Store  types.DocumentStore
	// Rebuild ignores a populated persistent store.
	Rebuild bool
	Logger  logger.Logger
}

// Builder produces the process-wide index: it reuses a populated persistent
// store, otherwise indexes the corpus, otherwise serves a placeholder.
type Builder struct {
	config BuilderConfig
	log    logger.Logger
}

func NewBuilder(config BuilderConfig) *Builder {
	return &Builder{config: config, log: logger.Or(config.Logger)}
}

func (b *Builder) Build(ctx context.Context) (types.Index, error) {
	s := b.config.Store
	if s == nil || b.config.Loader == nil {
		return nil, ErrNoIndex
	}

	if s.Persistent() && !b.config.Rebuild {
		n, err := s.Count(ctx)
		switch {
		case err != nil:
			b.log.Warn("persisted index unreadable, rebuilding", "err", err)
		case n > 0:
			b.log.Info("reusing persisted index", "documents", n)
			return s, nil
		default:
			b.log.Info("persisted index empty, building")
		}
	}

	docs, err := b.config.Loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	if len(docs) == 0 {
		b.log.Warn("no documents loaded, using placeholder index")
		return placeholderIndex{}, nil
	}

	if err := s.Replace(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to index corpus: %w", err)
	}
	b.log.Info("indexed corpus", "documents", len(docs), "persistent", s.Persistent())
	return s, nil
}

// placeholderIndex holds the single "no knowledge" document. It is never
// written to a persistent store.
type placeholderIndex struct{}

func (placeholderIndex) SimilaritySearch(_ context.Context, _ string, k int) ([]any, error) {
	if k <= 0 {
		return nil, nil
	}
	return []any{models.Document{
		ID:      "placeholder",
		Source:  models.SourceSystem,
		Content: PlaceholderContent,
	}}, nil
}

// Lazy defers Build until the first search. A successful index is kept for
// the life of the process; a failed build is retried on the next search.
type Lazy struct {
	builder *Builder
	mu      sync.Mutex
	index   types.Index
}

func NewLazy(builder *Builder) *Lazy {
	return &Lazy{builder: builder}
}

func (l *Lazy) SimilaritySearch(ctx context.Context, query string, k int) ([]any, error) {
	index, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return index.SimilaritySearch(ctx, query, k)
}

func (l *Lazy) get(ctx context.Context) (types.Index, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index != nil {
		return l.index, nil
	}

	// detached so one caller's cancellation cannot fail a build others wait on
	index, err := l.builder.Build(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}
	l.index = index
	return index, nil
}
