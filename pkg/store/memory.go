package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/internal/types"
)

type memoryEntry struct {
	doc    models.Document
	vector []float32
}

// MemoryStore is an in-process index used when no database is configured.
// It is rebuilt from the corpus on every start.
type MemoryStore struct {
	embedder types.Embedder
	mu       sync.RWMutex
	entries  []memoryEntry
}

func NewMemoryStore(embedder types.Embedder) (*MemoryStore, error) {
	if embedder == nil {
		return nil, errors.New("memory store requires an embedder")
	}
	return &MemoryStore{embedder: embedder}, nil
}

func (m *MemoryStore) Persistent() bool { return false }

func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MemoryStore) Store(ctx context.Context, docs []models.Document) error {
	entries, err := m.embed(ctx, docs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = append(m.entries, entries...)
	m.mu.Unlock()
	return nil
}

// Replace embeds docs before touching the index; a failure leaves the
// current entries untouched.
func (m *MemoryStore) Replace(ctx context.Context, docs []models.Document) error {
	entries, err := m.embed(ctx, docs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) embed(ctx context.Context, docs []models.Document) ([]memoryEntry, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = SanitizeUTF8(doc.Content)
	}
	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	entries := make([]memoryEntry, len(docs))
	for i, doc := range docs {
		doc.Source = sourceOr(doc.Source)
		entries[i] = memoryEntry{doc: doc, vector: vectors[i]}
	}
	return entries, nil
}

func (m *MemoryStore) SimilaritySearch(ctx context.Context, query string, k int) ([]any, error) {
	q, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	type scored struct {
		doc   models.Document
		score float64
	}
	ranked := make([]scored, len(m.entries))
	for i, e := range m.entries {
		ranked[i] = scored{doc: e.doc, score: cosine(q, e.vector)}
	}
	m.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if k < len(ranked) {
		ranked = ranked[:max(k, 0)]
	}

	items := make([]any, len(ranked))
	for i, r := range ranked {
		items[i] = r.doc
	}
	return items, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
