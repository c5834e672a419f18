package knowledge_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/pkg/knowledge"
	"github.com/xhad/agrisaathi/pkg/logger"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_crops.json", `[{"crop": "गेहूं", "season": "rabi"}, {"crop": "rice & paddy"}]`)
	writeFile(t, dir, "a_scheme.json", `{"scheme": "PM-KISAN", "amount": 6000}`)
	writeFile(t, dir, "broken.json", `{"crop": `)
	writeFile(t, dir, "notes.txt", `ignored`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o755))

	docs, err := knowledge.NewLoader(dir, logger.Discard()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "a_scheme.json", docs[0].Source)
	assert.Equal(t, `{"amount":6000,"scheme":"PM-KISAN"}`, docs[0].Content)

	assert.Equal(t, "b_crops.json", docs[1].Source)
	assert.Equal(t, `{"crop":"गेहूं","season":"rabi"}`, docs[1].Content)
	assert.Equal(t, `{"crop":"rice & paddy"}`, docs[2].Content)
	assert.NotEqual(t, docs[1].ID, docs[2].ID)
}

func TestLoaderMissingDir(t *testing.T) {
	docs, err := knowledge.NewLoader(filepath.Join(t.TempDir(), "absent"), logger.Discard()).Load(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, docs)
}

type staticLoader struct {
	docs []models.Document
	err  error
}

func (s staticLoader) Load(context.Context) ([]models.Document, error) { return s.docs, s.err }

type fakeStore struct {
	persistent bool
	count      int
	countErr   error
	storeErr   error
	stored     []models.Document
	replaces   int
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ string, k int) ([]any, error) {
	var out []any
	for i, d := range f.stored {
		if i == k {
			break
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeStore) Store(_ context.Context, docs []models.Document) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.stored = append(f.stored, docs...)
	return nil
}

func (f *fakeStore) Replace(_ context.Context, docs []models.Document) error {
	f.replaces++
	if f.storeErr != nil {
		return f.storeErr
	}
	f.stored = append([]models.Document(nil), docs...)
	return nil
}

func (f *fakeStore) Count(context.Context) (int, error) { return f.count, f.countErr }
func (f *fakeStore) Persistent() bool                   { return f.persistent }

func TestBuilder(t *testing.T) {
	corpus := []models.Document{{ID: "1", Source: "crops.json", Content: `{"crop":"wheat"}`}}

	tests := []struct {
		name       string
		store      *fakeStore
		loader     staticLoader
		rebuild    bool
		wantStored int
		wantSource string
		replaced   bool
		wantErr    bool
	}{
		{
			name:       "reuses populated persistent index",
			store:      &fakeStore{persistent: true, count: 42},
			loader:     staticLoader{docs: corpus},
			wantStored: 0,
		},
		{
			name:       "rebuilds when count fails",
			store:      &fakeStore{persistent: true, countErr: errors.New("relation does not exist")},
			loader:     staticLoader{docs: corpus},
			wantStored: 1,
			wantSource: "crops.json",
			replaced:   true,
		},
		{
			name:       "rebuild flag ignores populated index",
			store:      &fakeStore{persistent: true, count: 3},
			loader:     staticLoader{docs: corpus},
			rebuild:    true,
			wantStored: 1,
			wantSource: "crops.json",
			replaced:   true,
		},
		{
			name:       "empty corpus uses placeholder and persists nothing",
			store:      &fakeStore{persistent: true},
			loader:     staticLoader{},
			wantStored: 0,
			wantSource: models.SourceSystem,
		},
		{
			name:    "loader failure",
			store:   &fakeStore{},
			loader:  staticLoader{err: errors.New("disk")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := knowledge.NewBuilder(knowledge.BuilderConfig{
				Loader:  tt.loader,
				Store:   tt.store,
				Rebuild: tt.rebuild,
				Logger:  logger.Discard(),
			})

			index, err := b.Build(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, tt.store.stored, tt.wantStored)
			assert.Equal(t, tt.replaced, tt.store.replaces > 0)

			if tt.wantSource != "" {
				items, err := index.SimilaritySearch(context.Background(), "wheat", 5)
				require.NoError(t, err)
				require.NotEmpty(t, items)
				assert.Equal(t, tt.wantSource, items[0].(models.Document).Source)
			}
		})
	}
}

func TestBuilderFailedRebuildKeepsPersistedIndex(t *testing.T) {
	persisted := models.Document{ID: "old", Source: "crops.json", Content: `{"crop":"rice"}`}
	s := &fakeStore{persistent: true, count: 1, stored: []models.Document{persisted}, storeErr: errors.New("embedder down")}

	b := knowledge.NewBuilder(knowledge.BuilderConfig{
		Loader:  staticLoader{docs: []models.Document{{ID: "new", Source: "crops.json", Content: `{"crop":"wheat"}`}}},
		Store:   s,
		Rebuild: true,
		Logger:  logger.Discard(),
	})

	_, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, s.replaces)

	items, err := s.SimilaritySearch(context.Background(), "rice", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "old", items[0].(models.Document).ID)
}

func TestBuilderWithoutStore(t *testing.T) {
	_, err := knowledge.NewBuilder(knowledge.BuilderConfig{Loader: staticLoader{}}).Build(context.Background())
	assert.ErrorIs(t, err, knowledge.ErrNoIndex)
}

type countingLoader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingLoader) Load(context.Context) ([]models.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []models.Document{{ID: "1", Source: "s.json", Content: "x"}}, nil
}

func TestLazyBuildsOnce(t *testing.T) {
	loader := &countingLoader{}
	lazy := knowledge.NewLazy(knowledge.NewBuilder(knowledge.BuilderConfig{
		Loader: loader,
		Store:  &fakeStore{},
		Logger: logger.Discard(),
	}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := lazy.SimilaritySearch(context.Background(), "q", 1)
			assert.NoError(t, err)
			assert.Len(t, items, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, loader.calls)
}

func TestLazyRetriesAfterFailure(t *testing.T) {
	loader := &countingLoader{err: errors.New("boom")}
	lazy := knowledge.NewLazy(knowledge.NewBuilder(knowledge.BuilderConfig{
		Loader: loader,
		Store:  &fakeStore{},
		Logger: logger.Discard(),
	}))

	for i := 0; i < 2; i++ {
		_, err := lazy.SimilaritySearch(context.Background(), "q", 1)
		assert.Error(t, err)
	}
	assert.Equal(t, 2, loader.calls)

	loader.mu.Lock()
	loader.err = nil
	loader.mu.Unlock()

	for i := 0; i < 3; i++ {
		items, err := lazy.SimilaritySearch(context.Background(), "q", 1)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	}
	assert.Equal(t, 3, loader.calls, "a successful build is kept")
}
