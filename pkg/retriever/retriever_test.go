package retriever_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/pkg/logger"
	"github.com/xhad/agrisaathi/pkg/retriever"
)

type fakeIndex struct {
	items []any
	err   error
	gotK  int
}

func (f *fakeIndex) SimilaritySearch(_ context.Context, _ string, k int) ([]any, error) {
	f.gotK = k
	return f.items, f.err
}

type pincode string

func (p pincode) String() string { return "pincode " + string(p) }

func TestRetrieveNormalizes(t *testing.T) {
	index := &fakeIndex{items: []any{
		models.Document{Content: "Wheat sowing window is November.", Source: "crops.json"},
		"Rice needs standing water.",
		&models.Document{Content: "Neem oil controls aphids."},
		schema.Document{PageContent: "PM-KISAN pays 6000 per year.", Metadata: map[string]any{"source": "schemes.json"}},
		pincode("411001"),
		42,
		"   ",
		nil,
	}}

	r := retriever.NewWithConfig(retriever.RetrieverConfig{Index: index, K: 10, Logger: logger.Discard()})
	docs := r.Retrieve(context.Background(), "what to sow")

	require.Len(t, docs, 6)
	assert.Equal(t, "crops.json", docs[0].Source)
	assert.Equal(t, models.SourceRetriever, docs[1].Source)
	assert.Equal(t, "Rice needs standing water.", docs[1].Content)
	assert.Equal(t, models.SourceUnknown, docs[2].Source)
	assert.Equal(t, "schemes.json", docs[3].Source)
	assert.Equal(t, "pincode 411001", docs[4].Content)
	assert.Equal(t, "42", docs[5].Content)
	assert.Equal(t, 10, index.gotK)

	for _, d := range docs {
		assert.NotEmpty(t, d.Content)
		assert.NotEmpty(t, d.Source)
	}
}

func TestRetrieveTruncatesToK(t *testing.T) {
	items := make([]any, 8)
	for i := range items {
		items[i] = "snippet"
	}
	r := retriever.NewWithConfig(retriever.RetrieverConfig{Index: &fakeIndex{items: items}, Logger: logger.Discard()})

	docs := r.Retrieve(context.Background(), "q")
	assert.Len(t, docs, retriever.DefaultK)
}

func TestRetrieveNeverFails(t *testing.T) {
	tests := []struct {
		name  string
		index *fakeIndex
	}{
		{"nil index", nil},
		{"search error", &fakeIndex{err: errors.New("connection refused")}},
		{"empty result", &fakeIndex{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := retriever.RetrieverConfig{Logger: logger.Discard()}
			if tt.index != nil {
				cfg.Index = tt.index
			}
			docs := retriever.NewWithConfig(cfg).Retrieve(context.Background(), "q")
			assert.Empty(t, docs)
		})
	}
}

func TestNormalizeSchemaWithoutSource(t *testing.T) {
	doc, ok := retriever.Normalize(&schema.Document{PageContent: "text"})
	require.True(t, ok)
	assert.Equal(t, models.SourceUnknown, doc.Source)

	_, ok = retriever.Normalize((*models.Document)(nil))
	assert.False(t, ok)
}
