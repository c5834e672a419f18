package types

import (
	"context"
	"encoding/json"

	"github.com/xhad/agrisaathi/internal/models"
)

// Index is a similarity index over the knowledge corpus. Items in the result
// are not guaranteed to be documents; callers normalize them.
type Index interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]any, error)
}

// DocumentStore is an Index that can be (re)populated.
type DocumentStore interface {
	Index
	Store(ctx context.Context, docs []models.Document) error
	Count(ctx context.Context) (int, error)
	// Replace swaps the whole contents for docs. On error the previous
	// contents are left in place.
	Replace(ctx context.Context, docs []models.Document) error
	Persistent() bool
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type TokenCounter interface {
	Count(text string) int
}

type WeatherSource interface {
	Weather(ctx context.Context, pincode string) (json.RawMessage, error)
}

type MarketSource interface {
	Market(ctx context.Context, location models.Location) (json.RawMessage, error)
}

type LocationResolver interface {
	Resolve(ctx context.Context, pincode string) (models.Location, error)
}
