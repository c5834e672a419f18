// Package retriever wraps the similarity index and guarantees that whatever
// the index returns reaches the pipeline as well-formed documents.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/schema"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/internal/types"
	"github.com/xhad/agrisaathi/pkg/logger"
)

const DefaultK = 5

type RetrieverConfig struct {
	Index  types.Index
	K      int
	Logger logger.Logger
}

type Retriever struct {
	config RetrieverConfig
	log    logger.Logger
}

func NewWithConfig(config RetrieverConfig) *Retriever {
	if config.K <= 0 {
		config.K = DefaultK
	}
	return &Retriever{config: config, log: logger.Or(config.Logger)}
}

// Retrieve never fails. A missing index or a search error yields no
// documents.
func (r *Retriever) Retrieve(ctx context.Context, query string) []models.Document {
	if r.config.Index == nil {
		r.log.Warn("retrieval skipped, index not initialized")
		return nil
	}

	items, err := r.config.Index.SimilaritySearch(ctx, query, r.config.K)
	if err != nil {
		r.log.Error("similarity search failed", "err", err)
		return nil
	}

	docs := make([]models.Document, 0, len(items))
	for _, item := range items {
		doc, ok := Normalize(item)
		if !ok {
			continue
		}
		docs = append(docs, doc)
		if len(docs) == r.config.K {
			break
		}
	}
	return docs
}

// Normalize converts a raw index item into a Document. It reports false for
// items that carry no text.
func Normalize(item any) (models.Document, bool) {
	var doc models.Document

	switch v := item.(type) {
	case nil:
		return doc, false
	case models.Document:
		doc = v
	case *models.Document:
		if v == nil {
			return doc, false
		}
		doc = *v
	case schema.Document:
		doc = fromSchema(v)
	case *schema.Document:
		if v == nil {
			return doc, false
		}
		doc = fromSchema(*v)
	case string:
		doc = models.Document{Content: v, Source: models.SourceRetriever}
	case fmt.Stringer:
		doc = models.Document{Content: v.String(), Source: models.SourceRetriever}
	default:
		doc = models.Document{Content: fmt.Sprint(v), Source: models.SourceRetriever}
	}

	if strings.TrimSpace(doc.Content) == "" {
		return models.Document{}, false
	}
	if doc.Source == "" {
		doc.Source = models.SourceUnknown
	}
	return doc, true
}

func fromSchema(d schema.Document) models.Document {
	doc := models.Document{Content: d.PageContent, Metadata: d.Metadata}
	if src, ok := d.Metadata["source"].(string); ok {
		doc.Source = src
	}
	return doc
}
