// Package knowledge loads the JSON advisory corpus and builds the similarity
// index the retriever searches.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/pkg/logger"
	"github.com/xhad/agrisaathi/pkg/store"
)

// CorpusLoader yields the documents to index.
type CorpusLoader interface {
	Load(ctx context.Context) ([]models.Document, error)
}

// Loader reads every *.json file in a directory. A file holds either an
// array of records or a single record; each record becomes one document.
type Loader struct {
	dir string
	log logger.Logger
}

func NewLoader(dir string, log logger.Logger) *Loader {
	return &Loader{dir: dir, log: logger.Or(log)}
}

func (l *Loader) Load(ctx context.Context) ([]models.Document, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		l.log.Warn("corpus directory not found", "dir", l.dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	var docs []models.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}

		fileDocs, err := l.loadFile(entry.Name())
		if err != nil {
			l.log.Warn("skipping corpus file", "file", entry.Name(), "err", err)
			continue
		}
		docs = append(docs, fileDocs...)
	}

	l.log.Info("loaded corpus", "dir", l.dir, "documents", len(docs))
	return docs, nil
}

func (l *Loader) loadFile(name string) ([]models.Document, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	records, ok := parsed.([]any)
	if !ok {
		records = []any{parsed}
	}

	docs := make([]models.Document, 0, len(records))
	for i, record := range records {
		content, err := compact(record)
		if err != nil {
			return nil, err
		}
		content = strings.TrimSpace(store.SanitizeUTF8(content))
		if content == "" || content == "null" {
			continue
		}
		docs = append(docs, models.Document{
			ID:      fmt.Sprintf("%s#%d", name, i),
			Source:  name,
			Content: content,
		})
	}
	return docs, nil
}

// compact serializes v without HTML escaping so Devanagari and other scripts
// stay readable in the prompt.
func compact(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
