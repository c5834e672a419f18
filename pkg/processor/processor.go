// Package processor splits scraped advisory pages into overlapping chunks and
// writes them as a corpus file the knowledge loader can index.
package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/xhad/agrisaathi/internal/models"
)

type ProcessorConfig struct {
	ChunkSize       int // in characters
	ChunkOverlap    int
	MinChunkLength  int
	RemoveStopwords bool
	CustomStopwords []string
	Lowercase       bool
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 100
	}

	return Processor{
		config: config,
	}
}

func (p *Processor) Process(pages []models.ProcessedDocument) ([]models.ProcessedDocument, error) {
	processed := make([]models.ProcessedDocument, 0, len(pages))

	for _, page := range pages {
		page.Chunks = p.splitIntoChunks(p.cleanText(page.Content))
		if len(page.Chunks) == 0 {
			continue
		}
		processed = append(processed, page)
	}

	return processed, nil
}

func (p *Processor) cleanText(text string) string {
	if p.config.Lowercase {
		text = strings.ToLower(text)
	}

	text = strings.Join(strings.Fields(text), " ")

	if p.config.RemoveStopwords {
		text = p.removeStopwords(text)
	}

	return strings.TrimSpace(text)
}

// splitIntoChunks packs sentences into chunks of at most ChunkSize runes,
// carrying the last ChunkOverlap runes into the next chunk.
func (p *Processor) splitIntoChunks(text string) []string {
	var chunks []string
	var current []rune

	for _, sentence := range splitIntoSentences(text) {
		s := []rune(sentence)
		if len(current)+len(s) > p.config.ChunkSize && len(current) > 0 {
			if len(current) >= p.config.MinChunkLength {
				chunks = append(chunks, strings.TrimSpace(string(current)))
			}

			if p.config.ChunkOverlap > 0 && len(current) > p.config.ChunkOverlap {
				current = slices.Clone(current[len(current)-p.config.ChunkOverlap:])
			} else {
				current = current[:0]
			}
		}

		current = append(current, s...)
		current = append(current, ' ')
	}

	if len(strings.TrimSpace(string(current))) >= p.config.MinChunkLength {
		chunks = append(chunks, strings.TrimSpace(string(current)))
	}

	return chunks
}

// Sentence terminators, including the Devanagari danda.
var sentenceEnders = []string{". ", "! ", "? ", "। ", ".\n", "!\n", "?\n", "।\n"}

func splitIntoSentences(text string) []string {
	var sentences []string

	for len(text) > 0 {
		cut := -1
		for _, ender := range sentenceEnders {
			if i := strings.Index(text, ender); i >= 0 && (cut < 0 || i+len(ender) < cut) {
				cut = i + len(ender)
			}
		}
		if cut < 0 {
			sentences = append(sentences, strings.TrimSpace(text))
			break
		}
		sentences = append(sentences, strings.TrimSpace(text[:cut]))
		text = text[cut:]
	}

	return sentences
}

func (p *Processor) removeStopwords(text string) string {
	stopwords := append(getStopwords(), p.config.CustomStopwords...)

	var filtered []string
	for _, word := range strings.Fields(text) {
		if !slices.Contains(stopwords, strings.ToLower(strings.TrimFunc(word, unicode.IsPunct))) {
			filtered = append(filtered, word)
		}
	}

	return strings.Join(filtered, " ")
}

// Common English stopwords
func getStopwords() []string {
	return []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with",
	}
}

// CorpusRecord is one chunk as stored in a corpus file.
type CorpusRecord struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
	Chunk int    `json:"chunk"`
	Text  string `json:"text"`
}

func Records(pages []models.ProcessedDocument) []CorpusRecord {
	var records []CorpusRecord
	for _, page := range pages {
		for i, chunk := range page.Chunks {
			records = append(records, CorpusRecord{
				Title: page.Title,
				URL:   page.URL,
				Chunk: i,
				Text:  chunk,
			})
		}
	}
	return records
}

// WriteCorpus writes the chunks of pages to path as a JSON array and returns
// the number of records written.
func WriteCorpus(path string, pages []models.ProcessedDocument) (int, error) {
	records := Records(pages)
	if len(records) == 0 {
		return 0, fmt.Errorf("no chunks to write")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return 0, fmt.Errorf("failed to encode corpus: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create corpus directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("failed to write corpus file: %w", err)
	}
	return len(records), nil
}
