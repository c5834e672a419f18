// Package pipeline turns a farmer's question into a grounded, language
// constrained answer, degrading to canned advice when generation fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/internal/types"
	"github.com/xhad/agrisaathi/pkg/assembler"
	"github.com/xhad/agrisaathi/pkg/auxiliary"
	"github.com/xhad/agrisaathi/pkg/fallback"
	"github.com/xhad/agrisaathi/pkg/logger"
	"github.com/xhad/agrisaathi/pkg/postprocess"
	"github.com/xhad/agrisaathi/pkg/prompt"
)

const (
	ConfidenceGrounded   = 0.85
	ConfidenceUngrounded = 0.3
	ConfidenceFallback   = 0.0

	DefaultChunkSize = 3
	DefaultMaxChunks = 2
)

// ErrEmptyAnswer is returned when nothing is left of the model output after
// post-processing.
var ErrEmptyAnswer = errors.New("answer empty after post-processing")

// Confidence is the fixed scoring policy for a pipeline run.
func Confidence(contextNonEmpty, generationOK bool) float64 {
	switch {
	case !generationOK:
		return ConfidenceFallback
	case contextNonEmpty:
		return ConfidenceGrounded
	default:
		return ConfidenceUngrounded
	}
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) []models.Document
}

type PipelineConfig struct {
	Retriever Retriever
	Assembler *assembler.Assembler
	Prompts   *prompt.Builder
	Cleaner   *postprocess.Cleaner
	Generator types.Generator
	ChunkSize int
	MaxChunks int
	Logger    logger.Logger
}

type Pipeline struct {
	config PipelineConfig
	log    logger.Logger
}

func NewWithConfig(config PipelineConfig) (*Pipeline, error) {
	if config.Retriever == nil || config.Assembler == nil || config.Prompts == nil ||
		config.Cleaner == nil || config.Generator == nil {
		return nil, errors.New("pipeline requires a retriever, assembler, prompt builder, cleaner and generator")
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.MaxChunks <= 0 {
		config.MaxChunks = DefaultMaxChunks
	}
	return &Pipeline{config: config, log: logger.Or(config.Logger)}, nil
}

// GetAnswer always returns a result. Any failure after retrieval yields the
// fallback template at confidence 0.
func (p *Pipeline) GetAnswer(ctx context.Context, q models.Query) models.AnswerResult {
	query := prompt.SanitizeQuery(q.Text)
	p.log.Info("answering query", "query", query, "lang", q.Language, "pincode", q.Pincode)

	docs := p.config.Retriever.Retrieve(ctx, query)
	return p.run(ctx, q, docs, true)
}

// GetAnswerChunked splits the retrieved documents into chunks of chunkSize,
// answers at most MaxChunks of them concurrently and keeps the result with
// the highest confidence. The earliest chunk wins ties.
func (p *Pipeline) GetAnswerChunked(ctx context.Context, q models.Query, chunkSize int) models.AnswerResult {
	if chunkSize <= 0 {
		chunkSize = p.config.ChunkSize
	}
	query := prompt.SanitizeQuery(q.Text)
	docs := p.config.Retriever.Retrieve(ctx, query)

	chunks := split(docs, chunkSize, p.config.MaxChunks)
	if len(chunks) == 0 {
		p.log.Warn("no documents to chunk, using fallback", "query", query)
		return p.fallback(q)
	}
	p.log.Info("answering in chunks", "documents", len(docs), "chunks", len(chunks), "chunk_size", chunkSize)

	results := make([]models.AnswerResult, len(chunks))
	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = p.run(ctx, q, chunk, i == 0)
			return nil
		})
	}
	_ = g.Wait()

	best := results[0]
	for _, r := range results[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return best
}

func split(docs []models.Document, size, limit int) [][]models.Document {
	var chunks [][]models.Document
	for start := 0; start < len(docs) && len(chunks) < limit; start += size {
		chunks = append(chunks, docs[start:min(start+size, len(docs))])
	}
	return chunks
}

// run answers q from docs. Auxiliary summaries are rendered only when
// withAux is set.
func (p *Pipeline) run(ctx context.Context, q models.Query, docs []models.Document, withAux bool) (result models.AnswerResult) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline panic, using fallback", "panic", r, "query", q.Text, "lang", q.Language)
			result = p.fallback(q)
		}
	}()

	text, used, err := p.generate(ctx, q, docs, withAux)
	if err != nil {
		p.log.Error("generation failed, using fallback",
			"err", err,
			"query", q.Text,
			"lang", q.Language,
			"pincode", q.Pincode,
			"docs", len(docs),
		)
		return p.fallback(q)
	}

	confidence := Confidence(!used.Empty(), true)
	p.log.Info("generated answer", "confidence", confidence, "docs", len(used.Documents), "truncated", used.Truncated)
	return models.AnswerResult{
		Text:       text,
		Confidence: confidence,
		Sources:    sources(used.Documents),
	}
}

func (p *Pipeline) generate(ctx context.Context, q models.Query, docs []models.Document, withAux bool) (string, assembler.Context, error) {
	query := prompt.SanitizeQuery(q.Text)
	used := p.config.Assembler.Fit(docs, query)

	weather, market := auxiliary.NotAvailable, auxiliary.NotAvailable
	if withAux {
		weather = auxiliary.SummarizeWeather(q.Weather)
		market = auxiliary.SummarizeMarket(q.Market)
	}

	instruction, err := p.config.Prompts.Build(prompt.Input{
		Query:     query,
		Language:  q.Language,
		Pincode:   q.Pincode,
		Location:  q.Location,
		Documents: used.Documents,
		Weather:   weather,
		Market:    market,
	})
	if err != nil {
		return "", used, err
	}
	p.log.Debug("prompt built", "tokens", p.config.Assembler.Count(instruction))

	raw, err := p.config.Generator.Generate(ctx, instruction)
	if err != nil {
		return "", used, fmt.Errorf("generation: %w", err)
	}

	text := p.config.Cleaner.Process(raw, q.Language)
	if strings.TrimSpace(text) == "" {
		return "", used, ErrEmptyAnswer
	}
	return text, used, nil
}

func (p *Pipeline) fallback(q models.Query) models.AnswerResult {
	text, category := fallback.Respond(q.Text, q.Location.District, q.Language)
	return models.AnswerResult{
		Text:       text,
		Confidence: Confidence(false, false),
		Sources:    []string{},
		Fallback:   true,
		Category:   string(category),
	}
}

// sources lists document sources once each, in first-seen order.
func sources(docs []models.Document) []string {
	seen := make(map[string]bool, len(docs))
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if !seen[d.Source] {
			seen[d.Source] = true
			out = append(out, d.Source)
		}
	}
	return out
}
