// Package assembler shapes retrieved documents into a context window that
// fits a token budget.
package assembler

import (
	"strings"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/internal/types"
	"github.com/xhad/agrisaathi/pkg/logger"
	"github.com/xhad/agrisaathi/pkg/tokens"
)

// TruncationMarker is appended to a document cut short to fit the budget.
const TruncationMarker = "..."

type AssemblerConfig struct {
	MaxTokens      int // default budget
	ReducedTokens  int // budget used when the prompt is under pressure
	HardCeiling    int // limit for context + query + overhead
	PromptOverhead int
	MinTailTokens  int // a truncated tail needs more than this many tokens
	Counter        types.TokenCounter
	Logger         logger.Logger
}

type Assembler struct {
	config AssemblerConfig
}

// Context is the assembled, budgeted sequence of documents.
type Context struct {
	Documents []models.Document
	Tokens    int
	Truncated bool
}

func (c Context) Empty() bool {
	return len(c.Documents) == 0
}

// Text joins the document contents with newlines.
func (c Context) Text() string {
	parts := make([]string, len(c.Documents))
	for i, doc := range c.Documents {
		parts[i] = doc.Content
	}
	return strings.Join(parts, "\n")
}

func NewWithConfig(config AssemblerConfig) *Assembler {
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.ReducedTokens == 0 {
		config.ReducedTokens = 1500
	}
	if config.HardCeiling == 0 {
		config.HardCeiling = 4500
	}
	if config.PromptOverhead == 0 {
		config.PromptOverhead = 200
	}
	if config.MinTailTokens == 0 {
		config.MinTailTokens = 100
	}
	if config.Counter == nil {
		config.Counter = tokens.Approx{}
	}
	config.Logger = logger.Or(config.Logger)

	return &Assembler{config: config}
}

// Assemble keeps documents in order while they fit the budget. The first
// document that does not fit is either truncated into the remaining space
// (when more than MinTailTokens remain) or dropped; nothing after it is kept.
func (a *Assembler) Assemble(docs []models.Document, budget int) Context {
	var out Context
	running := 0

	for _, doc := range docs {
		n := a.config.Counter.Count(doc.Content)
		if running+n <= budget {
			out.Documents = append(out.Documents, doc)
			running += n
			continue
		}

		remaining := budget - running
		if remaining > a.config.MinTailTokens {
			tail := doc
			tail.Content = a.truncate(doc.Content, remaining)
			out.Documents = append(out.Documents, tail)
			out.Truncated = true
			running += a.config.Counter.Count(tail.Content)
		}
		break
	}

	out.Tokens = running
	a.config.Logger.Info("assembled context",
		"input_docs", len(docs), "kept_docs", len(out.Documents), "tokens", running, "budget", budget)
	return out
}

// truncate cuts text to roughly limit tokens and appends the marker. The cut
// is made on rune boundaries and shrunk until the estimate fits.
func (a *Assembler) truncate(text string, limit int) string {
	runes := []rune(text)
	keep := limit * tokens.CharsPerToken
	if keep > len(runes) {
		keep = len(runes)
	}

	for keep > 0 {
		candidate := string(runes[:keep]) + TruncationMarker
		count := a.config.Counter.Count(candidate)
		if count <= limit {
			return candidate
		}
		next := keep * limit / count
		if next >= keep {
			next = keep - 1
		}
		keep = next
	}
	return TruncationMarker
}

// Fit assembles docs under the default budget, then re-assembles them under
// the reduced budget if context, query and prompt overhead together would
// exceed the hard ceiling.
func (a *Assembler) Fit(docs []models.Document, query string) Context {
	ctx := a.Assemble(docs, a.config.MaxTokens)

	estimate := a.config.Counter.Count(ctx.Text()) + a.config.Counter.Count(query) + a.config.PromptOverhead
	if estimate > a.config.HardCeiling {
		a.config.Logger.Warn("input tokens may exceed limits, reducing context",
			"estimate", estimate, "ceiling", a.config.HardCeiling, "budget", a.config.ReducedTokens)
		ctx = a.Assemble(ctx.Documents, a.config.ReducedTokens)
	}
	return ctx
}

// Count exposes the estimator used for budgeting.
func (a *Assembler) Count(text string) int {
	return a.config.Counter.Count(text)
}
