// Package tokens estimates how many model tokens a piece of text costs.
package tokens

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/xhad/agrisaathi/internal/types"
	"github.com/xhad/agrisaathi/pkg/logger"
)

const DefaultEncoding = "cl100k_base"

// CharsPerToken is the rough ratio used when no tokenizer is available.
const CharsPerToken = 4

// Approx estimates tokens as runes/4.
type Approx struct{}

func (Approx) Count(text string) int {
	return utf8.RuneCountInString(text) / CharsPerToken
}

// BPE counts tokens with a byte-pair encoding.
type BPE struct {
	tke *tiktoken.Tiktoken
}

func (b *BPE) Count(text string) int {
	return len(b.tke.Encode(text, nil, nil))
}

// New returns a BPE counter for the named encoding. The encoding may have to
// be downloaded on first use; when it cannot be loaded the Approx estimator
// is returned instead.
func New(encoding string, log logger.Logger) types.TokenCounter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		tke, err = tiktoken.EncodingForModel(encoding)
	}
	if err != nil {
		logger.Or(log).Warn("tokenizer unavailable, using character estimate", "encoding", encoding, "error", err)
		return Approx{}
	}
	return &BPE{tke: tke}
}
