// Package postprocess strips markdown and leaked phrases from model output.
package postprocess

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xhad/agrisaathi/pkg/language"
	"github.com/xhad/agrisaathi/pkg/logger"
)

var (
	emphasis   = regexp.MustCompile(`(\*\*|__|\*|_)`)
	heading    = regexp.MustCompile(`(?m)^\s*#+\s*`)
	link       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	listMarker = regexp.MustCompile(`(?m)^\s*[-*]\s+`)
)

// Sanitize strips markdown emphasis, headings, list markers and link markup
// from model output, leaving prose.
func Sanitize(text string) string {
	text = emphasis.ReplaceAllString(text, "")
	text = heading.ReplaceAllString(text, "")
	text = link.ReplaceAllString(text, "$1")
	text = listMarker.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

type Cleaner struct {
	languages *language.Registry
	log       logger.Logger
}

func NewCleaner(languages *language.Registry, log logger.Logger) *Cleaner {
	return &Cleaner{languages: languages, log: logger.Or(log)}
}

// Clean applies the language's correction table and then removes stray
// phrases. A pattern that fails is logged and the rest still run. Text in
// a language with no profile is only trimmed.
func (c *Cleaner) Clean(text, lang string) string {
	profile := c.languages.Lookup(lang)
	if !profile.Known {
		return strings.TrimSpace(text)
	}

	for _, corr := range profile.Corrections {
		text = strings.ReplaceAll(text, corr.From, corr.To)
	}

	for _, re := range profile.StrayPatterns {
		out, err := replaceSafely(re, text)
		if err != nil {
			c.log.Warn("stray pattern failed", "language", profile.Name, "pattern", re.String(), "error", err)
			continue
		}
		text = out
	}

	return strings.TrimSpace(text)
}

// Process runs Sanitize followed by Clean.
func (c *Cleaner) Process(text, lang string) string {
	return c.Clean(Sanitize(text), lang)
}

func replaceSafely(re *regexp.Regexp, text string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("replace panicked: %v", r)
		}
	}()
	return re.ReplaceAllString(text, ""), nil
}
