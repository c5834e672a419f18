// Package prompt builds the language-constrained generation prompt.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/pkg/language"
)

const notAvailable = "N/A"

const defaultTemplate = `You are AgriSaathi, an expert AI agricultural advisor for Indian farmers.

CRITICAL LANGUAGE INSTRUCTION:
{{.Instruction}}
DO NOT mix languages. Your ENTIRE response must be in {{.Language}} only.

Your Task:
1. Analyze the user's Query and the provided Context below.
2. The Context contains specific data retrieved for the user's location. Base your answer primarily on this Context.
3. If the Context is empty or lacks relevant information for pincode {{.Pincode}}, clearly state that you couldn't find specific information for this pincode.
4. After stating that, provide general agricultural advice for the broader region ({{.District}}, {{.State}}).
5. ALWAYS recommend consulting local experts or the district's Krishi Vigyan Kendra (KVK).
6. Write your COMPLETE response in {{.Language}} language only. No English words or phrases should appear in your response.

---
Context:
{{range .Documents}}[{{.Source}}]
{{.Content}}

{{else}}(no matching knowledge found)
{{end}}---
Weather: {{.Weather}}
Market prices: {{.Market}}

User Query: {{.Query}}
Location: {{.District}}, {{.State}} (Pin: {{.Pincode}})

Remember: Respond ENTIRELY in {{.Language}} language.
`

// Input carries everything rendered into a prompt.
type Input struct {
	Query     string
	Language  string
	Pincode   string
	Location  models.Location
	Documents []models.Document
	Weather   string
	Market    string
}

type view struct {
	Input
	Instruction string
	District    string
	State       string
}

type Builder struct {
	languages *language.Registry
	tmpl      *template.Template
}

func NewBuilder(languages *language.Registry) *Builder {
	return &Builder{
		languages: languages,
		tmpl:      template.Must(template.New("answer").Parse(defaultTemplate)),
	}
}

// SanitizeQuery removes characters the model could read as markup.
func SanitizeQuery(query string) string {
	return strings.NewReplacer("#", "", "*", "", "-", "").Replace(query)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

// Build renders the instruction for one generation call. The query is
// sanitized here so every caller gets the same treatment.
func (b *Builder) Build(in Input) (string, error) {
	profile := b.languages.Lookup(in.Language)

	v := view{
		Input:       in,
		Instruction: profile.Instruction,
		District:    orNA(in.Location.District),
		State:       orNA(in.Location.State),
	}
	v.Query = SanitizeQuery(in.Query)
	v.Pincode = orNA(in.Pincode)
	v.Language = orNA(in.Language)
	if v.Weather == "" {
		v.Weather = "Not available"
	}
	if v.Market == "" {
		v.Market = "Not available"
	}

	var sb strings.Builder
	if err := b.tmpl.Execute(&sb, v); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return sb.String(), nil
}
