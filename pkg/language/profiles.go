// Package language holds the per-language output constraints: the
// instruction given to the model and the rules used to clean up answers that
// drift into the wrong language.
package language

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/xhad/agrisaathi/pkg/config"
	"github.com/xhad/agrisaathi/pkg/logger"
)

const English = "english"

// Correction replaces a leaked source-language phrase.
type Correction struct {
	From string
	To   string
}

type Profile struct {
	Name          string
	Instruction   string
	Corrections   []Correction
	StrayPatterns []*regexp.Regexp
	Known         bool
}

// Registry resolves language names and codes to profiles.
type Registry struct {
	profiles map[string]*Profile
	aliases  map[string]string
}

// Phrases the model tends to leave in English, stripped from non-English
// answers after corrections have run.
var defaultStrayPatterns = []string{
	`(?i)\bAs\s+\w+[,!]\s*`,
	`\*\*[^*]+\*\*`,
	`(?i)\bUnfortunately[,\s]+`,
	`(?i)\bHowever[,\s]+`,
	`(?i)\bRemember[,\s]+`,
}

var hindiCorrections = []Correction{
	{"As AgriSaathi", "एग्रीसाथी के रूप में"},
	{"Unfortunately", "दुर्भाग्य से"},
	{"However", "हालांकि"},
	{"Remember", "याद रखें"},
	{"Weather Forecast", "मौसम पूर्वानुमान"},
	{"PM-KISAN", "पीएम-किसान"},
	{"PM-KMY", "पीएम-केएमवाई"},
	{"KVK", "केवीके"},
	{"MSAMB", "एमएसएएमबी"},
	{"MSACCB", "एमएसएसीसीबी"},
}

var builtins = []config.LanguageConfig{
	{Name: "hindi", Aliases: []string{"hi"}, Instruction: "हिंदी में जवाब दें। केवल हिंदी का उपयोग करें, कोई अंग्रेजी शब्द न मिलाएं।"},
	{Name: English, Aliases: []string{"en"}, Instruction: "Respond only in English."},
	{Name: "marathi", Aliases: []string{"mr"}, Instruction: "केवळ मराठीत उत्तर द्या।"},
	{Name: "gujarati", Aliases: []string{"gu"}, Instruction: "ફક્ત ગુજરાતીમાં જવાબ આપો।"},
	{Name: "punjabi", Aliases: []string{"pa"}, Instruction: "ਕੇਵਲ ਪੰਜਾਬੀ ਵਿੱਚ ਜਵਾਬ ਦਿਓ।"},
	{Name: "bengali", Aliases: []string{"bn"}, Instruction: "শুধুমাত্র বাংলায় উত্তর দিন।"},
	{Name: "tamil", Aliases: []string{"ta"}, Instruction: "தமிழில் மட்டும் பதில் சொல்லுங்கள்।"},
	{Name: "telugu", Aliases: []string{"te"}, Instruction: "కేవలం తెలుగులో జవాబు ఇవ్వండి।"},
}

// NewRegistry builds the built-in profiles and then applies extra. An extra
// entry naming an existing language overrides its instruction (when set) and
// adds its corrections and patterns. Patterns that fail to compile are
// logged and skipped.
func NewRegistry(extra []config.LanguageConfig, log logger.Logger) *Registry {
	log = logger.Or(log)
	r := &Registry{
		profiles: make(map[string]*Profile),
		aliases:  make(map[string]string),
	}

	for _, lc := range builtins {
		p := r.add(lc)
		if lc.Name == English {
			continue
		}
		p.StrayPatterns = compile(defaultStrayPatterns, lc.Name, log)
	}
	r.profiles["hindi"].Corrections = append([]Correction(nil), hindiCorrections...)

	for _, lc := range extra {
		p := r.add(lc)
		for _, from := range slices.Sorted(maps.Keys(lc.Corrections)) {
			p.Corrections = append(p.Corrections, Correction{From: from, To: lc.Corrections[from]})
		}
		p.StrayPatterns = append(p.StrayPatterns, compile(lc.StrayPatterns, lc.Name, log)...)
	}

	return r
}

func (r *Registry) add(lc config.LanguageConfig) *Profile {
	name := normalize(lc.Name)
	p, ok := r.profiles[name]
	if !ok {
		p = &Profile{Name: name, Known: true}
		r.profiles[name] = p
	}
	if lc.Instruction != "" {
		p.Instruction = lc.Instruction
	}
	if p.Instruction == "" {
		p.Instruction = genericInstruction(lc.Name)
	}
	for _, alias := range lc.Aliases {
		r.aliases[normalize(alias)] = name
	}
	return p
}

// Lookup returns the profile for a language name or code. Unknown languages
// get a generic instruction and no corrections.
func (r *Registry) Lookup(lang string) Profile {
	name := normalize(lang)
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	if p, ok := r.profiles[name]; ok {
		return *p
	}
	return Profile{Name: name, Instruction: genericInstruction(lang)}
}

func genericInstruction(lang string) string {
	return fmt.Sprintf("Respond only in %s language.", strings.TrimSpace(lang))
}

func normalize(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

func compile(patterns []string, lang string, log logger.Logger) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			log.Warn("skipping invalid stray pattern", "language", lang, "pattern", pattern, "error", err)
			continue
		}
		out = append(out, re)
	}
	return out
}
