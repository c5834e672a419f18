// Package fallback produces canned, language-specific answers used when
// generation fails.
package fallback

import (
	"fmt"
	"strings"
)

type Category string

const (
	Crop    Category = "crop"
	Market  Category = "market"
	Scheme  Category = "scheme"
	Default Category = "default"
)

// Keyword sets are checked in this order; market comes first so that price
// questions about a crop still get the market template.
var keywords = []struct {
	category Category
	words    []string
}{
	{Market, []string{"price", "market", "mandi", "मूल्य", "बाजार", "मंडी", "भाव"}},
	{Crop, []string{"crop", "farming", "cultivation", "फसल", "खेती"}},
	{Scheme, []string{"scheme", "subsidy", "government", "योजना", "सब्सिडी", "सरकार"}},
}

// Classify maps a query to a template category by keyword.
func Classify(query string) Category {
	q := strings.ToLower(query)
	for _, set := range keywords {
		for _, w := range set.words {
			if strings.Contains(q, w) {
				return set.category
			}
		}
	}
	return Default
}

type templateSet struct {
	yourArea  string
	templates map[Category]string
}

var templates = map[string]templateSet{
	"hindi": {
		yourArea: "आपके क्षेत्र",
		templates: map[Category]string{
			Crop:    "%s में फसल की सिफारिशों के लिए, अपने स्थानीय कृषि विज्ञान केंद्र या कृषि विस्तार कार्यालय से संपर्क करें।",
			Market:  "%s में वर्तमान बाजार मूल्यों के लिए, ई-नाम पोर्टल देखें या अपने निकटतम मंडी जाएं।",
			Scheme:  "%s में सरकारी कृषि योजनाओं के लिए, कॉमन सर्विस सेंटर पर जाएं या जिला कलेक्टर कार्यालय से संपर्क करें।",
			Default: "तकनीकी कठिनाई के लिए खेद है। %s में कृषि मार्गदर्शन के लिए, कृपया अपने स्थानीय कृषि विज्ञान केंद्र से संपर्क करें।",
		},
	},
	"english": {
		yourArea: "your area",
		templates: map[Category]string{
			Crop:    "For crop recommendations in %s, consult your local Krishi Vigyan Kendra or agricultural extension office.",
			Market:  "For current market prices in %s, check the eNAM portal or visit your nearest mandi.",
			Scheme:  "For government agricultural schemes in %s, visit the Common Service Center or contact the District Collector's office.",
			Default: "I apologize for the technical difficulty. For agricultural guidance in %s, please consult your local Krishi Vigyan Kendra.",
		},
	},
}

var codes = map[string]string{"hi": "hindi", "en": "english"}

// Respond returns the fallback answer for query in lang. Languages without
// their own templates get English. An empty district becomes "your area".
func Respond(query, district, lang string) (string, Category) {
	key := strings.ToLower(strings.TrimSpace(lang))
	if name, ok := codes[key]; ok {
		key = name
	}
	set, ok := templates[key]
	if !ok {
		set = templates["english"]
	}

	district = strings.TrimSpace(district)
	if district == "" || district == "N/A" {
		district = set.yourArea
	}

	category := Classify(query)
	return fmt.Sprintf(set.templates[category], district), category
}
