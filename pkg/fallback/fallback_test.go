package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  Category
	}{
		{"What crop should I plant", Crop},
		{"best cultivation practice for cotton", Crop},
		{"मेरी फसल में कीड़े हैं", Crop},
		{"onion price today", Market},
		{"what is the mandi rate for my crop", Market},
		{"crop price in market", Market},
		{"बाजार में गेहूं", Market},
		{"PM-KISAN subsidy eligibility", Scheme},
		{"सरकार की नई योजना", Scheme},
		{"how are you", Default},
		{"", Default},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	q := "Scheme for crop farming at the MANDI"
	for i := 0; i < 10; i++ {
		assert.Equal(t, Market, Classify(q))
	}
}

func TestRespond(t *testing.T) {
	text, category := Respond("What crop should I plant", "Nashik", "hindi")
	assert.Equal(t, Crop, category)
	assert.Equal(t, "Nashik में फसल की सिफारिशों के लिए, अपने स्थानीय कृषि विज्ञान केंद्र या कृषि विस्तार कार्यालय से संपर्क करें।", text)

	text, category = Respond("mandi price", "", "en")
	assert.Equal(t, Market, category)
	assert.Equal(t, "For current market prices in your area, check the eNAM portal or visit your nearest mandi.", text)

	text, _ = Respond("hello", "N/A", "hi")
	assert.Contains(t, text, "आपके क्षेत्र")

	text, category = Respond("subsidy", "Ludhiana", "punjabi")
	assert.Equal(t, Scheme, category)
	assert.Contains(t, text, "Common Service Center")
	assert.Contains(t, text, "Ludhiana")
}
