package prompt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/pkg/language"
	"github.com/xhad/agrisaathi/pkg/logger"
	"github.com/xhad/agrisaathi/pkg/prompt"
)

func TestSanitizeQuery(t *testing.T) {
	assert.Equal(t, " best rabi crop now", prompt.SanitizeQuery("# best *rabi* crop -now"))
	assert.Equal(t, "गेहूं का भाव", prompt.SanitizeQuery("गेहूं का भाव"))
}

func newBuilder() *prompt.Builder {
	return prompt.NewBuilder(language.NewRegistry(nil, logger.Discard()))
}

func TestBuildIncludesAllParts(t *testing.T) {
	b := newBuilder()

	out, err := b.Build(prompt.Input{
		Query:    "## Which **crop** for kharif?",
		Language: "hindi",
		Pincode:  "411001",
		Location: models.Location{District: "Pune", State: "Maharashtra"},
		Documents: []models.Document{
			{Source: "crops.json", Content: `{"crop":"bajra"}`},
		},
		Weather: "Temp: 31°C",
		Market:  "Onion: ₹1200",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "हिंदी में जवाब दें")
	assert.Contains(t, out, "Your ENTIRE response must be in hindi only")
	assert.Contains(t, out, "[crops.json]\n{\"crop\":\"bajra\"}")
	assert.Contains(t, out, "Weather: Temp: 31°C")
	assert.Contains(t, out, "Market prices: Onion: ₹1200")
	assert.Contains(t, out, "User Query:  Which crop for kharif?")
	assert.Contains(t, out, "Location: Pune, Maharashtra (Pin: 411001)")
	assert.Contains(t, out, "Krishi Vigyan Kendra")
	assert.Contains(t, out, "couldn't find specific information for this pincode")
}

func TestBuildDefaults(t *testing.T) {
	b := newBuilder()

	out, err := b.Build(prompt.Input{Query: "rain?", Language: "Kannada"})
	require.NoError(t, err)

	assert.Contains(t, out, "Respond only in Kannada language.")
	assert.Contains(t, out, "Location: N/A, N/A (Pin: N/A)")
	assert.Contains(t, out, "(no matching knowledge found)")
	assert.Contains(t, out, "Weather: Not available")
	assert.Contains(t, out, "Market prices: Not available")
}
