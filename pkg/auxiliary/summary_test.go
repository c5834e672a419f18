package auxiliary

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeWeather(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"absent", "", NotAvailable},
		{"null", "null", NotAvailable},
		{"malformed", `{"current": {`, WeatherError},
		{"not an object", `[1,2]`, WeatherError},
		{
			"full",
			`{"current":{"temp":31.5,"humidity":70,"rain":"Light"},"forecast":{"summary":"Showers midweek"}}`,
			"Temp: 31.5°C, Humidity: 70%, Rain: Light | 7-day: Showers midweek",
		},
		{
			"partial",
			`{"current":{"temp":28}}`,
			"Temp: 28°C, Humidity: N/A%, Rain: No ",
		},
		{
			"weatherapi forecast days",
			`{"forecast":[{"date":"2024-06-01","day":{"condition":{"text":"Patchy rain possible"}}}]}`,
			"Temp: N/A°C, Humidity: N/A%, Rain: No | 7-day: Patchy rain possible",
		},
		{
			"empty forecast object",
			`{"current":{"temp":20},"forecast":{}}`,
			"Temp: 20°C, Humidity: N/A%, Rain: No | 7-day: Variable conditions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SummarizeWeather([]byte(tt.payload)))
		})
	}
}

func TestSummarizeWeatherIsCapped(t *testing.T) {
	long := strings.Repeat("बारिश ", 100)
	out := SummarizeWeather([]byte(`{"forecast":{"summary":"` + long + `"}}`))

	assert.Equal(t, maxWeatherRunes, utf8.RuneCountInString(out))
	assert.True(t, utf8.ValidString(out))
}

func TestSummarizeMarket(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"absent", "", NotAvailable},
		{"malformed", `{"prices": [`, MarketError},
		{"no list", `{"prices": {}}`, NoPrices},
		{"empty list", `{"prices": []}`, NoPrices},
		{
			"top three",
			`{"prices":[{"commodity":"Wheat","price":2125},{"commodity":"Onion","price":1200},{"crop":"Soybean","modal_price":4300},{"commodity":"Rice","price":1900}]}`,
			"Wheat: ₹2125 | Onion: ₹1200 | Soybean: ₹4300",
		},
		{
			"market_data shape",
			`{"market_data":[{"commodity":"Cotton","modal_price":6620.5},{}]}`,
			"Cotton: ₹6620.5 | Item: ₹N/A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SummarizeMarket([]byte(tt.payload)))
		})
	}
}
