// Package auxiliary condenses weather and market payloads for the prompt and
// provides the upstream clients that fetch them.
package auxiliary

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	NotAvailable     = "Not available"
	WeatherError     = "Weather data processing error"
	MarketError      = "Market data processing error"
	NoPrices         = "No current prices available"
	maxWeatherRunes  = 200
	marketTopEntries = 3
)

func parse(payload []byte) (gjson.Result, bool, bool) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" {
		return gjson.Result{}, false, true
	}
	if !gjson.Valid(trimmed) {
		return gjson.Result{}, false, false
	}
	return gjson.Parse(trimmed), true, true
}

func valueOr(r gjson.Result, fallback string) string {
	if !r.Exists() || r.Type == gjson.Null || strings.TrimSpace(r.String()) == "" {
		return fallback
	}
	return r.String()
}

// SummarizeWeather renders current conditions and a forecast headline. It
// never fails: missing input gives NotAvailable and malformed input gives
// WeatherError.
func SummarizeWeather(payload []byte) string {
	doc, ok, valid := parse(payload)
	if !valid || (ok && !doc.IsObject()) {
		return WeatherError
	}
	if !ok {
		return NotAvailable
	}

	current := doc.Get("current")
	summary := fmt.Sprintf("Temp: %s°C, Humidity: %s%%, Rain: %s ",
		valueOr(current.Get("temp"), "N/A"),
		valueOr(current.Get("humidity"), "N/A"),
		valueOr(current.Get("rain"), "No"),
	)

	if forecast := doc.Get("forecast"); forecast.Exists() && forecast.Type != gjson.Null {
		summary += "| 7-day: " + forecastHeadline(forecast)
	}

	runes := []rune(summary)
	if len(runes) > maxWeatherRunes {
		runes = runes[:maxWeatherRunes]
	}
	return string(runes)
}

// forecastHeadline accepts either {"summary": "..."} or a weatherapi.com
// forecastday array.
func forecastHeadline(forecast gjson.Result) string {
	if forecast.IsObject() {
		return valueOr(forecast.Get("summary"), "Variable conditions")
	}
	if forecast.IsArray() {
		days := forecast.Array()
		if len(days) > 0 {
			return valueOr(days[0].Get("day.condition.text"), "Variable conditions")
		}
	}
	return "Variable conditions"
}

// SummarizeMarket lists the first three commodity prices.
func SummarizeMarket(payload []byte) string {
	doc, ok, valid := parse(payload)
	if !valid || (ok && !doc.IsObject()) {
		return MarketError
	}
	if !ok {
		return NotAvailable
	}

	prices := doc.Get("prices")
	if !prices.Exists() {
		prices = doc.Get("market_data")
	}
	if !prices.IsArray() || len(prices.Array()) == 0 {
		return NoPrices
	}

	entries := prices.Array()
	if len(entries) > marketTopEntries {
		entries = entries[:marketTopEntries]
	}

	parts := make([]string, 0, len(entries))
	for _, p := range entries {
		commodity := valueOr(p.Get("commodity"), valueOr(p.Get("crop"), "Item"))
		price := valueOr(p.Get("price"), valueOr(p.Get("modal_price"), "N/A"))
		parts = append(parts, fmt.Sprintf("%s: ₹%s", commodity, price))
	}
	return strings.Join(parts, " | ")
}
