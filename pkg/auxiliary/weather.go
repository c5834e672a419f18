package auxiliary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/xhad/agrisaathi/pkg/cache"
	"github.com/xhad/agrisaathi/pkg/logger"
)

var ErrNoWeatherKey = errors.New("weather API key not configured")

type WeatherConfig struct {
	BaseURL  string
	APIKey   string
	Days     int
	Timeout  time.Duration
	CacheTTL time.Duration
	CacheMax int
	Logger   logger.Logger
}

// WeatherClient fetches forecasts from weatherapi.com and caches them per
// pincode.
type WeatherClient struct {
	config WeatherConfig
	client *resty.Client
	cache  *cache.TTL[string, json.RawMessage]
	log    logger.Logger
}

func NewWeatherClient(config WeatherConfig) *WeatherClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://api.weatherapi.com/v1"
	}
	if config.Days == 0 {
		config.Days = 7
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &WeatherClient{
		config: config,
		client: resty.New().SetBaseURL(config.BaseURL).SetTimeout(config.Timeout),
		cache:  cache.NewTTL[string, json.RawMessage](config.CacheMax, config.CacheTTL),
		log:    logger.Or(config.Logger),
	}
}

type weatherPayload struct {
	Current  weatherCurrent  `json:"current"`
	Forecast json.RawMessage `json:"forecast"`
}

type weatherCurrent struct {
	Temp      *float64 `json:"temp,omitempty"`
	Humidity  *float64 `json:"humidity,omitempty"`
	Rain      string   `json:"rain"`
	Condition string   `json:"condition,omitempty"`
}

// Weather returns the normalized payload understood by SummarizeWeather.
func (w *WeatherClient) Weather(ctx context.Context, pincode string) (json.RawMessage, error) {
	if cached, _, ok := w.cache.Get(pincode); ok {
		w.log.Debug("weather cache hit", "pincode", pincode)
		return cached, nil
	}

	if w.config.APIKey == "" {
		return nil, ErrNoWeatherKey
	}

	w.log.Info("weather cache miss, fetching", "pincode", pincode)
	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    w.config.APIKey,
			"q":      "India " + pincode,
			"days":   strconv.Itoa(w.config.Days),
			"aqi":    "no",
			"alerts": "no",
		}).
		Get("/forecast.json")
	if err != nil {
		return nil, fmt.Errorf("error fetching weather data: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("weather API responded with status %d", resp.StatusCode())
	}

	payload, err := normalizeWeather(resp.Body())
	if err != nil {
		return nil, err
	}

	w.cache.Set(pincode, payload)
	return payload, nil
}

func normalizeWeather(body []byte) (json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("weather API returned invalid JSON")
	}
	doc := gjson.ParseBytes(body)

	var p weatherPayload
	if t := doc.Get("current.temp_c"); t.Exists() {
		v := t.Float()
		p.Current.Temp = &v
	}
	if h := doc.Get("current.humidity"); h.Exists() {
		v := h.Float()
		p.Current.Humidity = &v
	}
	p.Current.Rain = "No"
	if mm := doc.Get("current.precip_mm").Float(); mm > 0 {
		p.Current.Rain = fmt.Sprintf("Yes (%.1f mm)", mm)
	}
	p.Current.Condition = doc.Get("current.condition.text").String()

	if days := doc.Get("forecast.forecastday"); days.IsArray() {
		p.Forecast = json.RawMessage(days.Raw)
	}

	out, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode weather payload: %w", err)
	}
	return out, nil
}
