package auxiliary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/pkg/logger"
)

// MarketFile serves prices from a local JSON file of
// [{"location": ..., "crop": ..., "price": ...}] records.
type MarketFile struct {
	path string
	log  logger.Logger
}

func NewMarketFile(path string, log logger.Logger) *MarketFile {
	return &MarketFile{path: path, log: logger.Or(log)}
}

type marketPrice struct {
	State     string  `json:"state"`
	APMC      string  `json:"apmc"`
	Commodity string  `json:"commodity"`
	Price     float64 `json:"price"`
	Unit      string  `json:"unit"`
}

type marketPayload struct {
	Prices []marketPrice `json:"prices"`
}

// Market returns the prices for the location's state, or every entry when
// none match.
func (m *MarketFile) Market(_ context.Context, location models.Location) (json.RawMessage, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("could not read market data file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("could not parse market data file %s", m.path)
	}

	var all, local []marketPrice
	gjson.ParseBytes(data).ForEach(func(_, item gjson.Result) bool {
		p := marketPrice{
			State:     valueOr(item.Get("location"), "N/A"),
			APMC:      valueOr(item.Get("location"), "N/A"),
			Commodity: valueOr(item.Get("crop"), "N/A"),
			Price:     item.Get("price").Float(),
			Unit:      "Quintal",
		}
		all = append(all, p)
		if location.State != "" && strings.EqualFold(p.State, location.State) {
			local = append(local, p)
		}
		return true
	})

	prices := all
	if len(local) > 0 {
		prices = local
	}
	m.log.Debug("loaded market prices", "file", m.path, "total", len(all), "returned", len(prices))

	if prices == nil {
		prices = []marketPrice{}
	}
	return json.Marshal(marketPayload{Prices: prices})
}
