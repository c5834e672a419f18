package auxiliary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/xhad/agrisaathi/internal/models"
)

var (
	ErrInvalidPincode   = errors.New("invalid pincode format")
	ErrLocationNotFound = errors.New("location not found")
)

// PincodeResolver looks up district and state on api.postalpincode.in.
type PincodeResolver struct {
	client *resty.Client
}

func NewPincodeResolver(baseURL string, timeout time.Duration) *PincodeResolver {
	if baseURL == "" {
		baseURL = "https://api.postalpincode.in"
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &PincodeResolver{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func ValidPincode(pincode string) bool {
	if len(pincode) != 6 {
		return false
	}
	for _, r := range pincode {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (p *PincodeResolver) Resolve(ctx context.Context, pincode string) (models.Location, error) {
	if !ValidPincode(pincode) {
		return models.Location{}, fmt.Errorf("%w: %q", ErrInvalidPincode, pincode)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("pincode", pincode).
		Get("/pincode/{pincode}")
	if err != nil {
		return models.Location{}, fmt.Errorf("API request failed for pincode %s: %w", pincode, err)
	}
	if resp.IsError() {
		return models.Location{}, fmt.Errorf("API request failed for pincode %s: status %d", pincode, resp.StatusCode())
	}
	if !gjson.ValidBytes(resp.Body()) {
		return models.Location{}, fmt.Errorf("failed to parse API response for pincode %s", pincode)
	}

	first := gjson.ParseBytes(resp.Body()).Get("0")
	if first.Get("Status").String() != "Success" {
		return models.Location{}, fmt.Errorf("%w for pincode %s: %s",
			ErrLocationNotFound, pincode, valueOr(first.Get("Message"), "No records found"))
	}

	office := first.Get("PostOffice.0")
	loc := models.Location{
		District: office.Get("District").String(),
		State:    office.Get("State").String(),
	}
	if loc.District == "" || loc.State == "" {
		return models.Location{}, fmt.Errorf("%w: district or state missing for pincode %s", ErrLocationNotFound, pincode)
	}
	return loc, nil
}
