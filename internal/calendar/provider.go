package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ProviderHoliday is one authoritative holiday entry from the external
// source. Compensatory marks a nominal weekend that is worked to offset an
// adjacent holiday block.
type ProviderHoliday struct {
	Date         string `json:"date"` // YYYY-MM-DD
	Name         string `json:"name"`
	Compensatory bool   `json:"compensatory"`
}

// Provider fetches the authoritative holiday list for a year.
type Provider interface {
	FetchYear(ctx context.Context, year int) ([]ProviderHoliday, error)
}

// HTTPProvider fetches holidays from an HTTP endpoint serving
// GET {base}/{year} as a JSON array of ProviderHoliday.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPProvider creates a provider with a bounded request timeout so a
// hung upstream fails the sync instead of blocking it.
func NewHTTPProvider(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// FetchYear implements Provider.
func (p *HTTPProvider) FetchYear(ctx context.Context, year int) ([]ProviderHoliday, error) {
	url := fmt.Sprintf("%s/%d", p.baseURL, year)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build holiday request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("Holiday provider unreachable",
			zap.String("url", url),
			zap.Error(err))
		return nil, fmt.Errorf("holiday provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday provider returned status %d", resp.StatusCode)
	}

	var holidays []ProviderHoliday
	if err := json.NewDecoder(resp.Body).Decode(&holidays); err != nil {
		return nil, fmt.Errorf("failed to decode holiday response: %w", err)
	}
	return holidays, nil
}
