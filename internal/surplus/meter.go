package surplus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"
)

// OBIS codes reported by the smart meter.
const (
	obisImportW = "1.7.0"
	obisExportW = "2.7.0"
)

// MeterConfig points at a smart meter's getLastData endpoint.
type MeterConfig struct {
	URL      string // base, e.g. http://192.168.1.20
	User     string
	Password string
	Timeout  time.Duration
}

// MeterSource polls the smart meter on demand, once per cycle.
type MeterSource struct {
	endpoint string
	http     *http.Client
}

// NewMeterSource creates a meter source.
func NewMeterSource(cfg MeterConfig) (*MeterSource, error) {
	if cfg.URL == "" {
		return nil, errors.New("surplus: meter url required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("surplus: meter timeout must be > 0")
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("surplus: meter url: %w", err)
	}
	u = u.JoinPath("getLastData")
	q := u.Query()
	q.Set("user", cfg.User)
	q.Set("password", cfg.Password)
	u.RawQuery = q.Encode()

	return &MeterSource{
		endpoint: u.String(),
		http:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SurplusW returns export minus import.
func (m *MeterSource) SurplusW(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("surplus: meter request: %w", err)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("surplus: meter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("surplus: meter: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, fmt.Errorf("surplus: meter read: %w", err)
	}

	return parseMeter(body)
}

// parseMeter extracts import/export power. A missing code counts as 0;
// both missing is an error.
func parseMeter(body []byte) (int, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("surplus: meter payload: %w", err)
	}

	rawIn, hasIn := doc[obisImportW]
	rawOut, hasOut := doc[obisExportW]
	if !hasIn && !hasOut {
		return 0, errors.New("surplus: meter payload has no power fields")
	}

	var in, out float64
	var err error
	if hasIn {
		if in, err = parseNumber(rawIn); err != nil {
			return 0, err
		}
	}
	if hasOut {
		if out, err = parseNumber(rawOut); err != nil {
			return 0, err
		}
	}

	return int(math.Round(out - in)), nil
}
