package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Target temperature range accepted by the command endpoint.
const (
	MinTargetTempC = 10
	MaxTargetTempC = 55
)

// ErrTemperatureOutOfRange is returned before any request is sent.
var ErrTemperatureOutOfRange = errors.New("command: target temperature out of range")

// CommandConfig configures the HTTP command endpoint.
type CommandConfig struct {
	BaseURL       string // http://host:port
	Name          string
	Heater1Phases string
	Heater1PowerW int
	Timeout       time.Duration
}

// CommandClient issues single-shot commands to the Ohmpilot web interface.
// No session state, no retries.
type CommandClient struct {
	cfg  CommandConfig
	http *http.Client
}

// NewCommandClient validates cfg and builds a client.
func NewCommandClient(cfg CommandConfig) (*CommandClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("command: base url required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("command: base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "Ohmpilot"
	}

	return &CommandClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SetTargetTemperature sets the maximum water temperature (°C) and puts
// heater 1 into manual operation with the configured phases and power.
func (c *CommandClient) SetTargetTemperature(ctx context.Context, tempC int) error {
	if tempC < MinTargetTempC || tempC > MaxTargetTempC {
		return fmt.Errorf("%w: %d (allowed %d..%d)", ErrTemperatureOutOfRange, tempC, MinTargetTempC, MaxTargetTempC)
	}

	u := c.cfg.BaseURL + "/set.cgi?" + c.targetTemperatureQuery(tempC).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &Failure{Kind: KindProtocol, Op: "command", Msg: "build request", Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Failure{Kind: KindTransport, Op: "command", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Failure{
			Kind: KindProtocol, Op: "command",
			Msg: fmt.Sprintf("unexpected status %s", resp.Status),
		}
	}
	return nil
}

// targetTemperatureQuery builds the parameter set of the set.cgi form.
// Heater 2 is always disabled.
func (c *CommandClient) targetTemperatureQuery(tempC int) url.Values {
	q := url.Values{}
	q.Set("name", c.cfg.Name)
	q.Set("H1Auto", "manually")
	q.Set("H1Ph", c.cfg.Heater1Phases)
	q.Set("H1Power", strconv.Itoa(c.cfg.Heater1PowerW))
	q.Set("tempInst", "on")
	q.Set("legCyc", "0")
	q.Set("maxTempUsed", "on")
	q.Set("maxTempCyc", strconv.Itoa(tempC))
	q.Set("H2Ph", "aus")
	q.Set("H2Power", "0")
	q.Set("H2ThModeOn", "Einspeisung")
	q.Set("H2ThOn", "4000")
	q.Set("H2ThModeOff", "Einspeisung")
	q.Set("H2ThOff", "0")
	return q
}
