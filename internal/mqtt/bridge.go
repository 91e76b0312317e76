package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tamzrod/ohmpilot-controller/internal/poller"
	"github.com/tamzrod/ohmpilot-controller/internal/status"
	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

// Client is the part of paho.Client the bridge uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Controller is the operator control surface.
type Controller interface {
	Controls() poller.Controls
	SetMaxPower(w int) error
	SetMaxTemperature(ctx context.Context, tempC int) error
	SetActive(active bool)
}

// HealthSource reports device health.
type HealthSource interface {
	Snapshot() status.Snapshot
}

// BridgeConfig names the topics.
type BridgeConfig struct {
	TopicPrefix     string
	DiscoveryPrefix string // empty disables discovery
	DeviceID        string
	QoS             byte
	CommandTimeout  time.Duration
}

// Bridge publishes cycle results and applies control messages.
// It implements telemetry.Listener.
type Bridge struct {
	cfg    BridgeConfig
	ctrl   Controller
	health HealthSource
	log    zerolog.Logger

	mu     sync.RWMutex
	client Client
}

// State is the retained JSON document on <prefix>/state.
type State struct {
	telemetry.View
	Health   string          `json:"health"`
	Controls poller.Controls `json:"controls"`
}

func NewBridge(cfg BridgeConfig, ctrl Controller, health HealthSource, log zerolog.Logger) *Bridge {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = "ohmpilot"
	}
	return &Bridge{cfg: cfg, ctrl: ctrl, health: health, log: log}
}

// ---- topics ----

func (b *Bridge) topic(parts ...string) string {
	return b.cfg.TopicPrefix + "/" + strings.Join(parts, "/")
}

func (b *Bridge) StateTopic() string { return b.topic("state") }

const (
	controlMaxPower = "max_power"
	controlMaxTemp  = "max_temperature"
	controlActive   = "active"
)

// Attach subscribes the control topics and publishes discovery and the
// current controls. Call on every (re)connect.
func (b *Bridge) Attach(c Client) error {
	b.mu.Lock()
	b.client = c
	b.mu.Unlock()

	handlers := map[string]paho.MessageHandler{
		controlMaxPower: b.handleMaxPower,
		controlMaxTemp:  b.handleMaxTemperature,
		controlActive:   b.handleActive,
	}
	for name, h := range handlers {
		t := c.Subscribe(b.topic(name, "set"), b.cfg.QoS, h)
		t.WaitTimeout(publishTimeout)
		if err := t.Error(); err != nil {
			return fmt.Errorf("mqtt: subscribe %s: %w", name, err)
		}
	}

	if b.cfg.DiscoveryPrefix != "" {
		b.publishDiscovery()
	}
	b.publishControls()
	return nil
}

// Publish implements telemetry.Listener.
func (b *Bridge) Publish(res telemetry.CycleResult) {
	if b.currentClient() == nil || res.Stalled {
		return
	}

	st := State{
		View:     res.Snapshot.View(),
		Controls: b.ctrl.Controls(),
		Health:   status.HealthName(status.HealthUnknown),
	}
	if b.health != nil {
		st.Health = status.HealthName(b.health.Snapshot().Health)
	}

	payload, err := json.Marshal(st)
	if err != nil {
		b.log.Error().Err(err).Msg("encode state")
		return
	}
	b.publish(b.StateTopic(), true, payload)
}

// ---- control handlers ----

func (b *Bridge) handleMaxPower(_ paho.Client, msg paho.Message) {
	v, err := parseInt(msg.Payload())
	if err == nil {
		err = b.ctrl.SetMaxPower(v)
	}
	b.afterControl(controlMaxPower, msg, err)
}

func (b *Bridge) handleMaxTemperature(_ paho.Client, msg paho.Message) {
	v, err := parseInt(msg.Payload())
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.CommandTimeout)
		err = b.ctrl.SetMaxTemperature(ctx, v)
		cancel()
	}
	b.afterControl(controlMaxTemp, msg, err)
}

func (b *Bridge) handleActive(_ paho.Client, msg paho.Message) {
	v, err := parseSwitch(msg.Payload())
	if err == nil {
		b.ctrl.SetActive(v)
	}
	b.afterControl(controlActive, msg, err)
}

func (b *Bridge) afterControl(name string, msg paho.Message, err error) {
	if err != nil {
		b.log.Warn().Err(err).
			Str("control", name).
			Str("payload", string(msg.Payload())).
			Msg("control message rejected")
	}
	// Always republish so the UI snaps back on rejection.
	b.publishControls()
}

func (b *Bridge) publishControls() {
	c := b.ctrl.Controls()
	active := "OFF"
	if c.Active {
		active = "ON"
	}
	b.publish(b.topic(controlMaxPower), true, strconv.Itoa(c.MaxPowerW))
	b.publish(b.topic(controlMaxTemp), true, strconv.FormatFloat(c.MaxTempC, 'f', -1, 64))
	b.publish(b.topic(controlActive), true, active)
}

func (b *Bridge) currentClient() Client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client
}

func (b *Bridge) publish(topic string, retained bool, payload interface{}) {
	c := b.currentClient()
	if c == nil {
		return
	}
	t := c.Publish(topic, b.cfg.QoS, retained, payload)
	if !t.WaitTimeout(publishTimeout) {
		b.log.Warn().Str("topic", topic).Msg("publish timed out")
		return
	}
	if err := t.Error(); err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
	}
}

func parseInt(payload []byte) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return 0, fmt.Errorf("mqtt: not a number: %q", payload)
	}
	return int(math.Round(f)), nil
}

func parseSwitch(payload []byte) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON", "TRUE", "1":
		return true, nil
	case "OFF", "FALSE", "0":
		return false, nil
	}
	return false, fmt.Errorf("mqtt: not a switch value: %q", payload)
}
