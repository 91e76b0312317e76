package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/ohmpilot-controller/internal/poller"
	"github.com/tamzrod/ohmpilot-controller/internal/status"
	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeMessage struct{ payload string }

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return "" }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return []byte(m.payload) }
func (m *fakeMessage) Ack()              {}

type published struct {
	retained bool
	payload  string
}

type fakeClient struct {
	mu       sync.Mutex
	pubs     map[string]published
	handlers map[string]paho.MessageHandler
	subErr   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{pubs: map[string]published{}, handlers: map[string]paho.MessageHandler{}}
}

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s string
	switch p := payload.(type) {
	case string:
		s = p
	case []byte:
		s = string(p)
	}
	f.pubs[topic] = published{retained: retained, payload: s}
	return &fakeToken{}
}

func (f *fakeClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = cb
	return &fakeToken{err: f.subErr}
}

func (f *fakeClient) send(topic, payload string) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	h(nil, &fakeMessage{payload: payload})
}

func (f *fakeClient) get(topic string) (published, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pubs[topic]
	return p, ok
}

type fakeController struct {
	c       poller.Controls
	tempErr error
}

func (f *fakeController) Controls() poller.Controls { return f.c }

func (f *fakeController) SetMaxPower(w int) error {
	if w < 0 || w > 3700 {
		return poller.ErrMaxPowerOutOfRange
	}
	f.c.MaxPowerW = w
	return nil
}

func (f *fakeController) SetMaxTemperature(_ context.Context, t int) error {
	if f.tempErr != nil {
		return f.tempErr
	}
	f.c.MaxTempC = float64(t)
	return nil
}

func (f *fakeController) SetActive(a bool) { f.c.Active = a }

type fakeHealth struct{ s status.Snapshot }

func (f fakeHealth) Snapshot() status.Snapshot { return f.s }

func newTestBridge(t *testing.T) (*Bridge, *fakeClient, *fakeController) {
	t.Helper()
	ctrl := &fakeController{c: poller.Controls{MaxPowerW: 3700, MaxTempC: 52.5, Active: true}}
	b := NewBridge(BridgeConfig{
		TopicPrefix:     "ohmpilot",
		DiscoveryPrefix: "homeassistant",
		DeviceID:        "ohmpilot_1",
	}, ctrl, fakeHealth{s: status.Snapshot{Health: status.HealthOK}}, zerolog.Nop())
	c := newFakeClient()
	require.NoError(t, b.Attach(c))
	return b, c, ctrl
}

func TestAttach_SubscribesAndPublishesControls(t *testing.T) {
	_, c, _ := newTestBridge(t)

	for _, topic := range []string{"ohmpilot/max_power/set", "ohmpilot/max_temperature/set", "ohmpilot/active/set"} {
		assert.Contains(t, c.handlers, topic)
	}

	p, ok := c.get("ohmpilot/max_power")
	require.True(t, ok)
	assert.True(t, p.retained)
	assert.Equal(t, "3700", p.payload)

	p, _ = c.get("ohmpilot/max_temperature")
	assert.Equal(t, "52.5", p.payload)
	p, _ = c.get("ohmpilot/active")
	assert.Equal(t, "ON", p.payload)
}

func TestAttach_SubscribeError(t *testing.T) {
	b := NewBridge(BridgeConfig{TopicPrefix: "p"}, &fakeController{}, nil, zerolog.Nop())
	c := newFakeClient()
	c.subErr = errors.New("not authorized")
	assert.Error(t, b.Attach(c))
}

func TestDiscovery(t *testing.T) {
	_, c, _ := newTestBridge(t)

	p, ok := c.get("homeassistant/sensor/ohmpilot_1/temperature/config")
	require.True(t, ok)
	assert.True(t, p.retained)

	var cfg HassConfig
	require.NoError(t, json.Unmarshal([]byte(p.payload), &cfg))
	assert.Equal(t, "ohmpilot_1_temperature", cfg.UniqueID)
	assert.Equal(t, "ohmpilot/state", cfg.StateTopic)
	assert.Equal(t, "{{ value_json.temperature_c }}", cfg.ValueTemplate)
	assert.Equal(t, "ohmpilot/status", cfg.AvailabilityTopic)
	assert.Equal(t, "ohmpilot_1", cfg.Device.IDs)

	p, ok = c.get("homeassistant/number/ohmpilot_1/max_power/config")
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(p.payload), &cfg))
	assert.Equal(t, "ohmpilot/max_power/set", cfg.CommandTopic)
	require.NotNil(t, cfg.Max)
	assert.Equal(t, 3700.0, *cfg.Max)
	assert.Equal(t, 100.0, *cfg.Step)

	_, ok = c.get("homeassistant/switch/ohmpilot_1/active/config")
	assert.True(t, ok)
}

func TestDiscovery_Disabled(t *testing.T) {
	b := NewBridge(BridgeConfig{TopicPrefix: "p"}, &fakeController{}, nil, zerolog.Nop())
	c := newFakeClient()
	require.NoError(t, b.Attach(c))
	for topic := range c.pubs {
		assert.NotContains(t, topic, "/config")
	}
}

func TestPublish_State(t *testing.T) {
	b, c, _ := newTestBridge(t)

	temp := 45.5
	power := uint32(800)
	res := telemetry.CycleResult{
		Snapshot: telemetry.NewSnapshot(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			telemetry.Readings{TemperatureC: &temp, ActivePowerW: &power}, 700, 300),
		Decided: true,
	}
	b.Publish(res)

	p, ok := c.get("ohmpilot/state")
	require.True(t, ok)
	assert.True(t, p.retained)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(p.payload), &doc))
	assert.Equal(t, 45.5, doc["temperature_c"])
	assert.Equal(t, 700.0, doc["setpoint_w"])
	assert.Equal(t, "ok", doc["health"])
	controls := doc["controls"].(map[string]interface{})
	assert.Equal(t, true, controls["active"])
}

func TestPublish_SkipsStalledAndUnattached(t *testing.T) {
	b, c, _ := newTestBridge(t)
	b.Publish(telemetry.CycleResult{Stalled: true})
	_, ok := c.get("ohmpilot/state")
	assert.False(t, ok)

	unattached := NewBridge(BridgeConfig{TopicPrefix: "p"}, &fakeController{}, nil, zerolog.Nop())
	assert.NotPanics(t, func() { unattached.Publish(telemetry.CycleResult{}) })
}

func TestControlTopics(t *testing.T) {
	_, c, ctrl := newTestBridge(t)

	c.send("ohmpilot/max_power/set", "1500")
	assert.Equal(t, 1500, ctrl.c.MaxPowerW)
	p, _ := c.get("ohmpilot/max_power")
	assert.Equal(t, "1500", p.payload)

	c.send("ohmpilot/max_temperature/set", "48.0")
	assert.Equal(t, 48.0, ctrl.c.MaxTempC)

	c.send("ohmpilot/active/set", "OFF")
	assert.False(t, ctrl.c.Active)
	p, _ = c.get("ohmpilot/active")
	assert.Equal(t, "OFF", p.payload)

	c.send("ohmpilot/active/set", "true")
	assert.True(t, ctrl.c.Active)
}

func TestControlTopics_RejectedValueRepublishesCurrent(t *testing.T) {
	_, c, ctrl := newTestBridge(t)

	c.send("ohmpilot/max_power/set", "9000")
	assert.Equal(t, 3700, ctrl.c.MaxPowerW)
	p, _ := c.get("ohmpilot/max_power")
	assert.Equal(t, "3700", p.payload)

	c.send("ohmpilot/max_power/set", "lots")
	assert.Equal(t, 3700, ctrl.c.MaxPowerW)

	c.send("ohmpilot/active/set", "maybe")
	assert.True(t, ctrl.c.Active)

	ctrl.tempErr = errors.New("device unreachable")
	c.send("ohmpilot/max_temperature/set", "40")
	assert.Equal(t, 52.5, ctrl.c.MaxTempC)
}

func TestNewConn_Validates(t *testing.T) {
	_, err := NewConn(ConnConfig{TopicPrefix: "p"}, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewConn(ConnConfig{Broker: "tcp://localhost:1883"}, zerolog.Nop())
	assert.Error(t, err)

	c, err := NewConn(ConnConfig{Broker: "tcp://localhost:1883", TopicPrefix: "ohmpilot"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Contains(t, c.Config().ClientID, "ohmpilot-")
	assert.Equal(t, "ohmpilot/status", c.Config().AvailabilityTopic())
	assert.NotNil(t, c.Client())
}
