// Package mqtt bridges the controller to an MQTT broker: retained state,
// Home Assistant discovery, availability and control topics.
package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// ConnConfig is the broker connection config.
type ConnConfig struct {
	Broker      string
	ClientID    string // empty = generated
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// AvailabilityTopic is where online/offline is published.
func (c ConnConfig) AvailabilityTopic() string {
	return c.TopicPrefix + "/status"
}

// Conn owns the paho client and the hooks run on every (re)connect.
type Conn struct {
	cfg    ConnConfig
	log    zerolog.Logger
	client paho.Client

	mu    sync.Mutex
	hooks []func(paho.Client)
}

// NewConn builds the client. It does not connect.
func NewConn(cfg ConnConfig, log zerolog.Logger) (*Conn, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker required")
	}
	if cfg.TopicPrefix == "" {
		return nil, errors.New("mqtt: topic prefix required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "ohmpilot-" + uuid.NewString()
	}

	c := &Conn{cfg: cfg, log: log}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30*time.Second).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		// control handlers do blocking device IO
		SetOrderMatters(false).
		SetWill(cfg.AvailabilityTopic(), payloadOffline, cfg.QoS, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	}

	c.client = paho.NewClient(opts)
	return c, nil
}

// OnConnect registers a hook run after every successful (re)connect.
// Register hooks before Connect.
func (c *Conn) OnConnect(fn func(paho.Client)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Client returns the underlying client.
func (c *Conn) Client() paho.Client {
	return c.client
}

// Config returns the effective config.
func (c *Conn) Config() ConnConfig {
	return c.cfg
}

// Connect waits for the first connection attempt.
func (c *Conn) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt: connect to %s timed out", c.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect to %s: %w", c.cfg.Broker, err)
	}
	return nil
}

// Close publishes offline and disconnects.
func (c *Conn) Close() {
	if c.client.IsConnected() {
		t := c.client.Publish(c.cfg.AvailabilityTopic(), c.cfg.QoS, true, payloadOffline)
		t.WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(250)
}

func (c *Conn) onConnect(client paho.Client) {
	c.log.Info().Str("broker", c.cfg.Broker).Msg("mqtt connected")

	t := client.Publish(c.cfg.AvailabilityTopic(), c.cfg.QoS, true, payloadOnline)
	if t.WaitTimeout(publishTimeout) && t.Error() != nil {
		c.log.Warn().Err(t.Error()).Msg("availability publish failed")
	}

	c.mu.Lock()
	hooks := make([]func(paho.Client), len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(client)
	}
}
