package surplus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Subscriber is the part of mqtt.Client the source needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// MQTTConfig selects the topic and payload shape.
type MQTTConfig struct {
	Topic string
	// Field names a numeric JSON field; empty means the payload is a number.
	Field  string
	Invert bool
	QoS    byte
	MaxAge time.Duration
}

// MQTTSource tracks the last surplus value published on a topic.
type MQTTSource struct {
	cfg MQTTConfig
	log zerolog.Logger
	now func() time.Time

	mu  sync.RWMutex
	w   int
	at  time.Time
	has bool
}

// NewMQTTSource creates a source. Call Subscribe to start receiving.
func NewMQTTSource(cfg MQTTConfig, log zerolog.Logger) (*MQTTSource, error) {
	if cfg.Topic == "" {
		return nil, errors.New("surplus: mqtt topic required")
	}
	return &MQTTSource{cfg: cfg, log: log, now: time.Now}, nil
}

// Subscribe registers the topic handler.
func (s *MQTTSource) Subscribe(sub Subscriber) error {
	token := sub.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handle)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("surplus: subscribe %q: %w", s.cfg.Topic, err)
	}
	s.log.Info().Str("topic", s.cfg.Topic).Msg("subscribed to surplus topic")
	return nil
}

// SurplusW returns the last value if it is fresh enough.
func (s *MQTTSource) SurplusW(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.has {
		return 0, ErrNoValue
	}
	if s.cfg.MaxAge > 0 && s.now().Sub(s.at) > s.cfg.MaxAge {
		return 0, ErrStale
	}
	return s.w, nil
}

func (s *MQTTSource) handle(_ mqtt.Client, msg mqtt.Message) {
	v, err := parseValue(msg.Payload(), s.cfg.Field)
	if err != nil {
		s.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("ignoring surplus payload")
		return
	}
	if s.cfg.Invert {
		v = -v
	}

	s.mu.Lock()
	s.w = int(math.Round(v))
	s.at = s.now()
	s.has = true
	s.mu.Unlock()
}

func parseValue(payload []byte, field string) (float64, error) {
	if field == "" {
		return strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return 0, fmt.Errorf("surplus: decode payload: %w", err)
	}
	raw, ok := doc[field]
	if !ok {
		return 0, fmt.Errorf("surplus: field %q missing", field)
	}
	return parseNumber(raw)
}

// parseNumber accepts a JSON number or a numeric string.
func parseNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("surplus: not a number: %s", raw)
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
