package surplus

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tamzrod/ohmpilot-controller/internal/config"
)

// Connector runs hooks after every broker (re)connect.
type Connector interface {
	OnConnect(fn func(c mqtt.Client))
}

// Build selects the configured source. conn is required for the mqtt source;
// the subscription is (re)established on every connect.
func Build(cfg config.SurplusConfig, conn Connector, qos byte, log zerolog.Logger) (Source, error) {
	switch cfg.Source {
	case config.SurplusStatic:
		return Static(cfg.StaticW), nil

	case config.SurplusMQTT:
		if conn == nil {
			return nil, errors.New("surplus: mqtt source needs an mqtt connection")
		}
		src, err := NewMQTTSource(MQTTConfig{
			Topic:  cfg.MQTT.Topic,
			Field:  cfg.MQTT.Field,
			Invert: cfg.MQTT.Invert,
			QoS:    qos,
			MaxAge: time.Duration(cfg.MaxAgeMs) * time.Millisecond,
		}, log)
		if err != nil {
			return nil, err
		}
		conn.OnConnect(func(c mqtt.Client) {
			if err := src.Subscribe(c); err != nil {
				log.Error().Err(err).Msg("surplus subscription failed")
			}
		})
		return src, nil

	case config.SurplusMeter:
		return NewMeterSource(MeterConfig{
			URL:      cfg.Meter.URL,
			User:     cfg.Meter.User,
			Password: cfg.Meter.Password,
			Timeout:  time.Duration(cfg.Meter.TimeoutMs) * time.Millisecond,
		})

	default:
		return nil, fmt.Errorf("surplus: unknown source %q", cfg.Source)
	}
}
