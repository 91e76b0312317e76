package mqtt

import (
	"encoding/json"
)

// HassConfig is a Home Assistant MQTT discovery payload.
type HassConfig struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"uniq_id"`
	StateTopic        string     `json:"stat_t"`
	ValueTemplate     string     `json:"val_tpl,omitempty"`
	CommandTopic      string     `json:"cmd_t,omitempty"`
	AvailabilityTopic string     `json:"avty_t"`
	DeviceClass       string     `json:"dev_cla,omitempty"`
	StateClass        string     `json:"stat_cla,omitempty"`
	UnitOfMeasurement string     `json:"unit_of_meas,omitempty"`
	Min               *float64   `json:"min,omitempty"`
	Max               *float64   `json:"max,omitempty"`
	Step              *float64   `json:"step,omitempty"`
	PayloadOn         string     `json:"pl_on,omitempty"`
	PayloadOff        string     `json:"pl_off,omitempty"`
	Device            HassDevice `json:"dev"`
}

type HassDevice struct {
	IDs          string `json:"ids"`
	Name         string `json:"name"`
	Manufacturer string `json:"mf"`
	Model        string `json:"mdl"`
}

type discoveryEntry struct {
	component string // sensor, number, switch
	key       string
	cfg       HassConfig
}

func f64(v float64) *float64 { return &v }

// discoveryEntries lists every entity the bridge exposes.
func (b *Bridge) discoveryEntries() []discoveryEntry {
	sensor := func(key, name, field, devClass, stateClass, unit string) discoveryEntry {
		return discoveryEntry{component: "sensor", key: key, cfg: HassConfig{
			Name:              name,
			StateTopic:        b.StateTopic(),
			ValueTemplate:     "{{ value_json." + field + " }}",
			DeviceClass:       devClass,
			StateClass:        stateClass,
			UnitOfMeasurement: unit,
		}}
	}

	return []discoveryEntry{
		sensor("temperature", "Temperature", "temperature_c", "temperature", "measurement", "°C"),
		sensor("active_power", "Heater power", "active_power_w", "power", "measurement", "W"),
		sensor("energy", "Energy", "energy_wh", "energy", "total_increasing", "Wh"),
		sensor("setpoint", "Setpoint", "setpoint_w", "power", "measurement", "W"),
		sensor("surplus", "Surplus", "surplus_w", "power", "measurement", "W"),
		sensor("status", "Status", "status", "", "", ""),
		sensor("health", "Health", "health", "", "", ""),
		{component: "number", key: controlMaxPower, cfg: HassConfig{
			Name:              "Max power",
			StateTopic:        b.topic(controlMaxPower),
			CommandTopic:      b.topic(controlMaxPower, "set"),
			DeviceClass:       "power",
			UnitOfMeasurement: "W",
			Min:               f64(0),
			Max:               f64(3700),
			Step:              f64(100),
		}},
		{component: "number", key: controlMaxTemp, cfg: HassConfig{
			Name:              "Max temperature",
			StateTopic:        b.topic(controlMaxTemp),
			CommandTopic:      b.topic(controlMaxTemp, "set"),
			DeviceClass:       "temperature",
			UnitOfMeasurement: "°C",
			Min:               f64(10),
			Max:               f64(55),
			Step:              f64(1),
		}},
		{component: "switch", key: controlActive, cfg: HassConfig{
			Name:         "Control active",
			StateTopic:   b.topic(controlActive),
			CommandTopic: b.topic(controlActive, "set"),
			PayloadOn:    "ON",
			PayloadOff:   "OFF",
		}},
	}
}

// DiscoveryTopic is <discovery>/<component>/<device>/<key>/config.
func (b *Bridge) DiscoveryTopic(component, key string) string {
	return b.cfg.DiscoveryPrefix + "/" + component + "/" + b.cfg.DeviceID + "/" + key + "/config"
}

func (b *Bridge) publishDiscovery() {
	dev := HassDevice{
		IDs:          b.cfg.DeviceID,
		Name:         "Ohmpilot",
		Manufacturer: "Fronius",
		Model:        "Ohmpilot",
	}

	for _, e := range b.discoveryEntries() {
		e.cfg.UniqueID = b.cfg.DeviceID + "_" + e.key
		e.cfg.AvailabilityTopic = b.cfg.TopicPrefix + "/status"
		e.cfg.Device = dev

		payload, err := json.Marshal(&e.cfg)
		if err != nil {
			b.log.Error().Err(err).Str("entity", e.key).Msg("encode discovery")
			continue
		}
		b.publish(b.DiscoveryTopic(e.component, e.key), true, payload)
	}
}
