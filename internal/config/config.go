package config

type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Poll        PollConfig        `yaml:"poll"`
	Control     ControlConfig     `yaml:"control"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Command     CommandConfig     `yaml:"command"`
	TimeSync    TimeSyncConfig    `yaml:"time_sync"`
	Surplus     SurplusConfig     `yaml:"surplus"`
	Logging     LoggingConfig     `yaml:"logging"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	HTTP        HTTPConfig        `yaml:"http"`
	CSV         CSVConfig         `yaml:"csv"`
	Mirror      MirrorConfig      `yaml:"mirror"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Host       string `yaml:"host"`
	ModbusPort int    `yaml:"modbus_port"`
	HTTPPort   int    `yaml:"http_port"`
	UnitID     uint8  `yaml:"unit_id"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs      int  `yaml:"interval_ms"`
	StaleAfterMs    int  `yaml:"stale_after_ms"`
	HeaterOffOnExit bool `yaml:"heater_off_on_exit"`
}

// ---- CONTROL POLICY ----

type ControlConfig struct {
	MaxTempC           float64 `yaml:"max_temp_c"`
	ReservedPowerW     int     `yaml:"reserved_power_w"`
	MinHeaterPowerW    int     `yaml:"min_heater_power_w"`
	MinSetpointChangeW int     `yaml:"min_setpoint_change_w"`
	MaxPowerW          int     `yaml:"max_power_w"` // 0 = unlimited
	Active             bool    `yaml:"active"`
}

// ---- TEMPERATURE CALIBRATION ----

type CalibrationConfig struct {
	Gain   float64 `yaml:"gain"`
	Offset float64 `yaml:"offset"`
}

// ---- HTTP COMMAND ENDPOINT ----

type CommandConfig struct {
	Heater1Phases string `yaml:"heater1_phases"`
	Heater1PowerW int    `yaml:"heater1_power_w"`
	TimeoutMs     int    `yaml:"timeout_ms"`
}

// ---- CLOCK SYNC ----

type TimeSyncConfig struct {
	Enabled   bool   `yaml:"enabled"`
	IntervalS int    `yaml:"interval_s"`
	Timezone  string `yaml:"timezone"` // IANA name; empty = local

	// FixedOffsetMinutes overrides the zone offset when set.
	FixedOffsetMinutes *int `yaml:"fixed_offset_minutes"`
}

// ---- SURPLUS SOURCE ----

const (
	SurplusStatic = "static"
	SurplusMQTT   = "mqtt"
	SurplusMeter  = "meter"
)

type SurplusConfig struct {
	Source   string            `yaml:"source"`
	StaticW  int               `yaml:"static_w"`
	MaxAgeMs int               `yaml:"max_age_ms"`
	MQTT     SurplusMQTTConfig `yaml:"mqtt"`
	Meter    MeterConfig       `yaml:"meter"`
}

type SurplusMQTTConfig struct {
	Topic string `yaml:"topic"`
	// Field selects a numeric field of a JSON payload; empty = plain number.
	Field string `yaml:"field"`
	// Invert flips the sign (grid meters report export as negative).
	Invert bool `yaml:"invert"`
}

type MeterConfig struct {
	URL       string `yaml:"url"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- LOGGING ----

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Debug      bool   `yaml:"debug"`
	Output     string `yaml:"output"`
	TimeFormat string `yaml:"time_format"`
}

// ---- MQTT BRIDGE ----

type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client_id"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	TopicPrefix     string `yaml:"topic_prefix"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	QoS             byte   `yaml:"qos"`
}

// ---- HTTP API / METRICS ----

type HTTPConfig struct {
	Listen  string `yaml:"listen"` // empty = disabled
	API     bool   `yaml:"api"`
	Metrics bool   `yaml:"metrics"`
}

// ---- CSV LOG ----

type CSVConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// ---- MODBUS MIRROR ----

type MirrorConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	Address   uint16 `yaml:"address"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// Device status block (optional, opt-in)
	StatusUnitID *uint8  `yaml:"status_unit_id"`
	StatusSlot   *uint16 `yaml:"status_slot"`
	DeviceName   string  `yaml:"device_name"`
}
