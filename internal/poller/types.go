package poller

import (
	"time"

	"github.com/tamzrod/ohmpilot-controller/internal/register"
	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

// ReadBlock describes one telemetry read.
type ReadBlock struct {
	Field    string
	Address  uint16
	Quantity uint16
}

// telemetryReads is the fixed read plan of every cycle.
var telemetryReads = []ReadBlock{
	{Field: telemetry.FieldStatus, Address: register.AddrStatus, Quantity: register.StatusWords},
	{Field: telemetry.FieldTemperature, Address: register.AddrTemperature, Quantity: register.TemperatureWords},
	{Field: telemetry.FieldActivePower, Address: register.AddrActivePower, Quantity: register.ActivePowerWords},
	{Field: telemetry.FieldEnergy, Address: register.AddrEnergy, Quantity: register.EnergyWords},
}

// Stage is the position of the coordinator in its cycle.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageReading   Stage = "reading"
	StageDeciding  Stage = "deciding"
	StageWriting   Stage = "writing"
	StagePublished Stage = "published"
	StageStalled   Stage = "stalled"
)

// ControlState is carried across cycles.
type ControlState struct {
	PreviousSetpointW int
	LastSyncTime      time.Time
}

// Controls is the writable control surface.
type Controls struct {
	MaxPowerW int     `json:"max_power_w"`
	MaxTempC  float64 `json:"max_temperature_c"`
	Active    bool    `json:"active"`
}
