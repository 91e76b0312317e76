// Package telemetry holds the values published by the poll loop.
// Snapshots are immutable: fields are unexported and copied on construction.
package telemetry

import "time"

// Readings are the decoded fields of one cycle. A nil field means its read failed.
type Readings struct {
	Status       *uint16
	TemperatureC *float64
	ActivePowerW *uint32
	EnergyWh     *uint64
}

// Snapshot is one cycle's telemetry.
type Snapshot struct {
	at time.Time

	status    uint16
	hasStatus bool

	temperatureC   float64
	hasTemperature bool

	activePowerW   uint32
	hasActivePower bool

	energyWh  uint64
	hasEnergy bool

	setpointW int
	surplusW  int
}

// NewSnapshot copies r into a new snapshot.
// setpointW is the setpoint commanded in this cycle, surplusW the surplus used to compute it.
func NewSnapshot(at time.Time, r Readings, setpointW, surplusW int) Snapshot {
	s := Snapshot{at: at, setpointW: setpointW, surplusW: surplusW}
	if r.Status != nil {
		s.status, s.hasStatus = *r.Status, true
	}
	if r.TemperatureC != nil {
		s.temperatureC, s.hasTemperature = *r.TemperatureC, true
	}
	if r.ActivePowerW != nil {
		s.activePowerW, s.hasActivePower = *r.ActivePowerW, true
	}
	if r.EnergyWh != nil {
		s.energyWh, s.hasEnergy = *r.EnergyWh, true
	}
	return s
}

func (s Snapshot) At() time.Time { return s.at }

func (s Snapshot) Status() (uint16, bool) { return s.status, s.hasStatus }

func (s Snapshot) TemperatureC() (float64, bool) { return s.temperatureC, s.hasTemperature }

func (s Snapshot) ActivePowerW() (uint32, bool) { return s.activePowerW, s.hasActivePower }

func (s Snapshot) EnergyWh() (uint64, bool) { return s.energyWh, s.hasEnergy }

func (s Snapshot) SetpointW() int { return s.setpointW }

func (s Snapshot) SurplusW() int { return s.surplusW }

// Empty reports whether every telemetry field is absent.
func (s Snapshot) Empty() bool {
	return !s.hasStatus && !s.hasTemperature && !s.hasActivePower && !s.hasEnergy
}

// View is the serializable form of a snapshot. Absent fields are null.
type View struct {
	At           time.Time `json:"at"`
	Status       *uint16   `json:"status"`
	TemperatureC *float64  `json:"temperature_c"`
	ActivePowerW *uint32   `json:"active_power_w"`
	EnergyWh     *uint64   `json:"energy_wh"`
	SetpointW    int       `json:"setpoint_w"`
	SurplusW     int       `json:"surplus_w"`
}

// View returns a copy suitable for encoding.
func (s Snapshot) View() View {
	v := View{At: s.at, SetpointW: s.setpointW, SurplusW: s.surplusW}
	if s.hasStatus {
		x := s.status
		v.Status = &x
	}
	if s.hasTemperature {
		x := s.temperatureC
		v.TemperatureC = &x
	}
	if s.hasActivePower {
		x := s.activePowerW
		v.ActivePowerW = &x
	}
	if s.hasEnergy {
		x := s.energyWh
		v.EnergyWh = &x
	}
	return v
}
