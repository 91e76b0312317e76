package writer

import (
	"time"

	"github.com/tamzrod/ohmpilot-controller/internal/config"
	wmodbus "github.com/tamzrod/ohmpilot-controller/internal/writer/modbus"
)

// Mirror bundles the mirror data writer and its optional status writer.
type Mirror struct {
	Data   *MirrorWriter
	Status StatusWriter // nil when the status block is not configured
	Close  func() error
}

// BuildMirror wires both mirror writers to one endpoint client.
// Assumes config has passed validation.
func BuildMirror(m config.MirrorConfig) (*Mirror, error) {
	cli, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: m.Endpoint,
		Timeout:  time.Duration(m.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}

	out := &Mirror{
		Data: NewMirrorWriter(MirrorPlan{
			Endpoint: m.Endpoint,
			UnitID:   m.UnitID,
			Address:  m.Address,
		}, cli),
		Close: cli.Close,
	}

	if m.StatusUnitID != nil && m.StatusSlot != nil {
		out.Status = NewDeviceStatusWriter(StatusPlan{
			Endpoint:   m.Endpoint,
			UnitID:     *m.StatusUnitID,
			Slot:       *m.StatusSlot,
			DeviceName: m.DeviceName,
		}, cli)
	}

	return out, nil
}
