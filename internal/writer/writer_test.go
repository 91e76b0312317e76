package writer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/ohmpilot-controller/internal/register"
	"github.com/tamzrod/ohmpilot-controller/internal/status"
	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

type writeCall struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

type fakeEndpointClient struct {
	calls  []writeCall
	failAt map[uint16]error
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if err := f.failAt[addr]; err != nil {
		return err
	}
	f.calls = append(f.calls, writeCall{unitID: unitID, addr: addr, regs: append([]uint16(nil), regs...)})
	return nil
}

func fullResult(at time.Time) telemetry.CycleResult {
	st := uint16(3)
	temp := 48.26
	power := uint32(70000)
	energy := uint64(1) << 40
	return telemetry.CycleResult{
		Snapshot: telemetry.NewSnapshot(at, telemetry.Readings{
			Status: &st, TemperatureC: &temp, ActivePowerW: &power, EnergyWh: &energy,
		}, 1234, -250),
		Decided: true,
	}
}

// ---- mirror ----

func TestEncodeMirror_Full(t *testing.T) {
	regs := EncodeMirror(fullResult(time.Now()).Snapshot)

	require.Len(t, regs, MirrorWords)
	assert.Equal(t, uint16(3), regs[MirrorStatus])
	assert.Equal(t, uint16(483), regs[MirrorTemperature])
	assert.Equal(t, uint32(70000), register.Decode32(regs[MirrorActivePower], regs[MirrorActivePower+1]))
	assert.Equal(t, uint64(1)<<40, register.Decode64(regs[4], regs[5], regs[6], regs[7]))
	assert.Equal(t, uint32(1234), register.Decode32(regs[MirrorSetpoint], regs[MirrorSetpoint+1]))
	assert.Equal(t, int32(-250), int32(register.Decode32(regs[MirrorSurplus], regs[MirrorSurplus+1])))
	assert.Equal(t, ValidStatus|ValidTemperature|ValidActivePower|ValidEnergy, regs[MirrorValid])
}

func TestEncodeMirror_Partial(t *testing.T) {
	temp := -3.0
	snap := telemetry.NewSnapshot(time.Now(), telemetry.Readings{TemperatureC: &temp}, 0, 0)
	regs := EncodeMirror(snap)

	assert.Equal(t, uint16(0xFFE2), regs[MirrorTemperature]) // -30
	assert.Equal(t, ValidTemperature, regs[MirrorValid])
	assert.Zero(t, regs[MirrorStatus])
}

func TestMirrorWriter(t *testing.T) {
	cli := &fakeEndpointClient{}
	w := NewMirrorWriter(MirrorPlan{Endpoint: "mma:502", UnitID: 7, Address: 100}, cli)

	require.NoError(t, w.Write(fullResult(time.Now())))
	require.Len(t, cli.calls, 1)
	assert.Equal(t, uint8(7), cli.calls[0].unitID)
	assert.Equal(t, uint16(100), cli.calls[0].addr)

	require.NoError(t, w.Write(telemetry.CycleResult{Stalled: true}))
	assert.Len(t, cli.calls, 1, "stalled cycles leave the mirror alone")

	cli.failAt = map[uint16]error{100: errors.New("refused")}
	err := w.Write(fullResult(time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mma:502")
}

// ---- status block ----

func TestStatusWriter_FullThenIncremental(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := NewDeviceStatusWriter(StatusPlan{UnitID: 9, Slot: 2, DeviceName: "OHMPILOT"}, cli)

	require.NoError(t, sw.WriteStatus(status.Snapshot{Health: status.HealthOK, SetpointW: 500}))
	require.Len(t, cli.calls, 1)
	full := cli.calls[0]
	assert.Equal(t, uint16(40), full.addr)
	require.Len(t, full.regs, status.SlotsPerDevice)
	assert.Equal(t, status.HealthOK, full.regs[status.SlotHealthCode])
	assert.Equal(t, "OHMPILOT", register.DecodeString(full.regs[status.SlotDeviceNameStart:]))

	require.NoError(t, sw.WriteStatus(status.Snapshot{Health: status.HealthError, LastErrorCode: 4, SetpointW: 500}))
	require.Len(t, cli.calls, 3)
	assert.Equal(t, uint16(40+status.SlotHealthCode), cli.calls[1].addr)
	assert.Equal(t, []uint16{status.HealthError}, cli.calls[1].regs)
	assert.Equal(t, uint16(40+status.SlotLastErrorCode), cli.calls[2].addr)

	require.NoError(t, sw.WriteStatus(status.Snapshot{Health: status.HealthError, LastErrorCode: 4, SetpointW: 70000}))
	require.Len(t, cli.calls, 4)
	assert.Equal(t, uint16(40+status.SlotSetpointHi), cli.calls[3].addr)
	assert.Equal(t, []uint16{1, 70000 - 65536}, cli.calls[3].regs)
}

func TestStatusWriter_FailureForcesFullReassert(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := NewDeviceStatusWriter(StatusPlan{UnitID: 1}, cli)
	require.NoError(t, sw.WriteStatus(status.Snapshot{Health: status.HealthOK}))

	cli.failAt = map[uint16]error{status.SlotSecondsInError: errors.New("timeout")}
	err := sw.WriteStatus(status.Snapshot{Health: status.HealthStale, SecondsInError: 1})
	require.Error(t, err)

	cli.failAt = nil
	n := len(cli.calls)
	require.NoError(t, sw.WriteStatus(status.Snapshot{Health: status.HealthStale, SecondsInError: 2}))
	require.Len(t, cli.calls, n+1)
	assert.Len(t, cli.calls[n].regs, status.SlotsPerDevice)
}

func TestStatusWriter_FullWriteFailureRetries(t *testing.T) {
	cli := &fakeEndpointClient{failAt: map[uint16]error{0: errors.New("refused")}}
	sw := NewDeviceStatusWriter(StatusPlan{UnitID: 1}, cli)

	assert.Error(t, sw.WriteStatus(status.Snapshot{Health: status.HealthOK}))

	cli.failAt = nil
	require.NoError(t, sw.WriteStatus(status.Snapshot{Health: status.HealthOK}))
	require.Len(t, cli.calls, 1)
	assert.Len(t, cli.calls[0].regs, status.SlotsPerDevice)
}

// ---- csv ----

func TestCSVWriter_DailyFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	defer w.Close()

	day1 := time.Date(2024, 6, 1, 23, 59, 30, 0, time.Local)
	day2 := time.Date(2024, 6, 2, 0, 0, 5, 0, time.Local)

	require.NoError(t, w.Write(fullResult(day1)))
	require.NoError(t, w.Write(telemetry.CycleResult{Stalled: true, Snapshot: telemetry.NewSnapshot(day1, telemetry.Readings{}, 0, 0)}))
	require.NoError(t, w.Write(fullResult(day2)))
	require.NoError(t, w.Close())

	b, err := os.ReadFile(filepath.Join(dir, "logs", FileName("2024-06-01")))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date\tTime\tTemp\tSurplus\tHeater act Power\tHeater set Power", lines[0])
	assert.Equal(t, "01.06.2024\t23:59:30\t48.3\t-250\t70000\t1234", lines[1])

	b, err = os.ReadFile(filepath.Join(dir, "logs", FileName("2024-06-02")))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(b), "\n"))
}

func TestCSVWriter_AppendsWithoutSecondHeader(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)

	for i := 0; i < 2; i++ {
		w, err := NewCSVWriter(dir)
		require.NoError(t, err)
		require.NoError(t, w.Write(fullResult(at)))
		require.NoError(t, w.Close())
	}

	b, err := os.ReadFile(filepath.Join(dir, FileName("2024-06-01")))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(b), "Date\t"))
	assert.Equal(t, 3, strings.Count(string(b), "\n"))
}

func TestCSVWriter_AbsentFieldsAreEmpty(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir)
	require.NoError(t, err)

	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)
	st := uint16(1)
	require.NoError(t, w.Write(telemetry.CycleResult{
		Snapshot: telemetry.NewSnapshot(at, telemetry.Readings{Status: &st}, 0, 100),
	}))
	require.NoError(t, w.Close())

	b, err := os.ReadFile(filepath.Join(dir, FileName("2024-06-01")))
	require.NoError(t, err)
	assert.Contains(t, string(b), "01.06.2024\t10:00:00\t\t100\t\t0\n")
}

func TestNewCSVWriter_RequiresDir(t *testing.T) {
	_, err := NewCSVWriter("")
	assert.Error(t, err)
}

// ---- log ----

func TestLogWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewLogWriter(zerolog.New(&buf))

	require.NoError(t, w.Write(fullResult(time.Now())))
	out := buf.String()
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, `"setpoint_w":1234`)
	assert.Contains(t, out, `"temperature_c":48.26`)

	buf.Reset()
	res := fullResult(time.Now())
	res.WriteErr = errors.New("timeout")
	require.NoError(t, w.Write(res))
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"write_err":"timeout"`)

	buf.Reset()
	require.NoError(t, w.Write(telemetry.CycleResult{Stalled: true}))
	assert.Contains(t, buf.String(), "stalled")
}

func TestListener_LogsErrors(t *testing.T) {
	var buf bytes.Buffer
	cli := &fakeEndpointClient{failAt: map[uint16]error{0: errors.New("refused")}}
	l := Listener(NewMirrorWriter(MirrorPlan{Endpoint: "x"}, cli), zerolog.New(&buf))

	l.Publish(fullResult(time.Now()))
	assert.Contains(t, buf.String(), "writer error")
}
