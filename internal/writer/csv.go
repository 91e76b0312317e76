package writer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

var csvHeader = []string{"Date", "Time", "Temp", "Surplus", "Heater act Power", "Heater set Power"}

// CSVWriter appends one tab-separated row per cycle to a file named after
// the cycle's local date. A new file is started at midnight.
type CSVWriter struct {
	dir string

	mu   sync.Mutex
	day  string
	file *os.File
	csv  *csv.Writer
}

// NewCSVWriter creates the directory if needed. Files are opened lazily.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if dir == "" {
		return nil, errors.New("csv writer: dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv writer: %w", err)
	}
	return &CSVWriter{dir: dir}, nil
}

// FileName returns the file used for a given date (YYYY-MM-DD).
func FileName(day string) string {
	return "ohmpilotdata_" + day + ".csv"
}

func (w *CSVWriter) Write(res telemetry.CycleResult) error {
	if res.Stalled {
		return nil
	}

	s := res.Snapshot
	at := s.At().Local()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotate(at.Format("2006-01-02")); err != nil {
		return err
	}

	row := []string{
		at.Format("02.01.2006"),
		at.Format("15:04:05"),
		"",
		strconv.Itoa(s.SurplusW()),
		"",
		strconv.Itoa(s.SetpointW()),
	}
	if v, ok := s.TemperatureC(); ok {
		row[2] = strconv.FormatFloat(v, 'f', 1, 64)
	}
	if v, ok := s.ActivePowerW(); ok {
		row[4] = strconv.FormatUint(uint64(v), 10)
	}

	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("csv writer: %w", err)
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes and closes the current file.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *CSVWriter) rotate(day string) error {
	if w.file != nil && w.day == day {
		return nil
	}
	if err := w.closeLocked(); err != nil {
		return err
	}

	path := filepath.Join(w.dir, FileName(day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("csv writer: %w", err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("csv writer: %w", err)
	}

	cw := csv.NewWriter(f)
	cw.Comma = '\t'

	if st.Size() == 0 {
		if err := cw.Write(csvHeader); err != nil {
			_ = f.Close()
			return fmt.Errorf("csv writer: header: %w", err)
		}
		cw.Flush()
	}

	w.day = day
	w.file = f
	w.csv = cw
	return nil
}

func (w *CSVWriter) closeLocked() error {
	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	err := w.file.Close()
	w.file = nil
	w.csv = nil
	w.day = ""
	return err
}
