package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/ohmpilot-controller/internal/config"
)

type nopLink struct{}

func (nopLink) Connect(context.Context) error { return nil }
func (nopLink) Close() error                  { return nil }
func (nopLink) ReadRegisters(context.Context, uint16, uint16) ([]uint16, error) {
	return nil, nil
}
func (nopLink) WriteRegisters(context.Context, uint16, []uint16) error { return nil }

func TestBuildTimeSync(t *testing.T) {
	cfg := config.Default()
	cfg.TimeSync.Enabled = false
	ts, err := buildTimeSync(cfg, nopLink{})
	require.NoError(t, err)
	assert.Nil(t, ts)

	cfg.TimeSync.Enabled = true
	cfg.TimeSync.IntervalS = 1800
	cfg.TimeSync.Timezone = "UTC"
	ts, err = buildTimeSync(cfg, nopLink{})
	require.NoError(t, err)
	assert.NotNil(t, ts)
}

func TestBuildTimeSync_Rejects(t *testing.T) {
	cfg := config.Default()
	cfg.TimeSync.Enabled = true
	cfg.TimeSync.IntervalS = 1800
	cfg.TimeSync.Timezone = "Nowhere/Atlantis"
	_, err := buildTimeSync(cfg, nopLink{})
	assert.Error(t, err)

	cfg.TimeSync.Timezone = ""
	cfg.TimeSync.IntervalS = 0
	_, err = buildTimeSync(cfg, nopLink{})
	assert.Error(t, err)
}
