package sched

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load("")

	assert.Equal(t, 1_000_000, cfg.TickHZ)
	assert.Equal(t, 5, cfg.ScheduleCostUS)
	assert.Equal(t, 10, cfg.SlotAlignTries)
	assert.Equal(t, 256, cfg.EventBuffer)
	assert.NotEmpty(t, cfg.Pipeline)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg := Load("no-such-file.yml")

	assert.Equal(t, defaultConfig().TickHZ, cfg.TickHZ)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := []byte(`
tick_hz: 48000
schedule_cost_us: 12
slot_align_tries: 4
pipeline:
  - name: dai
    period_us: 1333
    deadline_us: 1333
    max_rtime_us: 200
    busy_us: 90
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := Load(path)

	assert.Equal(t, 48000, cfg.TickHZ)
	assert.Equal(t, 12, cfg.ScheduleCostUS)
	assert.Equal(t, 4, cfg.SlotAlignTries)
	assert.Equal(t, 256, cfg.EventBuffer, "unset keys keep defaults")
	require.Len(t, cfg.Pipeline, 1)
	assert.Equal(t, "dai", cfg.Pipeline[0].Name)
	assert.Equal(t, uint64(1333), cfg.Pipeline[0].PeriodUS)
}

func TestLoadClampsNonsense(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := []byte("tick_hz: -1\nslot_align_tries: 0\nevent_buffer: -7\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := Load(path)

	assert.Equal(t, 1_000_000, cfg.TickHZ)
	assert.Equal(t, 10, cfg.SlotAlignTries)
	assert.Equal(t, 256, cfg.EventBuffer)
}
