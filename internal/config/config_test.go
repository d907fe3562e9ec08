package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedantwpatil/keypilot/internal/backend"
	"github.com/vedantwpatil/keypilot/internal/motion"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keypilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 150*time.Millisecond, cfg.Watch.Cooldown)
	assert.Equal(t, motion.ModeStep, cfg.MotionMode())

	keys, err := cfg.WatchKeys()
	require.NoError(t, err)
	assert.Equal(t, []backend.Keycode{backend.MustParseKey("f5"), backend.MustParseKey("f6")}, keys)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
backend: Virtual
logging:
  level: debug
  format: json
motion:
  mode: lerp
  speed: 1.5
watch:
  tick_interval: 20ms
  keys: [f9]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, BackendVirtual, cfg.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, motion.ModeLerp, cfg.MotionMode())
	assert.Equal(t, 1.5, cfg.Motion.Speed)
	assert.Equal(t, 5.0, cfg.Motion.Tolerance, "unset fields keep defaults")
	assert.Equal(t, 20*time.Millisecond, cfg.Watch.TickInterval)
	assert.Equal(t, 150*time.Millisecond, cfg.Watch.Cooldown)
	assert.Equal(t, []string{"f9"}, cfg.Watch.Keys)
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "<defaults>", cfg.Source)

	_, err = Load(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, BackendRobot, cfg.Backend)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "motion:\n  sped: 3\n"))
	assert.Error(t, err)
}

func TestLoadRequiresDurationUnits(t *testing.T) {
	for _, body := range []string{
		"watch:\n  cooldown: 150\n",
		"watch:\n  tick_interval: 10\n",
		"watch:\n  cooldown: 1.5\n",
		"watch:\n  cooldown: 0\n",
	} {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, body)
	}

	cfg, err := Load(writeConfig(t, "watch:\n  cooldown: 0s\n  tick_interval: 20ms\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Watch.Cooldown)
	assert.Equal(t, 20*time.Millisecond, cfg.Watch.TickInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "backend", mutate: func(c *Config) { c.Backend = "wayland" }},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "loud" }},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }},
		{name: "motion mode", mutate: func(c *Config) { c.Motion.Mode = "warp" }},
		{name: "zero speed", mutate: func(c *Config) { c.Motion.Speed = 0 }},
		{name: "negative tolerance", mutate: func(c *Config) { c.Motion.Tolerance = -1 }},
		{name: "tick interval", mutate: func(c *Config) { c.Watch.TickInterval = 0 }},
		{name: "cooldown", mutate: func(c *Config) { c.Watch.Cooldown = -time.Millisecond }},
		{name: "keys", mutate: func(c *Config) { c.Watch.Keys = []string{"f5", "hyper-key"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
