package cactusplot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Run("empty object keeps defaults", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("merge", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{
			"addr": "0.0.0.0:9000",
			"autoscale_on_change": false,
			"max_points": 5000,
			"output_dir": "/srv/plots",
			"import": {"skip_lines": 2, "format": "csv"},
			"plot": {"title": "Energy", "padding": 0}
		}`))
		require.NoError(t, err)

		want := DefaultConfig()
		want.Addr = "0.0.0.0:9000"
		want.AutoscaleOnChange = false
		want.MaxPoints = 5000
		want.OutputDir = "/srv/plots"
		want.Import.SkipLines = 2
		want.Import.Format = FormatCSV
		want.PlotOptions.Title = "Energy"
		want.PlotOptions.Padding = 0
		assert.Equal(t, want, cfg)
	})

	t.Run("invalid", func(t *testing.T) {
		tests := map[string]string{
			"padding":        `{"plot": {"padding": 0.5}}`,
			"negative skip":  `{"import": {"skip_lines": -1}}`,
			"format":         `{"import": {"format": "excel"}}`,
			"empty addr":     `{"addr": ""}`,
			"status history": `{"status_history": 0}`,
			"client buffer":  `{"client_buffer": -3}`,
			"max points":     `{"max_points": 1}`,
			"output dir":     `{"output_dir": ""}`,
			"syntax":         `{"addr": `,
		}
		for name, data := range tests {
			_, err := ParseConfig([]byte(data))
			assert.Error(t, err, name)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("json file", func(t *testing.T) {
		path := filepath.Join(dir, "cactusplot.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"status_history": 5}`), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.StatusHistory)
		assert.Equal(t, DefaultConfig().Addr, cfg.Addr)
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(dir, "cactusplot.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, ".json extension")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "nope.json"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestConfigCoordinatorConfig(t *testing.T) {
	cfg := DefaultConfig()
	cc := cfg.CoordinatorConfig()
	assert.Equal(t, cfg.Import, cc.Import)
	assert.Equal(t, cfg.PlotOptions, cc.PlotOptions)
	assert.True(t, cc.AutoscaleOnChange)
	assert.Equal(t, DefaultMaxPoints, cc.MaxPoints)
	assert.Equal(t, ".", cc.OutputDir)
}
