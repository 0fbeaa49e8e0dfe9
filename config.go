package cactusplot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const maxConfigFileSize = 1 * 1024 * 1024

// Config is everything the server needs besides the files to load.
type Config struct {
	Addr              string
	Import            ImportConfig
	PlotOptions       PlotOptions
	AutoscaleOnChange bool
	// Status lines replayed to a client when it connects.
	StatusHistory int
	// Per-websocket event buffer. A client that falls this far behind is
	// disconnected.
	ClientBuffer int
	// Largest number of samples one generated function may request.
	MaxPoints int
	// Directory that saved datasets and exported plots are written to.
	OutputDir string
}

func DefaultConfig() Config {
	return Config{
		Addr:              "127.0.0.1:5274",
		Import:            DefaultImportConfig(),
		PlotOptions:       DefaultPlotOptions(),
		AutoscaleOnChange: true,
		StatusHistory:     20,
		ClientBuffer:      10000,
		MaxPoints:         DefaultMaxPoints,
		OutputDir:         ".",
	}
}

// The JSON file form. Every field is optional; missing ones keep their
// defaults.
type configFile struct {
	Addr              *string `json:"addr,omitempty"`
	AutoscaleOnChange *bool   `json:"autoscale_on_change,omitempty"`
	StatusHistory     *int    `json:"status_history,omitempty"`
	ClientBuffer      *int    `json:"client_buffer,omitempty"`
	MaxPoints         *int    `json:"max_points,omitempty"`
	OutputDir         *string `json:"output_dir,omitempty"`

	Import *struct {
		SkipLines       *int          `json:"skip_lines,omitempty"`
		CommentPrefixes []string      `json:"comment_prefixes,omitempty"`
		Format          *ImportFormat `json:"format,omitempty"`
	} `json:"import,omitempty"`

	Plot *struct {
		Title   *string  `json:"title,omitempty"`
		XLabel  *string  `json:"x_label,omitempty"`
		YLabel  *string  `json:"y_label,omitempty"`
		Padding *float64 `json:"padding,omitempty"`
	} `json:"plot,omitempty"`
}

// LoadConfig reads a JSON config file and merges it over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	cfg := DefaultConfig()
	file.mergeInto(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (f configFile) mergeInto(cfg *Config) {
	setIf(&cfg.Addr, f.Addr)
	setIf(&cfg.AutoscaleOnChange, f.AutoscaleOnChange)
	setIf(&cfg.StatusHistory, f.StatusHistory)
	setIf(&cfg.ClientBuffer, f.ClientBuffer)
	setIf(&cfg.MaxPoints, f.MaxPoints)
	setIf(&cfg.OutputDir, f.OutputDir)

	if f.Import != nil {
		setIf(&cfg.Import.SkipLines, f.Import.SkipLines)
		setIf(&cfg.Import.Format, f.Import.Format)
		if f.Import.CommentPrefixes != nil {
			cfg.Import.CommentPrefixes = f.Import.CommentPrefixes
		}
	}

	if f.Plot != nil {
		setIf(&cfg.PlotOptions.Title, f.Plot.Title)
		setIf(&cfg.PlotOptions.XLabel, f.Plot.XLabel)
		setIf(&cfg.PlotOptions.YLabel, f.Plot.YLabel)
		setIf(&cfg.PlotOptions.Padding, f.Plot.Padding)
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.Import.SkipLines < 0 {
		return fmt.Errorf("import.skip_lines must be >= 0, got %d", c.Import.SkipLines)
	}
	switch c.Import.Format {
	case FormatRelaxed, FormatCSV:
	default:
		return fmt.Errorf("import.format must be %q or %q, got %q", FormatRelaxed, FormatCSV, c.Import.Format)
	}
	if c.PlotOptions.Padding < 0 || c.PlotOptions.Padding >= 0.5 {
		return fmt.Errorf("plot.padding must be in [0, 0.5), got %g", c.PlotOptions.Padding)
	}
	if c.StatusHistory < 1 {
		return fmt.Errorf("status_history must be >= 1, got %d", c.StatusHistory)
	}
	if c.ClientBuffer < 1 {
		return fmt.Errorf("client_buffer must be >= 1, got %d", c.ClientBuffer)
	}
	if c.MaxPoints < 2 {
		return fmt.Errorf("max_points must be >= 2, got %d", c.MaxPoints)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	return nil
}

func (c Config) CoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Import:            c.Import,
		PlotOptions:       c.PlotOptions,
		AutoscaleOnChange: c.AutoscaleOnChange,
		MaxPoints:         c.MaxPoints,
		OutputDir:         c.OutputDir,
	}
}
