package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/erpsim/internal/params"
)

const (
	DefaultThrottleMS   = 100
	DefaultDebounceMS   = 500
	DefaultSamplingRate = 100.0
	DefaultDataDir      = ".erpsim"
	DefaultMaxTabs      = 16
	DefaultPreset       = "P300"
	DefaultSeed         = 1
	EnvPrefix           = "ERPSIM"
	FileName            = "erpsim.yaml"
)

type Config struct {
	Seed          int64        `mapstructure:"seed" yaml:"seed"`
	ThrottleMS    int          `mapstructure:"throttle_ms" yaml:"throttle_ms"`
	DebounceMS    int          `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	SamplingRate  float64      `mapstructure:"sampling_rate" yaml:"sampling_rate"`
	DataDir       string       `mapstructure:"data_dir" yaml:"data_dir"`
	DBPath        string       `mapstructure:"db_path" yaml:"db_path,omitempty"`
	LogLevel      string       `mapstructure:"log_level" yaml:"log_level"`
	MetricsAddr   string       `mapstructure:"metrics_addr" yaml:"metrics_addr,omitempty"`
	MaxTabs       int          `mapstructure:"max_tabs" yaml:"max_tabs"`
	DefaultPreset string       `mapstructure:"default_preset" yaml:"default_preset"`
	PresetsFile   string       `mapstructure:"presets_file" yaml:"presets_file,omitempty"`
	Global        GlobalConfig `mapstructure:"global" yaml:"global"`
}

// GlobalConfig seeds the choices shared by every tab.
type GlobalConfig struct {
	Model            string           `mapstructure:"model" yaml:"model"`
	Design           string           `mapstructure:"design" yaml:"design"`
	Onset            params.OnsetSpec `mapstructure:"onset" yaml:"onset"`
	Noise            params.NoiseSpec `mapstructure:"noise" yaml:"noise"`
	Items            int              `mapstructure:"items" yaml:"items"`
	Subjects         int              `mapstructure:"subjects" yaml:"subjects"`
	Repeats          int              `mapstructure:"repeats" yaml:"repeats"`
	Multichannel     bool             `mapstructure:"multichannel" yaml:"multichannel"`
	ReferenceChannel int              `mapstructure:"reference_channel" yaml:"reference_channel"`
}

func DefaultConfig() Config {
	g := params.DefaultGlobal()
	return Config{
		Seed:          DefaultSeed,
		ThrottleMS:    DefaultThrottleMS,
		DebounceMS:    DefaultDebounceMS,
		SamplingRate:  DefaultSamplingRate,
		DataDir:       DefaultDataDir,
		LogLevel:      "info",
		MaxTabs:       DefaultMaxTabs,
		DefaultPreset: DefaultPreset,
		Global: GlobalConfig{
			Model:            string(g.Model),
			Design:           string(g.Design),
			Onset:            g.Onset,
			Noise:            g.Noise,
			Items:            g.Items,
			Subjects:         g.Subjects,
			Repeats:          g.Repeats,
			Multichannel:     g.Multichannel,
			ReferenceChannel: g.ReferenceChannel,
		},
	}
}

// Load layers defaults, an optional YAML file and ERPSIM_* environment
// variables. With an empty path, erpsim.yaml is looked up in the working
// directory and may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("seed", cfg.Seed)
	v.SetDefault("throttle_ms", cfg.ThrottleMS)
	v.SetDefault("debounce_ms", cfg.DebounceMS)
	v.SetDefault("sampling_rate", cfg.SamplingRate)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("max_tabs", cfg.MaxTabs)
	v.SetDefault("default_preset", cfg.DefaultPreset)
	v.SetDefault("presets_file", cfg.PresetsFile)
	v.SetDefault("global.model", cfg.Global.Model)
	v.SetDefault("global.design", cfg.Global.Design)
	v.SetDefault("global.onset.kind", cfg.Global.Onset.Kind)
	v.SetDefault("global.onset.width", cfg.Global.Onset.Width)
	v.SetDefault("global.onset.offset", cfg.Global.Onset.Offset)
	v.SetDefault("global.onset.mu", cfg.Global.Onset.Mu)
	v.SetDefault("global.onset.sigma", cfg.Global.Onset.Sigma)
	v.SetDefault("global.noise.kind", cfg.Global.Noise.Kind)
	v.SetDefault("global.noise.level", cfg.Global.Noise.Level)
	v.SetDefault("global.items", cfg.Global.Items)
	v.SetDefault("global.subjects", cfg.Global.Subjects)
	v.SetDefault("global.repeats", cfg.Global.Repeats)
	v.SetDefault("global.multichannel", cfg.Global.Multichannel)
	v.SetDefault("global.reference_channel", cfg.Global.ReferenceChannel)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.ThrottleMS <= 0 || c.DebounceMS <= 0 {
		errs = append(errs, fmt.Errorf("throttle_ms and debounce_ms must be positive"))
	} else if c.ThrottleMS >= c.DebounceMS {
		errs = append(errs, fmt.Errorf("throttle_ms (%d) must be shorter than debounce_ms (%d)", c.ThrottleMS, c.DebounceMS))
	}
	if c.SamplingRate <= 0 {
		errs = append(errs, fmt.Errorf("sampling_rate must be positive"))
	}
	if c.MaxTabs < 1 {
		errs = append(errs, fmt.Errorf("max_tabs must be at least 1"))
	}
	switch params.ModelCategory(c.Global.Model) {
	case params.ModelLinear, params.ModelMixed:
	default:
		errs = append(errs, fmt.Errorf("global.model %q is not Linear or Mixed", c.Global.Model))
	}
	known := false
	for _, d := range params.Designs {
		known = known || string(d) == c.Global.Design
	}
	if !known {
		errs = append(errs, fmt.Errorf("global.design %q is unknown", c.Global.Design))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Windows returns the throttle and debounce durations.
func (c Config) Windows() (throttle, debounce time.Duration) {
	return time.Duration(c.ThrottleMS) * time.Millisecond, time.Duration(c.DebounceMS) * time.Millisecond
}

// Params converts the configured defaults into the shared parameter bundle.
func (c Config) Params() params.Global {
	return params.Global{
		Model:            params.ModelCategory(c.Global.Model),
		Design:           params.DesignCategory(c.Global.Design),
		Onset:            c.Global.Onset,
		Noise:            c.Global.Noise,
		Items:            c.Global.Items,
		Subjects:         c.Global.Subjects,
		Repeats:          c.Global.Repeats,
		SamplingRate:     c.SamplingRate,
		Multichannel:     c.Global.Multichannel,
		ReferenceChannel: c.Global.ReferenceChannel,
		Seed:             c.Seed,
	}
}

// Database returns the session store path, defaulting into DataDir.
func (c Config) Database() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "sessions.db")
}

func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
