// Package config loads focuspet configuration from defaults, an optional
// YAML file and FOCUSPET_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/companion"
	"github.com/teslashibe/go-focuspet/pkg/detection"
	"github.com/teslashibe/go-focuspet/pkg/focus"
	"github.com/teslashibe/go-focuspet/pkg/mood"
	"github.com/teslashibe/go-focuspet/pkg/pipeline"
	"github.com/teslashibe/go-focuspet/pkg/statecache"
	"github.com/teslashibe/go-focuspet/pkg/video"
	"github.com/teslashibe/go-focuspet/pkg/web"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FOCUSPET_CAMERA_WIDTH.
const EnvPrefix = "FOCUSPET"

// Camera backends
const (
	BackendMock   = "mock"
	BackendDevice = "device"
	BackendRemote = "remote"
)

// Stats drivers
const (
	StatsMemory   = "memory"
	StatsPostgres = "postgres"
)

// Config is the full daemon configuration.
type Config struct {
	LogLevel  string           `mapstructure:"log_level"`
	Backend   string           `mapstructure:"backend"` // mock, device or remote
	Camera    camera.Config    `mapstructure:"camera"`
	Detection detection.Config `mapstructure:"detection"`
	Focus     focus.Config     `mapstructure:"focus"`
	Pipeline  PipelineConfig   `mapstructure:"pipeline"`
	Mood      mood.Config      `mapstructure:"mood"`
	Video     video.Config     `mapstructure:"video"`
	Web       web.Config       `mapstructure:"web"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Stats     StatsConfig      `mapstructure:"stats"`

	v *viper.Viper
}

// PipelineConfig holds the processor knobs outside the stage configs.
type PipelineConfig struct {
	DetectEveryFrame bool `mapstructure:"detect_every_frame"`
	PreviewStride    int  `mapstructure:"preview_stride"`
}

// RedisConfig enables the Redis state mirror.
type RedisConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	statecache.Config `mapstructure:",squash"`
}

// StatsConfig selects the statistics store.
type StatsConfig struct {
	Driver string `mapstructure:"driver"` // memory or postgres
	DSN    string `mapstructure:"dsn"`
}

// Load reads configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("backend", BackendDevice)

	cam := camera.DefaultConfig()
	v.SetDefault("camera.device_index", cam.DeviceIndex)
	v.SetDefault("camera.target_fps", cam.TargetFPS)
	v.SetDefault("camera.width", cam.Width)
	v.SetDefault("camera.height", cam.Height)

	det := detection.DefaultConfig()
	v.SetDefault("detection.model_path", det.ModelPath)
	v.SetDefault("detection.anchors_path", det.AnchorsPath)
	v.SetDefault("detection.confidence_threshold", det.ConfidenceThreshold)
	v.SetDefault("detection.nms_threshold", det.NMSThreshold)
	v.SetDefault("detection.input_size", det.InputSize)

	fc := focus.DefaultConfig()
	v.SetDefault("focus.confidence_weight", fc.ConfidenceWeight)
	v.SetDefault("focus.yaw_weight", fc.YawWeight)
	v.SetDefault("focus.pitch_weight", fc.PitchWeight)
	v.SetDefault("focus.roll_weight", fc.RollWeight)
	v.SetDefault("focus.size_weight", fc.SizeWeight)
	v.SetDefault("focus.max_yaw", fc.MaxYaw)
	v.SetDefault("focus.max_pitch", fc.MaxPitch)
	v.SetDefault("focus.max_roll", fc.MaxRoll)
	v.SetDefault("focus.min_face_confidence", fc.MinFaceConfidence)
	v.SetDefault("focus.ideal_face_size", fc.IdealFaceSize)

	pl := pipeline.DefaultConfig()
	v.SetDefault("pipeline.detect_every_frame", pl.DetectEveryFrame)
	v.SetDefault("pipeline.preview_stride", pl.PreviewStride)

	md := mood.DefaultConfig()
	v.SetDefault("mood.enter_threshold", md.EnterThreshold)
	v.SetDefault("mood.exit_threshold", md.ExitThreshold)
	v.SetDefault("mood.confirm_duration", md.ConfirmDuration)
	v.SetDefault("mood.excited_focus_minutes", md.ExcitedFocusMinutes)
	v.SetDefault("mood.away_timeout", md.AwayTimeout)
	v.SetDefault("mood.interact_duration", md.InteractDuration)
	v.SetDefault("mood.ema_alpha", md.EMAAlpha)
	v.SetDefault("mood.focus_tick", md.FocusTick)

	vid := video.DefaultConfig()
	v.SetDefault("video.signalling_url", vid.SignallingURL)
	v.SetDefault("video.producer_name", vid.ProducerName)
	v.SetDefault("video.connect_timeout", vid.ConnectTimeout)
	v.SetDefault("video.decode_fps", vid.DecodeFPS)

	w := web.DefaultConfig()
	v.SetDefault("web.addr", w.Addr)
	v.SetDefault("web.static_dir", w.StaticDir)
	v.SetDefault("web.preview_quality", w.PreviewQuality)

	rc := statecache.DefaultConfig()
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", rc.Addr)
	v.SetDefault("redis.password", rc.Password)
	v.SetDefault("redis.db", rc.DB)
	v.SetDefault("redis.ttl", rc.TTL)

	v.SetDefault("stats.driver", StatsMemory)
	v.SetDefault("stats.dsn", "")
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	for _, msg := range c.Camera.Validate() {
		errs = append(errs, fmt.Errorf("camera: %s", msg))
	}

	switch c.Backend {
	case BackendMock, BackendDevice:
	case BackendRemote:
		if c.Video.SignallingURL == "" {
			errs = append(errs, errors.New("video.signalling_url is required for the remote backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}

	switch c.Stats.Driver {
	case StatsMemory:
	case StatsPostgres:
		if c.Stats.DSN == "" {
			errs = append(errs, errors.New("stats.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown stats driver %q", c.Stats.Driver))
	}

	if c.Mood.EMAAlpha <= 0 || c.Mood.EMAAlpha > 1 {
		errs = append(errs, errors.New("mood.ema_alpha must be in (0, 1]"))
	}
	if c.Mood.ExitThreshold > c.Mood.EnterThreshold {
		errs = append(errs, errors.New("mood.exit_threshold must not exceed mood.enter_threshold"))
	}

	return errors.Join(errs...)
}

// Companion assembles the companion configuration.
func (c *Config) Companion() companion.Config {
	return companion.Config{
		Pipeline: pipeline.Config{
			Camera:           c.Camera,
			Detection:        c.Detection,
			Focus:            c.Focus,
			DetectEveryFrame: c.Pipeline.DetectEveryFrame,
			PreviewStride:    c.Pipeline.PreviewStride,
		},
		Mood: c.Mood,
	}
}

// Dump renders the effective settings as YAML.
func (c *Config) Dump() ([]byte, error) {
	if c.v == nil {
		return nil, errors.New("config was not loaded")
	}
	return yaml.Marshal(readable(c.v.AllSettings()))
}

// readable renders durations as strings so the dump can be loaded back.
func readable(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		switch x := val.(type) {
		case map[string]any:
			out[k] = readable(x)
		case time.Duration:
			out[k] = x.String()
		default:
			out[k] = val
		}
	}
	return out
}
