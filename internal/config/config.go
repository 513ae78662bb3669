// Package config loads configs/config.yml with TILT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"tilt_control/internal/models"
)

// Source kinds.
const (
	SourceIoTtalk   = "iottalk"
	SourceMQTT      = "mqtt"
	SourceSynthetic = "synthetic"
)

const envPrefix = "TILT"

type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`
	DB          DBConfig          `mapstructure:"db"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Source      SourceConfig      `mapstructure:"source"`
	Tilt        TiltConfig        `mapstructure:"tilt"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// OperatorPasswordHash is a bcrypt hash; empty disables sign-in.
	OperatorPasswordHash string `mapstructure:"operator_password_hash"`
}

type SourceConfig struct {
	Kind      string          `mapstructure:"kind"`
	IoTtalk   IoTtalkConfig   `mapstructure:"iottalk"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Synthetic SyntheticConfig `mapstructure:"synthetic"`
}

type IoTtalkConfig struct {
	URL         string        `mapstructure:"url"`
	DeviceAddr  string        `mapstructure:"device_addr"`
	DeviceName  string        `mapstructure:"device_name"`
	DeviceModel string        `mapstructure:"device_model"`
	Feature     string        `mapstructure:"feature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SyntheticConfig struct {
	Amplitude float64       `mapstructure:"amplitude"`
	Period    time.Duration `mapstructure:"period"`
}

type TiltConfig struct {
	Baseline     float64       `mapstructure:"baseline"`
	DeadZone     float64       `mapstructure:"dead_zone"`
	ScaleFactor  float64       `mapstructure:"scale_factor"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	FaultBackoff time.Duration `mapstructure:"fault_backoff"`
	MaxSpeed     float64       `mapstructure:"max_speed"`
}

// Params returns the controller tuning part of the tilt section.
func (t TiltConfig) Params() models.TiltParams {
	return models.TiltParams{Baseline: t.Baseline, DeadZone: t.DeadZone, ScaleFactor: t.ScaleFactor}
}

type CalibrationConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Window       int           `mapstructure:"window"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("server.port", "8080")
	v.SetDefault("db.path", "tilt.db")
	// keys without a real default still need one so env overrides reach Unmarshal
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.operator_password_hash", "")

	v.SetDefault("source.kind", SourceIoTtalk)
	v.SetDefault("source.iottalk.url", "https://class.iottalk.tw")
	v.SetDefault("source.iottalk.device_addr", "")
	v.SetDefault("source.iottalk.device_name", "Sky_Fighter")
	v.SetDefault("source.iottalk.device_model", "Dummy_Device")
	v.SetDefault("source.iottalk.feature", "Dummy_Control")
	v.SetDefault("source.iottalk.timeout", 10*time.Second)
	v.SetDefault("source.mqtt.broker", "ssl://iot.iottalk.tw:8883")
	v.SetDefault("source.mqtt.topic", "")
	v.SetDefault("source.mqtt.client_id", "tilt-control")
	v.SetDefault("source.mqtt.username", "")
	v.SetDefault("source.mqtt.password", "")
	v.SetDefault("source.synthetic.amplitude", 6.0)
	v.SetDefault("source.synthetic.period", 6*time.Second)

	v.SetDefault("tilt.baseline", -0.88)
	v.SetDefault("tilt.dead_zone", 1.3)
	v.SetDefault("tilt.scale_factor", 0.77)
	v.SetDefault("tilt.poll_interval", 20*time.Millisecond)
	v.SetDefault("tilt.fault_backoff", time.Second)
	v.SetDefault("tilt.max_speed", 7.0)

	v.SetDefault("calibration.poll_interval", 50*time.Millisecond)
	v.SetDefault("calibration.window", 10)
}

// Load reads the config file at path (configs/config.yml when empty). A
// missing default file is not an error; defaults and environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	switch c.Source.Kind {
	case SourceIoTtalk:
		if c.Source.IoTtalk.URL == "" {
			err = multierr.Append(err, errors.New("source.iottalk.url is required"))
		}
	case SourceMQTT:
		if c.Source.MQTT.Topic == "" {
			err = multierr.Append(err, errors.New("source.mqtt.topic is required"))
		}
	case SourceSynthetic:
	default:
		err = multierr.Append(err, fmt.Errorf("source.kind %q is not one of iottalk, mqtt, synthetic", c.Source.Kind))
	}
	if c.Tilt.DeadZone < 0 {
		err = multierr.Append(err, errors.New("tilt.dead_zone must be >= 0"))
	}
	if c.Tilt.ScaleFactor <= 0 {
		err = multierr.Append(err, errors.New("tilt.scale_factor must be > 0"))
	}
	if c.Tilt.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("tilt.poll_interval must be > 0"))
	}
	if c.Tilt.FaultBackoff <= 0 {
		err = multierr.Append(err, errors.New("tilt.fault_backoff must be > 0"))
	}
	if c.Tilt.MaxSpeed <= 0 {
		err = multierr.Append(err, errors.New("tilt.max_speed must be > 0"))
	}
	if c.Calibration.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("calibration.poll_interval must be > 0"))
	}
	if c.Calibration.Window < 1 {
		err = multierr.Append(err, errors.New("calibration.window must be >= 1"))
	}
	if c.Auth.OperatorPasswordHash != "" && c.Auth.Secret == "" {
		err = multierr.Append(err, errors.New("auth.secret is required when sign-in is enabled"))
	}
	return err
}
