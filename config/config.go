// Package config loads client and server settings from defaults, an optional
// config file and environment variables.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	calculator "github.com/xizhibei/go-calculator-rpc"
)

const (
	TransportGRPC = "grpc"
	TransportMQTT = "mqtt"
)

// MQTT holds the settings of the MQTT transport.
type MQTT struct {
	Enabled     bool          `mapstructure:"enabled"`
	URL         string        `mapstructure:"url" validate:"required_if=Enabled true"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	TopicPrefix string        `mapstructure:"topic_prefix" validate:"required"`
	ServerID    string        `mapstructure:"server_id" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// Config holds the settings of the calculator programs.
// Server is the address clients dial, ListenAddr the one servers listen on.
type Config struct {
	Server      string        `mapstructure:"server" validate:"required"`
	Transport   string        `mapstructure:"transport" validate:"oneof=grpc mqtt"`
	Compression string        `mapstructure:"compression" validate:"omitempty,oneof=identity none gzip deflate br"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`

	ListenAddr   string        `mapstructure:"listen_addr" validate:"required,hostname_port"`
	MetricsAddr  string        `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
	Workers      int           `mapstructure:"workers" validate:"gte=0"`
	LimiterEvery time.Duration `mapstructure:"limiter_every" validate:"gt=0"`
	LimiterBurst int           `mapstructure:"limiter_burst" validate:"gt=0"`
	LogResponse  bool          `mapstructure:"log_response"`
	Debug        bool          `mapstructure:"debug"`

	MQTT MQTT `mapstructure:"mqtt"`
}

// envBindings are the variables read without the CALC_ prefix.
var envBindings = map[string]string{
	"server":       "GRPC_SERVER",
	"listen_addr":  "CALC_LISTEN_ADDR",
	"metrics_addr": "CALC_METRICS_ADDR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server", calculator.DefaultServerAddress)
	v.SetDefault("transport", TransportGRPC)
	v.SetDefault("compression", "identity")
	v.SetDefault("timeout", 10*time.Second)

	v.SetDefault("listen_addr", ":50051")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("workers", 0)
	v.SetDefault("limiter_every", time.Millisecond)
	v.SetDefault("limiter_burst", 100)
	v.SetDefault("log_response", false)
	v.SetDefault("debug", false)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.url", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "calculator")
	v.SetDefault("mqtt.server_id", "default")
	v.SetDefault("mqtt.timeout", 10*time.Second)
}

// New returns a viper instance with the defaults and environment bindings
// of Config. Any other key is read from CALC_<KEY>, e.g. CALC_MQTT_URL.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("calc")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// Load reads the optional config file and the environment into a validated Config.
func Load(file string) (*Config, error) {
	return LoadFrom(New(), file)
}

// LoadFrom is Load on a prepared viper instance, e.g. one with bound flags.
func LoadFrom(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// ServerOptions returns the dispatch server options of c.
func (c *Config) ServerOptions() []calculator.ServerOption {
	opts := []calculator.ServerOption{
		calculator.WithLimiter(c.LimiterEvery, c.LimiterBurst),
		calculator.WithLogResponse(c.LogResponse),
	}
	if c.Workers > 0 {
		opts = append(opts, calculator.WithWorkerNum(c.Workers))
	}
	return opts
}
