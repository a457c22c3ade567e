package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chrisconley/auditor-collector/internal"
	"github.com/chrisconley/auditor-collector/internal/store"
	"github.com/chrisconley/auditor-collector/specs"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort         = 8000
	DefaultRecordPrefix = "slurm"
	DefaultTimeout      = 10 * time.Second
	DefaultScontrol     = "scontrol"
	DefaultRedisKey     = "auditor:records"
	DefaultKafkaTopic   = "auditor.records"
)

// Config is a loaded, validated collector configuration.
type Config struct {
	specs.CollectorConfigSpec

	Rules    internal.RuleConfig
	Location *time.Location
	LogLevel slog.Level
}

// Load reads and validates the YAML file at path. Every error it returns is an
// *internal.ConfigError.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &internal.ConfigError{Setting: path, Err: err}
	}
	return Parse(b)
}

func Parse(data []byte) (Config, error) {
	var spec specs.CollectorConfigSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return Config{}, &internal.ConfigError{Setting: "file", Err: err}
	}
	applyDefaults(&spec)

	if err := validate(spec); err != nil {
		return Config{}, err
	}

	rules, err := internal.NewRuleConfig(spec.RuleConfig())
	if err != nil {
		return Config{}, err
	}

	loc, err := time.LoadLocation(spec.Timezone)
	if err != nil {
		return Config{}, &internal.ConfigError{Setting: "timezone", Err: err}
	}

	level, err := ParseLevel(spec.LogLevel)
	if err != nil {
		return Config{}, &internal.ConfigError{Setting: "log_level", Err: err}
	}

	return Config{
		CollectorConfigSpec: spec,
		Rules:               rules,
		Location:            loc,
		LogLevel:            level,
	}, nil
}

func applyDefaults(c *specs.CollectorConfigSpec) {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.RecordPrefix == "" {
		c.RecordPrefix = DefaultRecordPrefix
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Scontrol == "" {
		c.Scontrol = DefaultScontrol
	}
	if c.Delivery.Kind == "" {
		c.Delivery.Kind = "http"
	}
	if c.Delivery.Redis.Key == "" {
		c.Delivery.Redis.Key = DefaultRedisKey
	}
	if c.Delivery.Kafka.Topic == "" {
		c.Delivery.Kafka.Topic = DefaultKafkaTopic
	}
}

func validate(c specs.CollectorConfigSpec) error {
	required := func(setting, value string) error {
		if strings.TrimSpace(value) == "" {
			return &internal.ConfigError{Setting: setting, Err: errors.New("is required")}
		}
		return nil
	}
	if err := required("site_id", c.SiteID); err != nil {
		return err
	}
	if err := required("database_path", c.DatabasePath); err != nil {
		return err
	}
	if err := store.CheckPath(c.DatabasePath); err != nil {
		return &internal.ConfigError{Setting: "database_path", Err: err}
	}
	if c.Timeout < 0 {
		return &internal.ConfigError{Setting: "timeout", Err: errors.New("must not be negative")}
	}
	switch c.Delivery.Kind {
	case "http":
		return required("addr", c.Addr)
	case "redis":
		return required("delivery.redis.addr", c.Delivery.Redis.Addr)
	case "kafka":
		if len(c.Delivery.Kafka.Brokers) == 0 {
			return &internal.ConfigError{Setting: "delivery.kafka.brokers", Err: errors.New("is required")}
		}
		return nil
	default:
		return &internal.ConfigError{Setting: "delivery.kind", Err: fmt.Errorf("unknown kind %q", c.Delivery.Kind)}
	}
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}
