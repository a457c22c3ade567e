package specs

import "time"

// CollectorConfigSpec is the collector's configuration file.
//
// The rule section (Components) is shared with RuleConfigSpec so that the same
// YAML document configures both the transport and the accounting rules.
type CollectorConfigSpec struct {
	// Host of the central accounting service. Example: "auditor.example.org".
	Addr string `yaml:"addr"`

	// Port of the central accounting service. Default 8000.
	Port int `yaml:"port"`

	// Prefix prepended to the Slurm job id to form the record id. Default "slurm".
	RecordPrefix string `yaml:"record_prefix"`

	// Site identifier written into every record.
	SiteID string `yaml:"site_id"`

	// Path of the local staging database. Created if absent.
	DatabasePath string `yaml:"database_path"`

	// Upper bound for one delivery attempt. Default 10s.
	Timeout time.Duration `yaml:"timeout"`

	// IANA zone the scheduler's timestamps are expressed in. Default "UTC".
	Timezone string `yaml:"timezone"`

	// One of "debug", "info", "warn", "error". Default "info".
	LogLevel string `yaml:"log_level"`

	// Path of the scontrol binary. Default "scontrol".
	Scontrol string `yaml:"scontrol"`

	Delivery DeliveryConfigSpec `yaml:"delivery"`
	Metrics  MetricsConfigSpec  `yaml:"metrics"`

	// Accounting rules; see RuleConfigSpec.
	Components []ComponentRuleSpec `yaml:"components"`
}

// DeliveryConfigSpec selects how staged records reach the central service.
type DeliveryConfigSpec struct {
	// One of "http" (default), "redis", "kafka".
	Kind  string          `yaml:"kind"`
	Redis RedisConfigSpec `yaml:"redis"`
	Kafka KafkaConfigSpec `yaml:"kafka"`
}

type RedisConfigSpec struct {
	Addr string `yaml:"addr"` // 127.0.0.1:6379
	Key  string `yaml:"key"`  // list receiving records, default "auditor:records"
}

type KafkaConfigSpec struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"` // default "auditor.records"
}

type MetricsConfigSpec struct {
	// node_exporter textfile collector path; metrics are not written if empty.
	Textfile string `yaml:"textfile"`
}

// RuleConfig returns the rule section of the configuration.
func (c CollectorConfigSpec) RuleConfig() RuleConfigSpec {
	return RuleConfigSpec{Components: c.Components}
}
