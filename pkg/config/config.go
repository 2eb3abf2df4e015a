package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultFlushInterval  = 10 * time.Second
	defaultInitialDelay   = 1 * time.Second
	defaultMaxAppendBytes = 3 * 1024 * 1024 // per-append byte ceiling
)

// Named type to allow reuse and clearer code
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"groupId"`
}

// WriterConfig tunes every tenant's buffered writer.
type WriterConfig struct {
	FlushInterval  time.Duration `yaml:"flushInterval"`
	InitialDelay   time.Duration `yaml:"initialDelay"`
	MaxAppendBytes int           `yaml:"maxAppendBytes"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
}

// TenantConfig binds a tenant id to its append target backend.
// Backend is "filesystem" or "s3"; Path is the filesystem root,
// S3 carries the bucket settings.
type TenantConfig struct {
	ID      string   `yaml:"id"`
	Backend string   `yaml:"backend"`
	Path    string   `yaml:"path"`
	S3      S3Config `yaml:"s3"`
}

type AppConfig struct {
	Kafka  KafkaConfig  `yaml:"kafka"`
	Writer WriterConfig `yaml:"writer"`

	Metrics struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`

	State struct {
		Path string `yaml:"path"`
	} `yaml:"state"`

	Tenants []TenantConfig `yaml:"tenants"`
}

// Load reads and parses a YAML config file into an AppConfig struct.
// It will terminate the program if the file is not found or invalid.
func Load(path string) AppConfig {
	// Initialize with defaults
	cfg := AppConfig{
		Writer: WriterConfig{
			FlushInterval:  defaultFlushInterval,
			InitialDelay:   defaultInitialDelay,
			MaxAppendBytes: defaultMaxAppendBytes,
		},
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Fatalf("Config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("Error parsing config file: %v", err)
	}

	if cfg.Writer.FlushInterval <= 0 {
		cfg.Writer.FlushInterval = defaultFlushInterval
	}
	if cfg.Writer.MaxAppendBytes <= 0 {
		cfg.Writer.MaxAppendBytes = defaultMaxAppendBytes
	}

	return cfg
}
