// Package config loads the service configuration from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sdx-topology/domain/topology"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreLevelDB  = "leveldb"
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"
)

// lockTTLMargin is the slack LockTTL must leave beyond the upstream calls of one publication
const lockTTLMargin = 5 * time.Second

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address" validate:"required"`
	Environment   string `yaml:"environment" validate:"oneof=development staging production test"`
	LogLevel      string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Exchange point identity
	OXPName      string `yaml:"oxpo_name" validate:"required"`
	OXPURL       string `yaml:"oxpo_url" validate:"required"`
	ModelVersion string `yaml:"model_version" validate:"required"`

	// Collaborators
	KytosTopologyURL string        `yaml:"kytos_topology_url" validate:"required,url"`
	ValidateURL      string        `yaml:"sdx_topology_validate_url" validate:"required,url"`
	LCTopologyURL    string        `yaml:"sdx_lc_topology_url" validate:"required,url"`
	UpstreamTimeout  time.Duration `yaml:"upstream_timeout" validate:"gt=0"`

	// Storage
	StoreBackend  string `yaml:"store_backend" validate:"oneof=leveldb dynamodb memory"`
	StoreDir      string `yaml:"store_dir" validate:"required_if=StoreBackend leveldb"`
	DynamoDBTable string `yaml:"dynamodb_table" validate:"required_if=StoreBackend dynamodb"`
	AWSRegion     string `yaml:"aws_region"`

	// Notifications
	EventBusName             string `yaml:"event_bus_name" validate:"required_if=EnableEventNotifications true"`
	EnableEventNotifications bool   `yaml:"enable_event_notifications"`

	// Pipeline
	EventLogMaxEntries int           `yaml:"event_log_max_entries" validate:"gte=0"`
	EventLogBuffer     int           `yaml:"event_log_buffer" validate:"gt=0"`
	PipelineQueueSize  int           `yaml:"pipeline_queue_size" validate:"gt=0"`
	LockTTL            time.Duration `yaml:"lock_ttl" validate:"gt=0"`

	// Event classification
	EventSetsFile  string `yaml:"event_sets_file"`
	WatchEventSets bool   `yaml:"watch_event_sets"`

	// Feature flags
	EnableMetrics bool   `yaml:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
	EnableCORS    bool   `yaml:"enable_cors"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		ServerAddress:      ":8181",
		Environment:        "development",
		LogLevel:           "info",
		ModelVersion:       "1.0.0",
		KytosTopologyURL:   "http://0.0.0.0:8181/api/kytos/topology/v3/",
		ValidateURL:        "http://0.0.0.0:8080/validator/v1/validate",
		LCTopologyURL:      "http://localhost:8080/SDX-LC/2.0.0/topology",
		UpstreamTimeout:    10 * time.Second,
		StoreBackend:       StoreLevelDB,
		StoreDir:           "./data",
		AWSRegion:          "us-west-2",
		EventBusName:       "sdx-topology-events",
		EventLogMaxEntries: 10000,
		EventLogBuffer:     256,
		PipelineQueueSize:  64,
		LockTTL:            time.Minute,
		OTLPEndpoint:       "localhost:4317",
		EnableCORS:         true,
	}
}

// LoadConfig loads configuration from CONFIG_FILE (if set) and environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnvironmentVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadEnvironmentVariables overrides fields whose variable is set
func (c *Config) loadEnvironmentVariables() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))

	c.OXPName = getEnv("OXPO_NAME", c.OXPName)
	c.OXPURL = getEnv("OXPO_URL", c.OXPURL)
	c.ModelVersion = getEnv("MODEL_VERSION", c.ModelVersion)

	c.KytosTopologyURL = getEnv("KYTOS_TOPOLOGY_URL", c.KytosTopologyURL)
	c.ValidateURL = getEnv("SDX_TOPOLOGY_VALIDATE_URL", c.ValidateURL)
	c.LCTopologyURL = getEnv("SDX_LC_TOPOLOGY_URL", c.LCTopologyURL)
	c.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", c.UpstreamTimeout)

	c.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", c.StoreBackend))
	c.StoreDir = getEnv("STORE_DIR", c.StoreDir)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)

	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.EnableEventNotifications = getEnvBool("ENABLE_EVENT_NOTIFICATIONS", c.EnableEventNotifications)

	c.EventLogMaxEntries = getEnvInt("EVENT_LOG_MAX_ENTRIES", c.EventLogMaxEntries)
	c.EventLogBuffer = getEnvInt("EVENT_LOG_BUFFER", c.EventLogBuffer)
	c.PipelineQueueSize = getEnvInt("PIPELINE_QUEUE_SIZE", c.PipelineQueueSize)
	c.LockTTL = getEnvDuration("LOCK_TTL", c.LockTTL)

	c.EventSetsFile = getEnv("EVENT_SETS_FILE", c.EventSetsFile)
	c.WatchEventSets = getEnvBool("WATCH_EVENT_SETS", c.WatchEventSets)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	// A publication makes up to four upstream calls while holding the lock; a lease
	// that can run out before they finish lets a second replica start from the same base.
	if c.StoreBackend == StoreDynamoDB {
		if minTTL := 4*c.UpstreamTimeout + lockTTLMargin; c.LockTTL <= minTTL {
			return fmt.Errorf("invalid configuration: LockTTL %s must exceed %s (4 x UpstreamTimeout + %s)",
				c.LockTTL, minTTL, lockTTLMargin)
		}
	}
	return nil
}

// Identity returns the exchange point identity used at bootstrap
func (c *Config) Identity() topology.Identity {
	return topology.Identity{
		OXPName:      c.OXPName,
		OXPURL:       c.OXPURL,
		ModelVersion: c.ModelVersion,
	}
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("10s") or a plain number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
