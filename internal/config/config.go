package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// StorageConfig holds persistence backend settings.
type StorageConfig struct {
	Type          string        `json:"type" mapstructure:"type"`
	WriteInterval time.Duration `json:"writeInterval" mapstructure:"writeInterval"`
	SQLite        SQLiteConfig  `json:"sqlite" mapstructure:"sqlite"`
}

// SQLiteConfig holds local SQLite backend settings.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// FeedConfig holds the viewer/publisher side feed connection settings.
type FeedConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// GraylogConfig holds GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./locsharelogs")
	viper.SetDefault("namespace", "locshare")

	viper.SetDefault("listen.addr", ":8090")

	viper.SetDefault("feed.url", "ws://localhost:8090/feed")
	viper.SetDefault("feed.secret", "")

	viper.SetDefault("viewer.centerZoom", 16)
	viper.SetDefault("viewer.eagerFilter", false)
	viper.SetDefault("viewer.renderUrl", "")
	viper.SetDefault("viewer.renderSecret", "")

	viper.SetDefault("demo.start", "52.52,13.405")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "locshare")

	viper.SetDefault("influx.enabled", true)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "locshare-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.writeInterval", "5s")
	viper.SetDefault("storage.sqlite.path", "./locshare.db")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "locshare")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("locshare.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the persistence backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		WriteInterval: viper.GetDuration("storage.writeInterval"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetFeedConfig returns the feed connection settings.
func GetFeedConfig() FeedConfig {
	return FeedConfig{
		URL:    viper.GetString("feed.url"),
		Secret: viper.GetString("feed.secret"),
	}
}

// GetGraylogConfig returns the GELF log shipping settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// PostgresDSN assembles the gorm Postgres DSN from the db.* keys.
func PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)
}
