package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN renders a libpq keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// KafkaConfig holds broker settings for domain events.
type KafkaConfig struct {
	Brokers []string
	GroupID string
	Enabled bool
}

// NATSConfig selects the bridge transport. An empty URL keeps bridges in-process.
type NATSConfig struct {
	URL string
}

// TMapConfig holds routing provider settings.
type TMapConfig struct {
	BaseURL string
	AppKey  string
	Timeout time.Duration
}

// BridgeConfig tunes map sessions.
type BridgeConfig struct {
	// ConversionSite is "host" or "renderer".
	ConversionSite string
	RedrawDelay    time.Duration
	CommandBuffer  int
}

// ServiceConfig holds all configuration for the routemap service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	CORSOrigins []string
	DBConfig    DatabaseConfig
	KafkaConfig KafkaConfig
	NATSConfig  NATSConfig
	TMapConfig  TMapConfig
	Bridge      BridgeConfig
}

const envPrefix = "ROUTEMAP"

// Load reads configuration from a .env file (if present) and ROUTEMAP_* environment variables.
func Load() (*ServiceConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:        v.GetString("service_port"),
		AppEnv:      v.GetString("app_env"),
		CORSOrigins: splitList(v.GetString("cors_origins")),
		DBConfig: DatabaseConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetInt("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
		},
		KafkaConfig: KafkaConfig{
			Brokers: splitList(v.GetString("kafka_brokers")),
			GroupID: v.GetString("kafka_group_id"),
			Enabled: v.GetBool("kafka_enabled"),
		},
		NATSConfig: NATSConfig{
			URL: v.GetString("nats_url"),
		},
		TMapConfig: TMapConfig{
			BaseURL: v.GetString("tmap_base_url"),
			AppKey:  v.GetString("tmap_app_key"),
			Timeout: v.GetDuration("tmap_timeout"),
		},
		Bridge: BridgeConfig{
			ConversionSite: strings.ToLower(v.GetString("bridge_conversion_site")),
			RedrawDelay:    v.GetDuration("bridge_redraw_delay"),
			CommandBuffer:  v.GetInt("bridge_command_buffer"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_port", "8080")
	v.SetDefault("app_env", "development")
	v.SetDefault("cors_origins", "")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_name", "routemap")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("kafka_brokers", "localhost:9092")
	v.SetDefault("kafka_group_id", "service-routemap")
	v.SetDefault("kafka_enabled", true)
	v.SetDefault("nats_url", "")
	v.SetDefault("tmap_base_url", "https://apis.openapi.sk.com")
	v.SetDefault("tmap_app_key", "")
	v.SetDefault("tmap_timeout", 10*time.Second)
	v.SetDefault("bridge_conversion_site", "host")
	v.SetDefault("bridge_redraw_delay", 50*time.Millisecond)
	v.SetDefault("bridge_command_buffer", 64)
}

func (c *ServiceConfig) validate() error {
	switch c.Bridge.ConversionSite {
	case "host", "renderer":
	default:
		return fmt.Errorf("invalid %s_BRIDGE_CONVERSION_SITE: %q", envPrefix, c.Bridge.ConversionSite)
	}
	if c.Bridge.CommandBuffer <= 0 {
		return fmt.Errorf("invalid %s_BRIDGE_COMMAND_BUFFER: %d", envPrefix, c.Bridge.CommandBuffer)
	}
	if c.TMapConfig.Timeout <= 0 {
		return fmt.Errorf("invalid %s_TMAP_TIMEOUT: %s", envPrefix, c.TMapConfig.Timeout)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
