package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Enrich   EnrichConfig   `yaml:"enrich" mapstructure:"enrich"`
	Adapters AdaptersConfig `yaml:"adapters" mapstructure:"adapters"`
	Govmap   GovmapConfig   `yaml:"govmap" mapstructure:"govmap"`
	Temporal TemporalConfig `yaml:"temporal" mapstructure:"temporal"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// EnrichConfig configures the enrichment orchestrator and queue.
type EnrichConfig struct {
	RunTimeoutSecs    int    `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
	QueueWorkers      int    `yaml:"queue_workers" mapstructure:"queue_workers"`
	RetryAttempts     int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	PriorityTablePath string `yaml:"priority_table_path" mapstructure:"priority_table_path"`
}

// AdaptersConfig groups per-source adapter settings.
type AdaptersConfig struct {
	Yad2   Yad2Config   `yaml:"yad2" mapstructure:"yad2"`
	TLVGis TLVGisConfig `yaml:"tlv_gis" mapstructure:"tlv_gis"`
	Gov    GovConfig    `yaml:"gov" mapstructure:"gov"`
	Rami   RamiConfig   `yaml:"rami" mapstructure:"rami"`
}

// Yad2Config holds Yad2 listings API settings.
type Yad2Config struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxListings int    `yaml:"max_listings" mapstructure:"max_listings"`
}

// TLVGisConfig holds Tel Aviv GIS (ArcGIS) settings shared by the permit and
// rights adapters.
type TLVGisConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PermitRadiusM int    `yaml:"permit_radius_m" mapstructure:"permit_radius_m"`
}

// GovConfig holds decisive-appraisal search settings.
type GovConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RamiConfig holds RAMI plan search settings.
type RamiConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GovmapConfig holds geocoding settings.
type GovmapConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Token       string `yaml:"token" mapstructure:"token"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// TemporalConfig configures the optional Temporal dispatch path.
// An empty Address disables Temporal and the serve command falls back to the
// in-process queue.
type TemporalConfig struct {
	Address   string `yaml:"address" mapstructure:"address"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REALESTATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "realestate.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("enrich.run_timeout_secs", 120)
	v.SetDefault("enrich.queue_workers", 4)
	v.SetDefault("enrich.retry_attempts", 3)
	v.SetDefault("adapters.yad2.base_url", "https://gw.yad2.co.il")
	v.SetDefault("adapters.yad2.timeout_secs", 15)
	v.SetDefault("adapters.yad2.max_listings", 20)
	v.SetDefault("adapters.tlv_gis.base_url", "https://gisn.tel-aviv.gov.il/arcgis")
	v.SetDefault("adapters.tlv_gis.timeout_secs", 20)
	v.SetDefault("adapters.tlv_gis.permit_radius_m", 30)
	v.SetDefault("adapters.gov.base_url", "https://www.gov.il")
	v.SetDefault("adapters.gov.timeout_secs", 30)
	v.SetDefault("adapters.rami.base_url", "https://apps.land.gov.il")
	v.SetDefault("adapters.rami.timeout_secs", 30)
	v.SetDefault("govmap.base_url", "https://ags.govmap.gov.il")
	v.SetDefault("govmap.timeout_secs", 10)
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "asset-enrichment")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
