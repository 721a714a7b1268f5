package config

import (
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type LocalStorageConfig struct {
	Root string `mapstructure:"root"`
}

type S3StorageConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

type StorageConfig struct {
	Driver string             `mapstructure:"driver"` // enum: gcs, s3, local
	Local  LocalStorageConfig `mapstructure:"local"`
	S3     S3StorageConfig    `mapstructure:"s3"`
}

type WarehouseConfig struct {
	Driver    string `mapstructure:"driver"` // enum: bigquery, postgres, mysql, sqlite
	ProjectID string `mapstructure:"project_id"`
	DSN       string `mapstructure:"dsn"`
}

// CSVJobConfig mirrors the JSON trigger body of the repair-and-load path.
type CSVJobConfig struct {
	Bucket           string `mapstructure:"bucket"`
	Prefix           string `mapstructure:"prefix"`
	Schema           string `mapstructure:"schema"`
	DestinationTable string `mapstructure:"destination_table"`
	ArchiveFiles     *bool  `mapstructure:"archive_files"`
	SkipHeaders      *bool  `mapstructure:"skip_headers"`
}

// QueryJobConfig mirrors the JSON trigger body of the query path.
type QueryJobConfig struct {
	Query            string `mapstructure:"query"`
	DestinationTable string `mapstructure:"destination_table"`
	UseLegacySQL     bool   `mapstructure:"use_legacy_sql"`
	Append           bool   `mapstructure:"append"`
}

type ScheduleConfig struct {
	Name  string          `mapstructure:"name"`
	Cron  string          `mapstructure:"cron"`
	CSV   *CSVJobConfig   `mapstructure:"csv"`
	Query *QueryJobConfig `mapstructure:"query"`
}

type Config struct {
	ServerPort  string   `mapstructure:"server_port"`
	LogLevel    string   `mapstructure:"log_level"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	RateLimit   float64  `mapstructure:"rate_limit"` // trigger requests per second, 0 disables
	RateBurst   int      `mapstructure:"rate_burst"`

	AssetsBucket  string `mapstructure:"assets_bucket"` // schemas and queries
	TempDir       string `mapstructure:"temp_dir"`
	ArchivePrefix string `mapstructure:"archive_prefix"`
	FixedPrefix   string `mapstructure:"fixed_prefix"`

	Storage   StorageConfig    `mapstructure:"storage"`
	Warehouse WarehouseConfig  `mapstructure:"warehouse"`
	Schedules []ScheduleConfig `mapstructure:"schedules"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit", 0)
	v.SetDefault("rate_burst", 1)
	v.SetDefault("assets_bucket", "")
	v.SetDefault("temp_dir", os.TempDir())
	v.SetDefault("archive_prefix", "ARCHIVED/")
	v.SetDefault("fixed_prefix", "FIXED_")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.root", "./data")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.path_style", false)
	v.SetDefault("warehouse.driver", "sqlite")
	v.SetDefault("warehouse.project_id", "")
	v.SetDefault("warehouse.dsn", "")
}

// New returns a viper instance that looks for config.yaml in the current
// directory and ./config, with STRATUM_* environment overrides.
func New() *viper.Viper {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("STRATUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// Read loads and validates the configuration. A missing config file is not
// an error: defaults and environment variables are enough to run.
func Read(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	if config.RateBurst < 1 {
		config.RateBurst = 1
	}
	config.Storage.Driver = strings.ToLower(config.Storage.Driver)
	config.Warehouse.Driver = strings.ToLower(config.Warehouse.Driver)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Load reads the configuration and exits the process when it is unusable.
func Load() *Config {
	config, err := Read(New())
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return config
}

// Validate checks the combinations the loaders cannot work with.
func (c *Config) Validate() error {
	if c.AssetsBucket == "" {
		return errors.New("assets_bucket must be set")
	}

	switch c.Storage.Driver {
	case "gcs", "s3":
	case "local":
		if c.Storage.Local.Root == "" {
			return errors.New("storage.local.root must be set for the local driver")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Warehouse.Driver {
	case "bigquery":
		if c.Storage.Driver != "gcs" {
			return errors.New("the bigquery warehouse loads from Cloud Storage; set storage.driver to gcs")
		}
	case "postgres", "mysql", "sqlite":
		if c.Warehouse.DSN == "" {
			return errors.Errorf("warehouse.dsn must be set for the %s driver", c.Warehouse.Driver)
		}
	default:
		return errors.Errorf("unknown warehouse driver %q", c.Warehouse.Driver)
	}

	for i, s := range c.Schedules {
		if s.Cron == "" {
			return errors.Errorf("schedules[%d]: cron expression is required", i)
		}
		if (s.CSV == nil) == (s.Query == nil) {
			return errors.Errorf("schedules[%d]: exactly one of csv or query must be set", i)
		}
	}
	return nil
}
