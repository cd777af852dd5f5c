// Package config loads the server configuration from an optional .env file
// and RECORDS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every configuration variable.
const EnvPrefix = "RECORDS_"

type Config struct {
	DatabaseURL     string        `koanf:"database_url" validate:"required"`        // RECORDS_DATABASE_URL (required)
	DBDriver        string        `koanf:"db_driver" validate:"oneof=postgres pgx"` // RECORDS_DB_DRIVER (default "postgres")
	PoolSize        int           `koanf:"pool_size" validate:"min=1"`              // RECORDS_POOL_SIZE (default 25)
	PoolIdle        int           `koanf:"pool_idle" validate:"min=0"`              // RECORDS_POOL_IDLE (default 5)
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"min=0"`      // RECORDS_CONN_MAX_LIFETIME (default 5m)

	GRPCAddr  string `koanf:"grpc_addr" validate:"required"`                    // RECORDS_GRPC_ADDR (default ":9090")
	HTTPAddr  string `koanf:"http_addr" validate:"required"`                    // RECORDS_HTTP_ADDR (default ":8080")
	NATSURL   string `koanf:"nats_url"`                                         // RECORDS_NATS_URL (optional, empty = no events)
	AuthToken string `koanf:"auth_token"`                                       // RECORDS_AUTH_TOKEN (optional, empty = auth disabled)
	LogLevel  string `koanf:"log_level" validate:"oneof=debug info warn error"` // RECORDS_LOG_LEVEL (default "info")

	// Sync settings
	SyncInterval   time.Duration `koanf:"sync_interval" validate:"min=0"` // RECORDS_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        `koanf:"sync_s3_bucket"`                 // RECORDS_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        `koanf:"sync_s3_endpoint"`               // RECORDS_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        `koanf:"sync_s3_region"`                 // RECORDS_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        `koanf:"sync_s3_key"`                    // RECORDS_SYNC_S3_KEY (default "records/backup.jsonl")
	SyncFile       string        `koanf:"sync_file"`                      // RECORDS_SYNC_FILE (enables a local file backup when set)
}

// Default returns the configuration used for every unset variable.
func Default() Config {
	return Config{
		DBDriver:        "postgres",
		PoolSize:        25,
		PoolIdle:        5,
		ConnMaxLifetime: 5 * time.Minute,
		GRPCAddr:        ":9090",
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		SyncS3Region:    "us-east-1",
		SyncS3Key:       "records/backup.jsonl",
	}
}

// Load reads dotenvFiles (".env" when none are given and it exists) into
// the process environment without overriding variables already set, then
// layers RECORDS_* variables over Default and validates the result.
func Load(dotenvFiles ...string) (*Config, error) {
	if err := loadDotenv(dotenvFiles); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// Empty variables leave the default in place.
			if value == "" {
				return "", nil
			}
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var c Config
	if err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &c,
			TagName:          "koanf",
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadDotenv(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load %s: %w", strings.Join(files, ", "), err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their variable name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return EnvPrefix + strings.ToUpper(f.Tag.Get("koanf"))
	})
	return v
}

// Validate reports every invalid setting by its environment variable.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate configuration: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs[i] = fe.Field() + " is required"
		case "oneof":
			msgs[i] = fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
		default:
			msgs[i] = fmt.Sprintf("%s fails %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// SlogLevel returns LogLevel as a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
