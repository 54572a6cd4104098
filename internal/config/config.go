// Package config assembles the service configuration from the process
// environment, optionally seeded from dotenv files.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// DefaultFiles are the dotenv files Load reads when present.
var DefaultFiles = []string{".env", "config/index.env"}

type MongoConfig struct {
	URI      string        `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string        `env:"DATABASE" envDefault:"auth"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type Config struct {
	Addr      string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8431"`
	BasePath  string `env:"BASE_PATH" envDefault:"/api/auth"`
	ClientURL string `env:"CLIENT_URL" envDefault:"http://localhost:3000"`

	JWTSecret     string        `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"pitchfork-auth"`
	StrictPurpose bool          `env:"JWT_STRICT_PURPOSE" envDefault:"true"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"10h"`
	ActionTTL     time.Duration `env:"ACTION_TTL" envDefault:"10m"`
	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"10"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	Database   database.Config       `envPrefix:"DATABASE_"`
	Mongo      MongoConfig           `envPrefix:"MONGO_"`
	SMTP       mail.SMTPConfig       `envPrefix:"MAIL_"`
	Dispatcher mail.DispatcherConfig `envPrefix:"MAIL_"`
	Log        utilities.Config      `envPrefix:"LOG_"`
}

// Load reads the dotenv files that exist (values already in the
// environment win) and then parses the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = DefaultFiles
	}
	for _, f := range files {
		// best-effort: a missing file is not an error
		_ = godotenv.Load(f)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StoreDriver == StorePostgres || cfg.StoreDriver == StoreSQLite {
		cfg.Database.Driver = cfg.StoreDriver
	}
	cfg.Database = cfg.Database.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StorePostgres, StoreSQLite, StoreMongo, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of postgres, sqlite, mongo, memory", c.StoreDriver))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d outside [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.ActionTTL <= 0 {
		errs = append(errs, errors.New("ACTION_TTL must be positive"))
	}
	return errors.Join(errs...)
}
