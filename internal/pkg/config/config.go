package config

import (
	"os"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config carries everything the service needs to start. Database and secret
// material comes from config.yaml; server knobs can be overridden through
// PRESENCE_* environment variables or flags.
type Config struct {
	Web struct {
		APIHost         string        `conf:"default:0.0.0.0:8080"`
		StorageTimeout  time.Duration `conf:"default:5s"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
	}
	Cache struct {
		RedisAddr string        `conf:"default:localhost:6379"`
		TTL       time.Duration `conf:"default:5m"`
	}
	Geo struct {
		DefaultAccuracyMeters float64 `conf:"default:500"`
		FixedMarginMeters     float64 `conf:"default:50"`
	}

	DBUsername string `yaml:"db_username"`
	DBPassword string `yaml:"db_password"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"port"`
	DBName     string `yaml:"db_name"`
	DisableTLS bool   `yaml:"disable_tls"`
	BaseUrl    string `yaml:"base_url"`
	JWTKey     string `yaml:"jwt_key"`
}

func NewConfig() (*Config, error) {
	var c Config

	yamlFile, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "reading config.yaml")
	}

	if err = yaml.Unmarshal(yamlFile, &c); err != nil {
		return nil, errors.Wrap(err, "parsing config.yaml")
	}

	if err = conf.Parse(os.Args[1:], "PRESENCE", &c); err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			usage, uerr := conf.Usage("PRESENCE", &c)
			if uerr != nil {
				return nil, errors.Wrap(uerr, "generating config usage")
			}
			return nil, errors.New(usage)
		}
		return nil, errors.Wrap(err, "parsing config")
	}

	if c.DBUsername == "" || c.DBPassword == "" || c.DBHost == "" || c.DBName == "" {
		return nil, errors.New("missing required database configuration")
	}

	return &c, nil
}
