// Package config assembles planner settings from an optional YAML file and
// the environment, in that order, and validates the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bjorn1004/route-finder/internal/opt"
)

type Config struct {
	LogLevel string `yaml:"logLevel" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Workers  int    `yaml:"workers" env:"WORKERS" validate:"min=1,max=256"`
	// Seed of the first worker; zero picks a time based seed.
	Seed int64 `yaml:"seed" env:"SEED"`

	Search struct {
		StartTemp         float64 `yaml:"startTemp" env:"START_TEMP" validate:"gt=0,gtfield=EndTemp"`
		EndTemp           float64 `yaml:"endTemp" env:"END_TEMP" validate:"gt=0"`
		Q                 int     `yaml:"q" env:"Q" validate:"min=1"`
		Alpha             float64 `yaml:"alpha" env:"ALPHA" validate:"gt=0,lt=1"`
		ReheatTemp        float64 `yaml:"reheatTemp" env:"REHEAT_TEMP" validate:"gt=0"`
		PerturbTemp       float64 `yaml:"perturbTemp" env:"PERTURB_TEMP" validate:"gt=0"`
		PerturbIterations int     `yaml:"perturbIterations" env:"PERTURB_ITERATIONS" validate:"min=0"`
		// Rounds of iterated local search; 0 runs until stopped.
		Rounds            int           `yaml:"rounds" env:"ROUNDS" validate:"min=0"`
		PublishEvery      int           `yaml:"publishEvery" env:"PUBLISH_EVERY" validate:"min=1"`
		RepublishInterval time.Duration `yaml:"republishInterval" env:"REPUBLISH_INTERVAL" validate:"gt=0"`
		MaxSelectAttempts int           `yaml:"maxSelectAttempts" env:"MAX_SELECT_ATTEMPTS" validate:"min=1"`
		Weights           opt.Weights   `yaml:"weights" envPrefix:"WEIGHT_"`
		PerturbWeights    opt.Weights   `yaml:"perturbWeights" envPrefix:"PERTURB_WEIGHT_"`
	} `yaml:"search" envPrefix:"SEARCH_"`

	Data struct {
		Orders string `yaml:"orders" env:"ORDERS" validate:"required"`
		Matrix string `yaml:"matrix" env:"MATRIX" validate:"required"`
	} `yaml:"data" envPrefix:"DATA_"`

	Output struct {
		// Dir receives one file per kept round; empty disables file output.
		Dir       string `yaml:"dir" env:"DIR"`
		PerWorker bool   `yaml:"perWorker" env:"PER_WORKER"`
	} `yaml:"output" envPrefix:"OUTPUT_"`

	HTTP struct {
		// Addr of the observer server; empty disables it.
		Addr            string        `yaml:"addr" env:"ADDR"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	} `yaml:"http" envPrefix:"HTTP_"`

	Status struct {
		// Rate caps forwarded snapshots per second and worker.
		Rate   float64 `yaml:"rate" env:"RATE" validate:"gt=0"`
		Burst  int     `yaml:"burst" env:"BURST" validate:"min=1"`
		Buffer int     `yaml:"buffer" env:"BUFFER" validate:"min=1"`
	} `yaml:"status" envPrefix:"STATUS_"`

	Webhook struct {
		// URL receives run notifications; empty disables them.
		URL         string        `yaml:"url" env:"URL" validate:"omitempty,url"`
		Secret      string        `yaml:"secret" env:"SECRET"`
		MaxAttempts int           `yaml:"maxAttempts" env:"MAX_ATTEMPTS" validate:"min=1"`
		Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gt=0"`
	} `yaml:"webhook" envPrefix:"WEBHOOK_"`

	Auth struct {
		// Secret signs control tokens; empty leaves control open.
		Secret string `yaml:"secret" env:"JWT_SECRET" validate:"omitempty,min=16"`
		Issuer string `yaml:"issuer" env:"ISSUER"`
	} `yaml:"auth" envPrefix:"AUTH_"`

	DatabaseURL string `yaml:"databaseURL" env:"DATABASE_URL"`
	DBMigrate   bool   `yaml:"dbMigrate" env:"DB_MIGRATE"`
	RedisURL    string `yaml:"redisURL" env:"REDIS_URL"`
}

// Default returns the settings used for anything neither the file nor the
// environment sets.
func Default() *Config {
	p := opt.DefaultParams()
	c := &Config{LogLevel: "info", Workers: 1, DBMigrate: true}
	c.Search.StartTemp = p.StartTemp
	c.Search.EndTemp = p.EndTemp
	c.Search.Q = p.Q
	c.Search.Alpha = p.Alpha
	c.Search.ReheatTemp = p.ReheatTemp
	c.Search.PerturbTemp = p.PerturbTemp
	c.Search.PerturbIterations = p.PerturbIterations
	c.Search.Rounds = p.Rounds
	c.Search.PublishEvery = p.PublishEvery
	c.Search.RepublishInterval = p.RepublishInterval
	c.Search.MaxSelectAttempts = p.MaxSelectAttempts
	c.Search.Weights = p.Weights
	c.Search.PerturbWeights = p.PerturbWeights
	c.Data.Orders = "data/Orderbestand.txt"
	c.Data.Matrix = "data/AfstandenMatrix.txt"
	c.HTTP.Addr = ":8080"
	c.HTTP.ShutdownTimeout = 10 * time.Second
	c.Status.Rate = 4
	c.Status.Burst = 1
	c.Status.Buffer = 16
	c.Auth.Issuer = "route-finder"
	c.Webhook.MaxAttempts = 5
	c.Webhook.Timeout = 5 * time.Second
	return c
}

// Load reads path when it is not empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// the first error keeps the log readable
			return nil, fmt.Errorf("config: %w", aggErr.Errors[0])
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Errorf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("config: invalid: %w", errors.Join(msgs...))
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.Search.Weights == (opt.Weights{}) {
		return errors.New("config: invalid: every search weight is zero")
	}
	return nil
}

// Params converts the search section for the optimizer.
func (c *Config) Params() opt.Params {
	s := c.Search
	return opt.Params{
		StartTemp:         s.StartTemp,
		EndTemp:           s.EndTemp,
		Q:                 s.Q,
		Alpha:             s.Alpha,
		ReheatTemp:        s.ReheatTemp,
		PerturbTemp:       s.PerturbTemp,
		PerturbIterations: s.PerturbIterations,
		Rounds:            s.Rounds,
		Weights:           s.Weights,
		PerturbWeights:    s.PerturbWeights,
		PublishEvery:      s.PublishEvery,
		RepublishInterval: s.RepublishInterval,
		MaxSelectAttempts: s.MaxSelectAttempts,
	}
}

// Level maps LogLevel for slog.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
