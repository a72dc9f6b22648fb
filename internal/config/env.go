package config

import (
	"github.com/caarlos0/env/v11"
)

// Env holds the CLI defaults that may be given as PLAYBUILD_* environment
// variables.
type Env struct {
	Config      []string `env:"CONFIG" envSeparator:","`
	Patches     []string `env:"PATCH" envSeparator:","`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string   `env:"LOG_FORMAT" envDefault:"text"`
	MetricsAddr string   `env:"METRICS_ADDR"`
	OTelURL     string   `env:"OTEL_ENDPOINT"`
}

func LoadEnv() (Env, error) {
	return env.ParseAsWithOptions[Env](env.Options{Prefix: "PLAYBUILD_"})
}
