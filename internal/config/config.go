package config

import (
	"log"
	"sync"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	DbURI string `env:"COURRIER_DB_URI" envDefault:"./courrier.sqlite"`

	LogLevel string `env:"COURRIER_LOG_LEVEL" envDefault:"info"`

	APIKeys []string `env:"COURRIER_API_KEYS" envSeparator:","`
}

var (
	once sync.Once
	cfg  Config
)

func Get() *Config {
	once.Do(func() {
		cfg = Config{}
		if err := env.Parse(&cfg); err != nil {
			log.Panic("Couldn't parse Config from env: ", err)
		}
	})
	return &cfg
}
