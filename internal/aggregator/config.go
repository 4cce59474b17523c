package aggregator

import "time"

type Config struct {
	PassTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		PassTimeout: 15 * time.Second,
	}
}
