package ledger

import "time"

// DefaultCost is the credit price of one candidate status notification.
const DefaultCost = 20

type Config struct {
	Cost    int
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Cost:    DefaultCost,
		Timeout: 5 * time.Second,
	}
}
