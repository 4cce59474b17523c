package recommendation

import "time"

type Config struct {
	// Window is how recently a posting must have been approved or updated.
	Window  time.Duration
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Window:  7 * 24 * time.Hour,
		Timeout: 10 * time.Second,
	}
}
