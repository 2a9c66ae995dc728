// internal/workers/verification/extract-paystub-data/config.go
package extractpaystubdata

import "time"

type Config struct {
	CacheTTL        time.Duration
	DownloadTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		CacheTTL:        time.Hour,
		DownloadTimeout: 30 * time.Second,
	}
}
