// internal/workers/verification/verify-application-data/config.go
package verifyapplicationdata

// Config holds the comparison thresholds.
type Config struct {
	SimilarityThreshold float64
}

func LoadConfig() *Config {
	return &Config{
		SimilarityThreshold: 0.8,
	}
}
