package config

import (
	"sync"
	"time"
)

type BatchConfig struct {
	MaxConcurrent        int
	RetryAttempts        int
	RetryBaseDelay       time.Duration
	RetryMaxDelay        time.Duration
	AutoFeedbackInterval time.Duration
}

var (
	batchConfig *BatchConfig
	batchOnce   sync.Once
)

func LoadBatchConfig() *BatchConfig {
	batchOnce.Do(func() {
		batchConfig = &BatchConfig{
			MaxConcurrent:        mustInt("BATCH_MAX_CONCURRENT", 5),
			RetryAttempts:        mustInt("BATCH_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:       mustDuration("BATCH_RETRY_BASE_DELAY", 2*time.Second),
			RetryMaxDelay:        mustDuration("BATCH_RETRY_MAX_DELAY", 30*time.Second),
			AutoFeedbackInterval: mustDuration("AUTO_FEEDBACK_INTERVAL", 0),
		}
	})
	return batchConfig
}
