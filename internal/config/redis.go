package config

import (
	"os"
	"sync"
)

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

var (
	redisConfig *RedisConfig
	redisOnce   sync.Once
)

// LoadRedisConfig returns an empty Addr when Redis is not configured; batch
// progress then stays in process memory.
func LoadRedisConfig() *RedisConfig {
	redisOnce.Do(func() {
		redisConfig = &RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        mustInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "intellego:batch:"),
		}
	})
	return redisConfig
}
