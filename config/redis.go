package config

import (
	"sync"
	"time"
)

var (
	redisOnce   sync.Once
	redisConfig *RedisConfig
)

// RedisConfig 异步任务队列配置
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Concurrency int
	MaxRetries  int
	TaskTimeout time.Duration
	StatusTTL   time.Duration
}

func GetRedisConfig() *RedisConfig {
	redisOnce.Do(func() {
		loadEnv()

		redisConfig = &RedisConfig{
			Addr:        getString("REDIS_ADDR", "localhost:6379"),
			Password:    getString("REDIS_PASSWORD", ""),
			DB:          getInt("REDIS_DB", 0),
			Concurrency: getInt("WORKER_CONCURRENCY", 5),
			MaxRetries:  getInt("WORKER_MAX_RETRIES", 3),
			TaskTimeout: getDuration("WORKER_TASK_TIMEOUT", 10*time.Minute),
			StatusTTL:   getDuration("JOB_STATUS_TTL", 24*time.Hour),
		}
	})
	return redisConfig
}
