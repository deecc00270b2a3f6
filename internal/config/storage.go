package config

import (
	"github.com/andrew-solarstorm/go-packages/common"
)

type StorageConfig struct {
	// DBPath is the BoltDB file holding the last snapshot of each market.
	// Default: "./data/sor-engine.db"
	DBPath string

	// PersistenceEnabled controls snapshot warm start and persistence.
	// Default: true
	PersistenceEnabled bool

	// RedisAddr enables the shared snapshot cache when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// CacheTTLMs is how long a fetched snapshot may be reused. 0 disables caching.
	// Default: 500
	CacheTTLMs int
}

func (c *StorageConfig) Key() string {
	return STORAGE_CONFIG_KEY
}

func (c *StorageConfig) Load() error {
	c.DBPath = common.GetEnvOrDefault("SNAPSHOT_DB_PATH", "./data/sor-engine.db")
	c.PersistenceEnabled = common.GetEnvOrDefault("SNAPSHOT_PERSISTENCE_ENABLED", "true") == "true"
	c.RedisAddr = common.GetEnvOrDefault("REDIS_ADDR", "")
	c.RedisPassword = common.GetEnvOrDefault("REDIS_PASSWORD", "")
	c.RedisDB = common.GetEnvOrDefaultInt("REDIS_DB", 0)
	c.CacheTTLMs = common.GetEnvOrDefaultInt("SNAPSHOT_CACHE_TTL_MS", 500)
	return nil
}

func (c *StorageConfig) Validate() error {
	return nil
}
