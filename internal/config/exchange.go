package config

import (
	"errors"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
)

type ExchangeConfig struct {
	APIURL      string
	HTTPTimeout time.Duration
	// MarketsFile is the TOML market definition.
	MarketsFile string
}

func (c *ExchangeConfig) Key() string {
	return EXCHANGE_CONFIG_KEY
}

func (c *ExchangeConfig) Load() error {
	c.APIURL = common.GetEnvOrDefault("EXCHANGE_API_URL", "http://localhost:8888")
	c.HTTPTimeout = time.Duration(common.GetEnvOrDefaultInt("EXCHANGE_HTTP_TIMEOUT_MS", 5000)) * time.Millisecond
	c.MarketsFile = common.GetEnvOrDefault("MARKETS_FILE", "./config/markets.toml")
	return c.Validate()
}

func (c *ExchangeConfig) Validate() error {
	if c.APIURL == "" || c.MarketsFile == "" {
		return errors.New("invalid exchange config")
	}
	return nil
}
