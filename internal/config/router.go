package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
)

// MaxRouterHops is the longest route the router will search.
const MaxRouterHops = 8

type RouterConfig struct {
	// MaxHops bounds route length. Default: 4
	MaxHops int

	// SnapshotLevels is the book depth requested per side. Default: 10
	SnapshotLevels int

	// RefreshInterval is how often every market is re-fetched. Default: 5s
	RefreshInterval time.Duration

	DefaultSlippageBips uint64

	// Fees in parts per million of the traded amount.
	ExchangeFeePpm uint64
	RouterFeePpm   uint64
}

func (c *RouterConfig) Key() string {
	return ROUTER_CONFIG_KEY
}

func (c *RouterConfig) Load() error {
	c.MaxHops = common.GetEnvOrDefaultInt("ROUTER_MAX_HOPS", 4)
	c.SnapshotLevels = common.GetEnvOrDefaultInt("SNAPSHOT_LEVELS", 10)
	c.RefreshInterval = time.Duration(common.GetEnvOrDefaultInt("SNAPSHOT_REFRESH_SECONDS", 5)) * time.Second
	c.DefaultSlippageBips = uint64(common.GetEnvOrDefaultInt("DEFAULT_SLIPPAGE_BIPS", 100))
	c.ExchangeFeePpm = uint64(common.GetEnvOrDefaultInt("EXCHANGE_FEE_PPM", 0))
	c.RouterFeePpm = uint64(common.GetEnvOrDefaultInt("ROUTER_FEE_PPM", 0))
	return c.Validate()
}

func (c *RouterConfig) Validate() error {
	if c.MaxHops < 1 || c.MaxHops > MaxRouterHops {
		return fmt.Errorf("ROUTER_MAX_HOPS must be between 1 and %d", MaxRouterHops)
	}
	if c.SnapshotLevels < 1 {
		return errors.New("SNAPSHOT_LEVELS must be at least 1")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("SNAPSHOT_REFRESH_SECONDS must be positive")
	}
	if c.DefaultSlippageBips >= 10_000 {
		return errors.New("DEFAULT_SLIPPAGE_BIPS must be below 10000")
	}
	if c.ExchangeFeePpm+c.RouterFeePpm >= 1_000_000 {
		return errors.New("combined fees must be below 1000000 ppm")
	}
	return nil
}
