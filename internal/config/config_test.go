package config

import (
	"testing"
	"time"
)

func TestRouterConfigLoad(t *testing.T) {
	t.Setenv("ROUTER_MAX_HOPS", "3")
	t.Setenv("SNAPSHOT_REFRESH_SECONDS", "2")
	t.Setenv("EXCHANGE_FEE_PPM", "1000")

	var c RouterConfig
	if err := c.Load(); err != nil {
		t.Fatal(err)
	}
	if c.MaxHops != 3 || c.RefreshInterval != 2*time.Second || c.ExchangeFeePpm != 1000 {
		t.Errorf("config = %+v", c)
	}
	if c.SnapshotLevels != 10 || c.DefaultSlippageBips != 100 {
		t.Errorf("defaults = %+v", c)
	}
}

func TestRouterConfigValidate(t *testing.T) {
	valid := RouterConfig{MaxHops: 4, SnapshotLevels: 10, RefreshInterval: time.Second, DefaultSlippageBips: 100}
	tests := []struct {
		name   string
		mutate func(*RouterConfig)
		ok     bool
	}{
		{"valid", func(*RouterConfig) {}, true},
		{"zero hops", func(c *RouterConfig) { c.MaxHops = 0 }, false},
		{"hop cap", func(c *RouterConfig) { c.MaxHops = MaxRouterHops }, true},
		{"too many hops", func(c *RouterConfig) { c.MaxHops = MaxRouterHops + 1 }, false},
		{"zero levels", func(c *RouterConfig) { c.SnapshotLevels = 0 }, false},
		{"no interval", func(c *RouterConfig) { c.RefreshInterval = 0 }, false},
		{"full slippage", func(c *RouterConfig) { c.DefaultSlippageBips = 10_000 }, false},
		{"fees eat everything", func(c *RouterConfig) { c.ExchangeFeePpm, c.RouterFeePpm = 600_000, 400_000 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestGeneralConfigDefaults(t *testing.T) {
	var c GeneralConfig
	if err := c.Load(); err != nil {
		t.Fatal(err)
	}
	if c.HTTPPort != "8080" || c.Env != DevEnv {
		t.Errorf("config = %+v", c)
	}
}
