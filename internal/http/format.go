package http

import (
	"strings"

	"github.com/holiman/uint256"

	"github.com/hxuan190/sor-engine/internal/common"
	"github.com/hxuan190/sor-engine/internal/domain"
	markets "github.com/hxuan190/sor-engine/internal/services/market"
)

// parseAssets splits a comma separated symbol list, skipping blanks.
func parseAssets(s string) []domain.Asset {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]domain.Asset, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, domain.Asset(p))
		}
	}
	return out
}

// display renders raw amounts in units of their asset.
type display struct {
	registry *markets.Registry
}

func (d display) amount(raw *uint256.Int, asset domain.Asset) string {
	decimals, err := d.registry.Decimals(asset)
	if err != nil {
		return rawString(raw)
	}
	return common.FromBaseUnits(raw, decimals)
}

// price renders a raw price of pair, which is always in quote units.
func (d display) price(raw *uint256.Int, pair domain.TradedPair) string {
	return d.amount(raw, pair.Quote)
}

func rawString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
