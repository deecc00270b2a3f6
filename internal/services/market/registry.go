// Package market holds the static exchange configuration (assets, tickers,
// pair orientation) and the latest book snapshot of every market.
package market

import (
	"errors"
	"fmt"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/holiman/uint256"

	"github.com/hxuan190/sor-engine/internal/common"
	"github.com/hxuan190/sor-engine/internal/domain"
)

var ErrInvalidMarkets = errors.New("invalid markets file")

// MarketsFile is the TOML layout of the market definition file.
type MarketsFile struct {
	Ordering       []domain.Asset      `toml:"ordering"`
	Assets         []AssetDef          `toml:"assets"`
	SupportedPairs []domain.TradedPair `toml:"supported_pairs"`
	Tickers        []TickerDef         `toml:"tickers"`
	Routes         []PresetRoute       `toml:"routes"`
}

type AssetDef struct {
	Symbol   domain.Asset `toml:"symbol"`
	Name     string       `toml:"name"`
	Address  string       `toml:"address"`
	Decimals uint8        `toml:"decimals"`
}

// TickerDef quantities are display amounts: min_qty and qty_increment in
// base asset units, price_increment in quote asset units.
type TickerDef struct {
	Base           domain.Asset `toml:"base"`
	Quote          domain.Asset `toml:"quote"`
	MinQty         string       `toml:"min_qty"`
	QtyIncrement   string       `toml:"qty_increment"`
	PriceIncrement string       `toml:"price_increment"`
	EcosystemBook  bool         `toml:"ecosystem_book"`
}

// PresetRoute is a curated multi-market route published to clients.
type PresetRoute struct {
	Name        string     `toml:"name" json:"name"`
	Description string     `toml:"description" json:"description"`
	Pairs       []RouteHop `toml:"pairs" json:"pairs"`
}

type RouteHop struct {
	TokenIn  domain.Asset `toml:"token_in" json:"tokenIn"`
	TokenOut domain.Asset `toml:"token_out" json:"tokenOut"`
	Base     domain.Asset `toml:"base" json:"baseToken"`
	Quote    domain.Asset `toml:"quote" json:"quoteToken"`
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	assets    map[domain.Asset]domain.AssetInfo
	symbols   []domain.Asset
	priority  map[domain.Asset]int
	supported []domain.TradedPair
	tickers   map[domain.TradedPair]domain.TickerSpec
	pairs     []domain.TradedPair
	routes    []PresetRoute
}

// LoadRegistry reads the market definition file at path.
func LoadRegistry(path string) (*Registry, error) {
	var f MarketsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return NewRegistry(f)
}

// ParseRegistry builds a registry from TOML text.
func ParseRegistry(data string) (*Registry, error) {
	var f MarketsFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}
	return NewRegistry(f)
}

func NewRegistry(f MarketsFile) (*Registry, error) {
	r := &Registry{
		assets:   make(map[domain.Asset]domain.AssetInfo, len(f.Assets)),
		symbols:  make([]domain.Asset, 0, len(f.Assets)),
		priority: make(map[domain.Asset]int, len(f.Ordering)),
		tickers:  make(map[domain.TradedPair]domain.TickerSpec, len(f.Tickers)),
		routes:   f.Routes,
	}
	for _, a := range f.Assets {
		if a.Symbol == "" {
			return nil, fmt.Errorf("%w: asset without symbol", ErrInvalidMarkets)
		}
		if _, dup := r.assets[a.Symbol]; dup {
			return nil, fmt.Errorf("%w: duplicate asset %s", ErrInvalidMarkets, a.Symbol)
		}
		r.assets[a.Symbol] = domain.AssetInfo{Symbol: a.Symbol, Name: a.Name, Address: a.Address, Decimals: a.Decimals}
		r.symbols = append(r.symbols, a.Symbol)
	}
	for i, a := range f.Ordering {
		if _, dup := r.priority[a]; dup {
			return nil, fmt.Errorf("%w: %s listed twice in ordering", ErrInvalidMarkets, a)
		}
		r.priority[a] = i
	}
	for _, p := range f.SupportedPairs {
		if err := r.checkPair(p); err != nil {
			return nil, err
		}
		r.supported = append(r.supported, p)
	}
	for _, t := range f.Tickers {
		spec, err := r.tickerSpec(t)
		if err != nil {
			return nil, err
		}
		if _, dup := r.tickers[spec.Pair]; dup {
			return nil, fmt.Errorf("%w: duplicate ticker %s", ErrInvalidMarkets, spec.Pair)
		}
		r.tickers[spec.Pair] = spec
		r.pairs = append(r.pairs, spec.Pair)
	}
	for _, route := range f.Routes {
		for _, hop := range route.Pairs {
			if _, ok := r.tickers[domain.TradedPair{Base: hop.Base, Quote: hop.Quote}]; !ok {
				return nil, fmt.Errorf("%w: route %s uses unknown market %s-%s", ErrInvalidMarkets, route.Name, hop.Base, hop.Quote)
			}
		}
	}
	return r, nil
}

func (r *Registry) checkPair(p domain.TradedPair) error {
	if p.Base == p.Quote {
		return fmt.Errorf("%w: pair %s trades an asset against itself", ErrInvalidMarkets, p)
	}
	for _, a := range []domain.Asset{p.Base, p.Quote} {
		if _, ok := r.assets[a]; !ok {
			return fmt.Errorf("%w: pair %s: %w %s", ErrInvalidMarkets, p, domain.ErrUnknownAsset, a)
		}
	}
	return nil
}

func (r *Registry) tickerSpec(t TickerDef) (domain.TickerSpec, error) {
	pair := domain.TradedPair{Base: t.Base, Quote: t.Quote}
	if err := r.checkPair(pair); err != nil {
		return domain.TickerSpec{}, err
	}
	base, quote := r.assets[t.Base], r.assets[t.Quote]
	minQty, err := optionalUnits(t.MinQty, base.Decimals)
	if err != nil {
		return domain.TickerSpec{}, fmt.Errorf("%w: ticker %s min_qty: %w", ErrInvalidMarkets, pair, err)
	}
	inc, err := optionalUnits(t.QtyIncrement, base.Decimals)
	if err != nil {
		return domain.TickerSpec{}, fmt.Errorf("%w: ticker %s qty_increment: %w", ErrInvalidMarkets, pair, err)
	}
	tick, err := optionalUnits(t.PriceIncrement, quote.Decimals)
	if err != nil {
		return domain.TickerSpec{}, fmt.Errorf("%w: ticker %s price_increment: %w", ErrInvalidMarkets, pair, err)
	}
	return domain.TickerSpec{
		Pair:           pair,
		MinQty:         minQty,
		QtyIncrement:   inc,
		PriceIncrement: tick,
		EcosystemBook:  t.EcosystemBook,
	}, nil
}

func optionalUnits(s string, decimals uint8) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := common.ToBaseUnits(s, decimals)
	if err != nil {
		return nil, err
	}
	if v.IsZero() {
		return nil, nil
	}
	return v, nil
}

// PairFor returns the canonical market for trading spend against receive.
// Explicitly supported pairs keep their orientation; otherwise the asset
// with the lower ordering index is the base.
func (r *Registry) PairFor(spend, receive domain.Asset) (domain.TradedPair, error) {
	if spend == receive {
		return domain.TradedPair{}, domain.ErrSameAsset
	}
	for _, p := range r.supported {
		if p.Contains(spend) && p.Contains(receive) {
			return p, nil
		}
	}
	sp, ok1 := r.priority[spend]
	rp, ok2 := r.priority[receive]
	if !ok1 || !ok2 {
		return domain.TradedPair{}, fmt.Errorf("no ordering for %s/%s: %w", spend, receive, domain.ErrUnknownMarket)
	}
	if sp < rp {
		return domain.TradedPair{Base: spend, Quote: receive}, nil
	}
	return domain.TradedPair{Base: receive, Quote: spend}, nil
}

func (r *Registry) Asset(a domain.Asset) (domain.AssetInfo, bool) {
	info, ok := r.assets[a]
	return info, ok
}

func (r *Registry) Decimals(a domain.Asset) (uint8, error) {
	info, ok := r.assets[a]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownAsset, a)
	}
	return info.Decimals, nil
}

// Ticker looks the market up in either orientation and returns it canonical.
func (r *Registry) Ticker(pair domain.TradedPair) (domain.TickerSpec, bool) {
	if spec, ok := r.tickers[pair]; ok {
		return spec, true
	}
	spec, ok := r.tickers[domain.TradedPair{Base: pair.Quote, Quote: pair.Base}]
	return spec, ok
}

// Tickers returns every market in file order.
func (r *Registry) Tickers() []domain.TickerSpec {
	out := make([]domain.TickerSpec, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, r.tickers[p])
	}
	return out
}

// Assets returns the asset symbols in file order.
func (r *Registry) Assets() []domain.Asset {
	return slices.Clone(r.symbols)
}

func (r *Registry) AssetInfos() []domain.AssetInfo {
	out := make([]domain.AssetInfo, 0, len(r.symbols))
	for _, s := range r.symbols {
		out = append(out, r.assets[s])
	}
	return out
}

func (r *Registry) Routes() []PresetRoute {
	return slices.Clone(r.routes)
}
