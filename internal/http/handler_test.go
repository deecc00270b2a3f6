package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"github.com/hxuan190/sor-engine/internal/aggregator"
	"github.com/hxuan190/sor-engine/internal/aggregator/services/market"
	"github.com/hxuan190/sor-engine/internal/common"
	"github.com/hxuan190/sor-engine/internal/config"
	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/http/httputil"
	markets "github.com/hxuan190/sor-engine/internal/services/market"
)

const testMarkets = `
ordering = ["AUSDC", "AETH", "STRK", "AUSDT"]

[[assets]]
symbol = "AUSDC"
decimals = 6

[[assets]]
symbol = "AETH"
decimals = 18

[[assets]]
symbol = "STRK"
decimals = 18

[[assets]]
symbol = "AUSDT"
decimals = 6

[[supported_pairs]]
base = "STRK"
quote = "AUSDC"

[[supported_pairs]]
base = "AETH"
quote = "AUSDC"

[[tickers]]
base = "STRK"
quote = "AUSDC"
min_qty = "0.01"
qty_increment = "0.01"
price_increment = "0.0001"

[[tickers]]
base = "AETH"
quote = "AUSDC"
min_qty = "0.001"
qty_increment = "0.0001"
price_increment = "0.01"

[[routes]]
name = "STRK-AETH"
description = "STRK to AETH through AUSDC"

[[routes.pairs]]
token_in = "STRK"
token_out = "AUSDC"
base = "STRK"
quote = "AUSDC"

[[routes.pairs]]
token_in = "AUSDC"
token_out = "AETH"
base = "AETH"
quote = "AUSDC"
`

var (
	strkUSDC = domain.TradedPair{Base: "STRK", Quote: "AUSDC"}
	ethUSDC  = domain.TradedPair{Base: "AETH", Quote: "AUSDC"}
)

type level struct{ price, volume string }

var books = map[domain.TradedPair][2][]level{
	strkUSDC: {
		{{"100", "60"}, {"99.5", "100"}},
		{{"100.5", "100"}},
	},
	ethUSDC: {
		{{"2000", "10"}},
		{{"2001", "10"}},
	},
}

type bookSource struct {
	t    testing.TB
	mu   sync.Mutex
	fail map[domain.TradedPair]bool
	n    uint64
}

func (s *bookSource) units(amount string, decimals uint8) *uint256.Int {
	v, err := common.ToBaseUnits(amount, decimals)
	if err != nil {
		s.t.Fatal(err)
	}
	return v
}

func (s *bookSource) GetSnapshot(_ context.Context, ticker domain.TickerSpec, _ int) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	b, ok := books[ticker.Pair]
	if !ok || s.fail[ticker.Pair] {
		return nil, fmt.Errorf("exchange: %w", domain.ErrSnapshotUnavailable)
	}
	side := func(levels []level) []domain.PriceLevel {
		out := make([]domain.PriceLevel, len(levels))
		for i, l := range levels {
			out[i] = domain.PriceLevel{Price: s.units(l.price, 6), Volume: s.units(l.volume, 18), Orders: 2}
		}
		return out
	}
	return &domain.Snapshot{Pair: ticker.Pair, Bids: side(b[0]), Asks: side(b[1]), MsgID: s.n, Timestamp: time.Now()}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *bookSource) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg, err := markets.ParseRegistry(testMarkets)
	if err != nil {
		t.Fatal(err)
	}
	conf := &config.RouterConfig{
		MaxHops:             4,
		SnapshotLevels:      10,
		RefreshInterval:     time.Second,
		DefaultSlippageBips: 100,
		ExchangeFeePpm:      1000,
	}
	src := &bookSource{t: t, fail: map[domain.TradedPair]bool{}}
	marketSvc := market.New(conf, reg, src)
	if _, err := marketSvc.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	agg := aggregator.NewService(marketSvc, conf)

	handlers := []httputil.IHttpHandler{
		NewRouteHandler(agg),
		NewQuoteHandler(agg),
		NewMarketHandler(agg),
	}
	return NewRouter(handlers, nil), src
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
}

func do(t *testing.T, r *gin.Engine, method, target string, out interface{}) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, target, w.Body.String(), err)
	}
	if out != nil && env.Success {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("%s %s: decode data: %v", method, target, err)
		}
	}
	return w.Code, env
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestGetRoute(t *testing.T) {
	r, _ := newTestRouter(t)

	var resp RouteResponse
	code, _ := do(t, r, http.MethodGet, "/api/v1/route?from=STRK&to=AETH", &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if fmt.Sprint(resp.Path) != "[STRK AUSDC AETH]" || resp.HopCount != 2 {
		t.Fatalf("route = %+v", resp)
	}
	first, last := resp.Hops[0], resp.Hops[1]
	if first.Side != "SELL" || first.BestPrice != "100" || first.Market != "STRK/AUSDC" {
		t.Errorf("first hop = %+v", first)
	}
	if last.Side != "BUY" || last.BestPrice != "2001" || last.Receive != "AETH" {
		t.Errorf("last hop = %+v", last)
	}
}

func TestGetRouteErrors(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing to", "/api/v1/route?from=STRK", http.StatusBadRequest, ""},
		{"unknown asset", "/api/v1/route?from=STRK&to=DOGE", http.StatusBadRequest, "BAD_REQUEST"},
		{"same asset", "/api/v1/route?from=STRK&to=STRK", http.StatusBadRequest, "BAD_REQUEST"},
		{"no market", "/api/v1/route?from=AUSDT&to=STRK", http.StatusNotFound, "NOT_FOUND"},
		{"excluded hub", "/api/v1/route?from=STRK&to=AETH&exclude=AUSDC", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, r, http.MethodGet, tt.target, nil)
			if code != tt.status || env.Success {
				t.Fatalf("status = %d, body = %+v", code, env)
			}
			if tt.code != "" && env.Code != tt.code {
				t.Errorf("code = %q, want %q", env.Code, tt.code)
			}
		})
	}
}

func TestGetQuoteDirect(t *testing.T) {
	r, _ := newTestRouter(t)

	var resp QuoteResponse
	code, env := do(t, r, http.MethodGet, "/api/v1/quote?pay=STRK&receive=AUSDC&amount=50", &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d: %s", code, env.Error)
	}
	if !resp.Viable || resp.ID == "" || resp.Anchor != "pay" {
		t.Fatalf("quote = %+v", resp)
	}
	if resp.AmountIn != "50" || resp.AmountInRaw != "50000000000000000000" {
		t.Errorf("amountIn = %s / %s", resp.AmountIn, resp.AmountInRaw)
	}
	if resp.SlippageBips != 100 || resp.ExchangeFeePpm != 1000 {
		t.Errorf("params = %d bips, %d ppm", resp.SlippageBips, resp.ExchangeFeePpm)
	}
	if len(resp.Hops) != 1 || resp.Hops[0].Side != "SELL" || resp.Hops[0].Command != "SellExactBaseForWhateverQuote" {
		t.Fatalf("hops = %+v", resp.Hops)
	}
	// best bid 100 banded to 80%
	if resp.BoundedProtectionPrice != "80" {
		t.Errorf("bounded protection price = %s", resp.BoundedProtectionPrice)
	}
}

func TestGetQuoteTwoHopReceiveAnchor(t *testing.T) {
	r, _ := newTestRouter(t)

	var resp QuoteResponse
	code, env := do(t, r, http.MethodGet, "/api/v1/quote?pay=STRK&receive=AETH&amount=0.25&anchor=receive&slippageBips=50", &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d: %s", code, env.Error)
	}
	if !resp.Viable || resp.Anchor != "receive" || resp.SlippageBips != 50 {
		t.Fatalf("quote = %+v", resp)
	}
	if resp.HopCount != 2 || len(resp.Hops) != 2 {
		t.Fatalf("hops = %+v", resp.Hops)
	}
	if resp.Hops[0].Market != "STRK/AUSDC" || resp.Hops[1].Market != "AETH/AUSDC" {
		t.Errorf("markets = %s, %s", resp.Hops[0].Market, resp.Hops[1].Market)
	}
}

func TestGetQuoteNoViable(t *testing.T) {
	r, _ := newTestRouter(t)

	var resp QuoteResponse
	code, _ := do(t, r, http.MethodGet, "/api/v1/quote?pay=STRK&receive=AUSDC&amount=0.001", &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Viable || resp.NoViableReason == "" || resp.AmountOut != "" || len(resp.Hops) != 0 {
		t.Errorf("quote = %+v", resp)
	}
}

func TestGetQuoteErrors(t *testing.T) {
	r, src := newTestRouter(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing amount", "/api/v1/quote?pay=STRK&receive=AUSDC", http.StatusBadRequest},
		{"bad anchor", "/api/v1/quote?pay=STRK&receive=AUSDC&amount=1&anchor=both", http.StatusBadRequest},
		{"slippage above 100%", "/api/v1/quote?pay=STRK&receive=AUSDC&amount=1&slippageBips=10001", http.StatusBadRequest},
		{"garbage amount", "/api/v1/quote?pay=STRK&receive=AUSDC&amount=lots", http.StatusBadRequest},
		{"negative amount", "/api/v1/quote?pay=STRK&receive=AUSDC&amount=-1", http.StatusBadRequest},
		{"unknown asset", "/api/v1/quote?pay=DOGE&receive=AUSDC&amount=1", http.StatusBadRequest},
		{"no route", "/api/v1/quote?pay=AUSDT&receive=STRK&amount=1", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, env := do(t, r, http.MethodGet, tt.target, nil); code != tt.status {
				t.Errorf("status = %d, want %d (%s)", code, tt.status, env.Error)
			}
		})
	}

	t.Run("exchange down", func(t *testing.T) {
		src.mu.Lock()
		src.fail[strkUSDC] = true
		src.mu.Unlock()
		code, env := do(t, r, http.MethodGet, "/api/v1/quote?pay=STRK&receive=AUSDC&amount=1", nil)
		if code != http.StatusServiceUnavailable || env.Code != "SERVICE_UNAVAILABLE" {
			t.Errorf("status = %d, code = %s", code, env.Code)
		}
	})
}

func TestListMarkets(t *testing.T) {
	r, _ := newTestRouter(t)

	var resp MarketListResponse
	if code, _ := do(t, r, http.MethodGet, "/api/v1/markets?limit=1&page=2", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Total != 2 || resp.Pages != 2 || len(resp.Markets) != 1 {
		t.Fatalf("list = %+v", resp)
	}
	m := resp.Markets[0]
	if m.Market != "AETH/AUSDC" || !m.Live || m.BestBid != "2000" || m.BestAsk != "2001" || m.PriceIncrement != "0.01" {
		t.Errorf("market = %+v", m)
	}
}

func TestMarketStatsAndSweep(t *testing.T) {
	r, src := newTestRouter(t)

	var stats MarketStatsResponse
	do(t, r, http.MethodGet, "/api/v1/markets/stats", &stats)
	if stats.MarketCount != 2 || stats.LiveCount != 2 || stats.SweepCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	src.mu.Lock()
	src.fail[ethUSDC] = true
	src.mu.Unlock()

	var sweep SweepResponse
	if code, _ := do(t, r, http.MethodPost, "/api/v1/admin/markets/sweep", &sweep); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if sweep.Updated != 1 || sweep.Removed != 1 || sweep.Failed["AETH/AUSDC"] == "" {
		t.Errorf("sweep = %+v", sweep)
	}

	do(t, r, http.MethodGet, "/api/v1/markets/stats", &stats)
	if stats.LiveCount != 1 || stats.SweepCount != 2 {
		t.Errorf("stats after sweep = %+v", stats)
	}
}

func TestGetBook(t *testing.T) {
	r, _ := newTestRouter(t)

	var book BookResponse
	// reversed orientation resolves to the canonical market
	if code, _ := do(t, r, http.MethodGet, "/api/v1/markets/book?base=AUSDC&quote=STRK", &book); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if book.Market != "STRK/AUSDC" || len(book.Bids) != 2 || len(book.Asks) != 1 {
		t.Fatalf("book = %+v", book)
	}
	if book.Bids[1].Price != "99.5" || book.Bids[1].Volume != "100" || book.Bids[1].Orders != 2 {
		t.Errorf("second bid = %+v", book.Bids[1])
	}

	if code, _ := do(t, r, http.MethodGet, "/api/v1/markets/book?base=AUSDT&quote=STRK", nil); code != http.StatusNotFound {
		t.Errorf("unknown market status = %d", code)
	}
}

func TestPresetRoutesAndAssets(t *testing.T) {
	r, _ := newTestRouter(t)

	var routes []markets.PresetRoute
	do(t, r, http.MethodGet, "/api/v1/markets/routes", &routes)
	if len(routes) != 1 || len(routes[0].Pairs) != 2 || routes[0].Pairs[1].TokenOut != "AETH" {
		t.Errorf("routes = %+v", routes)
	}

	var assets []domain.AssetInfo
	do(t, r, http.MethodGet, "/api/v1/markets/assets", &assets)
	if len(assets) != 4 || assets[0].Symbol != "AUSDC" || assets[0].Decimals != 6 {
		t.Errorf("assets = %+v", assets)
	}
}

func TestParseAssets(t *testing.T) {
	got := parseAssets(" STRK, ,AETH,")
	if len(got) != 2 || got[0] != "STRK" || got[1] != "AETH" {
		t.Errorf("parseAssets = %v", got)
	}
	if parseAssets("") != nil {
		t.Error("empty list should be nil")
	}
}
