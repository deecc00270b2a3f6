// Package exchange is the REST client for the order book exchange.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/holiman/uint256"

	"github.com/hxuan190/sor-engine/internal/domain"
)

const DefaultTimeout = 5 * time.Second

var ErrBadSnapshot = errors.New("malformed snapshot")

// amounts exceed 64 bits, keep numbers as text
var api = sonic.Config{UseNumber: true}.Froze()

// Client fetches book snapshots over the exchange REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// snapshotResponse levels are [price, volume, orders] with price in raw
// quote units per whole base and volume in raw base units.
type snapshotResponse struct {
	Result *struct {
		Bids  [][]any `json:"bids"`
		Asks  [][]any `json:"asks"`
		MsgID uint64  `json:"msg_id"`
		Time  int64   `json:"time"`
	} `json:"result"`
	Error string `json:"error,omitempty"`
	Code  int    `json:"code,omitempty"`
}

// GetSnapshot implements market.SnapshotSource.
func (c *Client) GetSnapshot(ctx context.Context, ticker domain.TickerSpec, levels int) (*domain.Snapshot, error) {
	params := url.Values{}
	params.Set("base", string(ticker.Pair.Base))
	params.Set("quote", string(ticker.Pair.Quote))
	params.Set("to_ecosystem_book", strconv.FormatBool(ticker.EcosystemBook))
	params.Set("levels", strconv.Itoa(levels))

	body, err := c.doGet(ctx, "/book/snapshot?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("exchange: get snapshot %s: %w", ticker.Pair, err)
	}
	snap, err := decodeSnapshot(body)
	if err != nil {
		return nil, fmt.Errorf("exchange: decode snapshot %s: %w", ticker.Pair, err)
	}
	snap.Pair = ticker.Pair
	return snap, nil
}

func decodeSnapshot(body []byte) (*domain.Snapshot, error) {
	var resp snapshotResponse
	if err := api.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s (code %d)", domain.ErrSnapshotUnavailable, resp.Error, resp.Code)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: empty result", ErrBadSnapshot)
	}
	bids, err := decodeLevels(resp.Result.Bids)
	if err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}
	asks, err := decodeLevels(resp.Result.Asks)
	if err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}
	snap := &domain.Snapshot{Bids: bids, Asks: asks, MsgID: resp.Result.MsgID}
	if resp.Result.Time > 0 {
		snap.Timestamp = time.UnixMilli(resp.Result.Time)
	} else {
		snap.Timestamp = time.Now()
	}
	return snap, nil
}

func numberText(v any) string {
	switch n := v.(type) {
	case json.Number:
		return n.String()
	case string:
		return n
	default:
		return fmt.Sprint(v)
	}
}

func decodeLevels(raw [][]any) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, 0, len(raw))
	for i, lvl := range raw {
		if len(lvl) < 2 {
			return nil, fmt.Errorf("%w: level %d has %d fields", ErrBadSnapshot, i, len(lvl))
		}
		price, err := uint256.FromDecimal(numberText(lvl[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: level %d price %v: %v", ErrBadSnapshot, i, lvl[0], err)
		}
		volume, err := uint256.FromDecimal(numberText(lvl[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: level %d volume %v: %v", ErrBadSnapshot, i, lvl[1], err)
		}
		if volume.IsZero() {
			continue
		}
		var orders uint32
		if len(lvl) > 2 {
			n, err := strconv.ParseUint(numberText(lvl[2]), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: level %d orders %v", ErrBadSnapshot, i, lvl[2])
			}
			orders = uint32(n)
		}
		out = append(out, domain.PriceLevel{Price: price, Volume: volume, Orders: orders})
	}
	return out, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrSnapshotUnavailable, resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
