package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hxuan190/sor-engine/internal/common"
	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/metrics"
	"github.com/hxuan190/sor-engine/internal/services/router"
	"github.com/hxuan190/sor-engine/internal/services/settlement"
)

type QuoteRequest struct {
	Pay     domain.Asset
	Receive domain.Asset
	// Amount is a display amount of the anchored asset, e.g. "50" or "0.25".
	Amount string
	Anchor domain.Anchor
	// SlippageBips overrides the configured default when set.
	SlippageBips *uint64
	Filter       router.Filter
}

// QuoteResult carries either a Settlement or the reason none exists.
type QuoteResult struct {
	ID         string
	Route      *router.Route
	Params     settlement.Params
	Settlement *domain.Settlement
	NoViable   *domain.NoViableSettlement
	// Snapshot time of the oldest hop used; the quote is only valid against it.
	SnapshotAt time.Time
	CreatedAt  time.Time
}

func (r *QuoteResult) Viable() bool {
	return r.Settlement != nil
}

// Quote runs route search, per-hop refresh and estimation for one request.
func (svc *Service) Quote(ctx context.Context, req QuoteRequest) (res *QuoteResult, err error) {
	start := time.Now()
	status := "success"
	defer func() {
		switch {
		case err != nil:
			status = "error"
		case !res.Viable():
			status = "no_viable"
		}
		metrics.QuoteRequests.WithLabelValues(req.Anchor.String(), status).Inc()
		metrics.QuoteDuration.WithLabelValues(req.Anchor.String()).Observe(time.Since(start).Seconds())
	}()

	anchored := req.Pay
	if req.Anchor == domain.AnchorReceive {
		anchored = req.Receive
	}
	if err := svc.checkAsset(anchored); err != nil {
		return nil, err
	}
	decimals, err := svc.marketSvc.Registry().Decimals(anchored)
	if err != nil {
		return nil, err
	}
	amount, err := common.ToBaseUnits(req.Amount, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAmount, err)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: %q is zero in %s units", domain.ErrInvalidAmount, req.Amount, anchored)
	}

	route, err := svc.FindRoute(ctx, req.Pay, req.Receive, req.Filter)
	if err != nil {
		return nil, err
	}
	path, err := svc.BuildPath(ctx, route)
	if err != nil {
		return nil, err
	}

	res = &QuoteResult{
		ID:        uuid.NewString(),
		Route:     route,
		Params:    svc.Params(amount, req.Anchor, req.SlippageBips),
		CreatedAt: time.Now(),
	}
	for i := 0; i < path.HopCount(); i++ {
		ts := path.Snapshot(i).Timestamp
		if res.SnapshotAt.IsZero() || ts.Before(res.SnapshotAt) {
			res.SnapshotAt = ts
		}
	}

	switch est := svc.Estimate(path, res.Params).(type) {
	case *domain.Settlement:
		res.Settlement = est
	case domain.NoViableSettlement:
		res.NoViable = &est
	}

	svc.logger.Debug().
		Str("quote_id", res.ID).
		Str("pay", string(req.Pay)).
		Str("receive", string(req.Receive)).
		Str("amount", req.Amount).
		Str("anchor", req.Anchor.String()).
		Int("hops", route.HopCount()).
		Bool("viable", res.Viable()).
		Msg("[aggregatorService] quote")
	return res, nil
}
