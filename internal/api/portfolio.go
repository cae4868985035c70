package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/kalshi-guard/internal/model"
)

// GetPosition returns the signed net position in ticker, zero when flat.
func (c *Client) GetPosition(ctx context.Context, ticker string) (int, error) {
	query := url.Values{}
	query.Set("ticker", ticker)

	var resp PositionsResponse
	if err := c.get(ctx, "/portfolio/positions", query, &resp); err != nil {
		return 0, fmt.Errorf("get positions %s: %w", ticker, err)
	}

	for _, p := range resp.MarketPositions {
		if p.Ticker == ticker {
			return p.Position, nil
		}
	}
	return 0, nil
}

// GetQuantity returns the contracts currently held on side of ticker.
func (c *Client) GetQuantity(ctx context.Context, ticker string, side model.Side) (int, error) {
	pos, err := c.GetPosition(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return SideQuantity(pos, side), nil
}

// portfolioPageLimit is the largest page the portfolio endpoints return.
const portfolioPageLimit = 200

// GetFills returns every fill created in [start, end), following cursors.
func (c *Client) GetFills(ctx context.Context, start, end time.Time) ([]model.Fill, error) {
	query := windowQuery(start, end)

	var fills []model.Fill
	for {
		var resp FillsResponse
		if err := c.get(ctx, "/portfolio/fills", query, &resp); err != nil {
			return nil, fmt.Errorf("get fills: %w", err)
		}
		for i := range resp.Fills {
			f := resp.Fills[i].ToModel()
			if f.CreatedAt.Before(start) || !f.CreatedAt.Before(end) {
				continue
			}
			fills = append(fills, f)
		}

		if resp.Cursor == "" {
			break
		}
		query.Set("cursor", resp.Cursor)
	}

	return fills, nil
}

// GetSettlements returns every settlement in [start, end), following cursors.
func (c *Client) GetSettlements(ctx context.Context, start, end time.Time) ([]model.Settlement, error) {
	query := windowQuery(start, end)

	var settlements []model.Settlement
	for {
		var resp SettlementsResponse
		if err := c.get(ctx, "/portfolio/settlements", query, &resp); err != nil {
			return nil, fmt.Errorf("get settlements: %w", err)
		}
		for i := range resp.Settlements {
			s := resp.Settlements[i].ToModel()
			if s.SettledAt.Before(start) || !s.SettledAt.Before(end) {
				continue
			}
			settlements = append(settlements, s)
		}

		if resp.Cursor == "" {
			break
		}
		query.Set("cursor", resp.Cursor)
	}

	return settlements, nil
}

// windowQuery bounds a portfolio listing. The API filters on whole seconds,
// so callers drop items outside the exact window themselves.
func windowQuery(start, end time.Time) url.Values {
	query := url.Values{}
	query.Set("min_ts", strconv.FormatInt(start.Unix(), 10))
	query.Set("max_ts", strconv.FormatInt(end.Unix(), 10))
	query.Set("limit", strconv.Itoa(portfolioPageLimit))
	return query
}
