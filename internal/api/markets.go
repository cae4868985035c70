package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/kalshi-guard/internal/model"
)

// GetExchangeStatus reports whether the exchange is accepting orders.
func (c *Client) GetExchangeStatus(ctx context.Context) (*ExchangeStatusResponse, error) {
	var resp ExchangeStatusResponse
	if err := c.get(ctx, "/exchange/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("get exchange status: %w", err)
	}
	return &resp, nil
}

// GetMarket fetches a single market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (*APIMarket, error) {
	var resp SingleMarketResponse
	if err := c.get(ctx, "/markets/"+url.PathEscape(ticker), nil, &resp); err != nil {
		return nil, fmt.Errorf("get market %s: %w", ticker, err)
	}
	return &resp.Market, nil
}

// GetMarketStats fetches the volume and open interest of a market.
func (c *Client) GetMarketStats(ctx context.Context, ticker string) (model.MarketStats, error) {
	m, err := c.GetMarket(ctx, ticker)
	if err != nil {
		return model.MarketStats{}, err
	}
	return m.ToStats(), nil
}

// FetchOrderbook fetches the raw orderbook. depth <= 0 returns every level.
func (c *Client) FetchOrderbook(ctx context.Context, ticker string, depth int) (*OrderbookResponse, error) {
	query := url.Values{}
	if depth > 0 {
		query.Set("depth", strconv.Itoa(depth))
	}

	var resp OrderbookResponse
	if err := c.get(ctx, "/markets/"+url.PathEscape(ticker)+"/orderbook", query, &resp); err != nil {
		return nil, fmt.Errorf("get orderbook %s: %w", ticker, err)
	}
	return &resp, nil
}

// GetOrderbook fetches the full book for ticker. Concurrent calls for the
// same ticker share one request. The shared request is detached from any
// single caller's cancellation and bounded by the HTTP client timeout; each
// caller still returns as soon as its own ctx is done.
func (c *Client) GetOrderbook(ctx context.Context, ticker string) (model.Orderbook, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.books.DoChan(ticker, func() (any, error) {
		resp, err := c.FetchOrderbook(shared, ticker, 0)
		if err != nil {
			return nil, err
		}
		return resp.Orderbook.ToModel(ticker), nil
	})

	select {
	case <-ctx.Done():
		return model.Orderbook{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.Orderbook{}, res.Err
		}
		return res.Val.(model.Orderbook), nil
	}
}
