package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rickgao/kalshi-guard/internal/model"
)

// simulated is returned for every dry-run mutation.
func simulated() *model.OrderResponse {
	return &model.OrderResponse{Status: "simulated", DryRun: true}
}

// CreateOrder places a limit order at the intent's YES price. With dryRun
// set no request is made.
func (c *Client) CreateOrder(ctx context.Context, intent model.OrderIntent, dryRun bool) (*model.OrderResponse, error) {
	if dryRun {
		c.logger.Debug("dry-run create", "ticker", intent.Ticker, "client_order_id", intent.ClientOrderID)
		return simulated(), nil
	}

	req := CreateOrderRequest{
		Ticker:        intent.Ticker,
		ClientOrderID: intent.ClientOrderID,
		Side:          string(intent.Side),
		Action:        string(intent.Action),
		Count:         intent.Count,
		Type:          "limit",
		YesPrice:      intent.PriceCents,
		ExpirationTS:  intent.ExpirationTS,
	}

	var resp OrderEnvelope
	if err := c.send(ctx, http.MethodPost, "/portfolio/orders", req, &resp); err != nil {
		return nil, fmt.Errorf("create order %s: %w", intent.Ticker, err)
	}
	return resp.Order.toResponse(), nil
}

// CancelOrder cancels a resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string, dryRun bool) (*model.OrderResponse, error) {
	if dryRun {
		c.logger.Debug("dry-run cancel", "order_id", orderID)
		return simulated(), nil
	}

	var resp OrderEnvelope
	if err := c.send(ctx, http.MethodDelete, "/portfolio/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return resp.Order.toResponse(), nil
}

// AmendOrder changes the price and count of a resting order.
func (c *Client) AmendOrder(ctx context.Context, req model.AmendRequest, dryRun bool) (*model.OrderResponse, error) {
	if dryRun {
		c.logger.Debug("dry-run amend", "order_id", req.OrderID)
		return simulated(), nil
	}

	body := AmendOrderRequest{
		Ticker:        req.Ticker,
		Side:          string(req.Side),
		Action:        string(req.Action),
		Count:         req.Count,
		YesPrice:      req.PriceCents,
		ClientOrderID: req.ClientOrderID,
	}

	var resp AmendOrderResponse
	path := "/portfolio/orders/" + url.PathEscape(req.OrderID) + "/amend"
	if err := c.send(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("amend order %s: %w", req.OrderID, err)
	}
	return resp.Order.toResponse(), nil
}
