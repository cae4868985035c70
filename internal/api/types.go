package api

import "time"

// ExchangeStatusResponse from GET /exchange/status
type ExchangeStatusResponse struct {
	ExchangeActive      bool   `json:"exchange_active"`
	TradingActive       bool   `json:"trading_active"`
	EstimatedResumeTime string `json:"exchange_estimated_resume_time,omitempty"`
}

// APIMarket is the subset of a market the guard reads.
type APIMarket struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	LastPrice    int    `json:"last_price"`
	Volume       int64  `json:"volume"`
	Volume24h    int64  `json:"volume_24h"`
	OpenInterest int64  `json:"open_interest"`
	CloseTime    string `json:"close_time"`
}

// SingleMarketResponse from GET /markets/{ticker}
type SingleMarketResponse struct {
	Market APIMarket `json:"market"`
}

// OrderbookResponse from GET /markets/{ticker}/orderbook
type OrderbookResponse struct {
	Orderbook APIOrderbook `json:"orderbook"`
}

// APIOrderbook holds bid levels as [price_cents, quantity] pairs. Either side
// is null when it has no bids.
type APIOrderbook struct {
	Yes [][]int `json:"yes"`
	No  [][]int `json:"no"`
}

// CreateOrderRequest is the body of POST /portfolio/orders.
type CreateOrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id,omitempty"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
	YesPrice      int    `json:"yes_price"`
	ExpirationTS  *int64 `json:"expiration_ts,omitempty"`
}

// AmendOrderRequest is the body of POST /portfolio/orders/{id}/amend.
type AmendOrderRequest struct {
	Ticker        string `json:"ticker"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Count         int    `json:"count"`
	YesPrice      int    `json:"yes_price"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// APIOrder is an order as returned by the portfolio endpoints.
type APIOrder struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
	Ticker        string `json:"ticker"`
	Status        string `json:"status"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	YesPrice      int    `json:"yes_price"`
}

// OrderEnvelope wraps the order in create and cancel responses.
type OrderEnvelope struct {
	Order APIOrder `json:"order"`
}

// AmendOrderResponse from POST /portfolio/orders/{id}/amend
type AmendOrderResponse struct {
	OldOrder APIOrder `json:"old_order"`
	Order    APIOrder `json:"order"`
}

// PositionsResponse from GET /portfolio/positions
type PositionsResponse struct {
	MarketPositions []APIMarketPosition `json:"market_positions"`
	Cursor          string              `json:"cursor"`
}

// APIMarketPosition is the net position in one market. Position is positive
// for YES contracts and negative for NO contracts.
type APIMarketPosition struct {
	Ticker   string `json:"ticker"`
	Position int    `json:"position"`
}

// FillsResponse from GET /portfolio/fills
type FillsResponse struct {
	Fills  []APIFill `json:"fills"`
	Cursor string    `json:"cursor"`
}

// APIFill is one execution. Prices are in cents.
type APIFill struct {
	TradeID     string    `json:"trade_id"`
	OrderID     string    `json:"order_id"`
	Ticker      string    `json:"ticker"`
	Side        string    `json:"side"`
	Action      string    `json:"action"`
	Count       int       `json:"count"`
	YesPrice    int       `json:"yes_price"`
	NoPrice     int       `json:"no_price"`
	IsTaker     bool      `json:"is_taker"`
	CreatedTime time.Time `json:"created_time"`
}

// SettlementsResponse from GET /portfolio/settlements
type SettlementsResponse struct {
	Settlements []APISettlement `json:"settlements"`
	Cursor      string          `json:"cursor"`
}

// APISettlement is a settled position. Costs and revenue are in cents.
type APISettlement struct {
	Ticker       string    `json:"ticker"`
	MarketResult string    `json:"market_result"`
	YesCount     int       `json:"yes_count"`
	YesTotalCost int64     `json:"yes_total_cost"`
	NoCount      int       `json:"no_count"`
	NoTotalCost  int64     `json:"no_total_cost"`
	Revenue      int64     `json:"revenue"`
	SettledTime  time.Time `json:"settled_time"`
}
