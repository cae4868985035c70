package stream

import (
	"encoding/json"
	"errors"
	"time"
)

// WebSocket endpoints.
const (
	ProdURL = "wss://api.elections.kalshi.com/trade-api/ws/v2"
	DemoURL = "wss://demo-api.kalshi.co/trade-api/ws/v2"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrTimeout         = errors.New("operation timeout")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrSequenceGap     = errors.New("orderbook sequence gap")
	ErrNotWatched      = errors.New("market not watched")
)

// Signer produces the authentication headers for the handshake request.
type Signer interface {
	SignRequest(method, path string) (map[string]string, error)
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// Command is a WebSocket command to send to the server.
type Command struct {
	ID     int64           `json:"id"`
	Cmd    string          `json:"cmd"`
	Params SubscribeParams `json:"params"`
}

// SubscribeParams are parameters for a subscribe command.
type SubscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers,omitempty"`
}

// Response is a command response from the server.
type Response struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"` // "subscribed", "error", "ok"
	Msg  json.RawMessage `json:"msg"`
}

// SubscribedMsg is the message content for a "subscribed" response.
type SubscribedMsg struct {
	SID     int64  `json:"sid"`
	Channel string `json:"channel"`
}

// ErrorMsg is the message content for an "error" response.
type ErrorMsg struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// envelope is the part of every data message needed to route it.
type envelope struct {
	Type string `json:"type"`
	SID  int64  `json:"sid"`
	Seq  int64  `json:"seq"`
}

// snapshotWire is the wire format for orderbook_snapshot messages. Levels
// arrive as [cents, qty] pairs, [["0.52", qty]] pairs, or both.
type snapshotWire struct {
	Msg struct {
		MarketTicker string          `json:"market_ticker"`
		Yes          [][]int         `json:"yes"`
		No           [][]int         `json:"no"`
		YesDollars   [][]interface{} `json:"yes_dollars"`
		NoDollars    [][]interface{} `json:"no_dollars"`
	} `json:"msg"`
}

// deltaWire is the wire format for orderbook_delta messages.
type deltaWire struct {
	Msg struct {
		MarketTicker string `json:"market_ticker"`
		Price        int    `json:"price"`
		PriceDollars string `json:"price_dollars"` // e.g. "0.52" or "0.5250"
		Delta        int    `json:"delta"`
		Side         string `json:"side"`
	} `json:"msg"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL, e.g. ProdURL
	PingTimeout  time.Duration // Max time without ping before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:          DemoURL,
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}

// Config configures Books.
type Config struct {
	Client            ClientConfig
	SubscribeTimeout  time.Duration // Timeout for the subscribe command
	ReconnectBaseWait time.Duration // Base wait time for reconnection
	ReconnectMaxWait  time.Duration // Max wait time for reconnection
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Client:            DefaultClientConfig(),
		SubscribeTimeout:  10 * time.Second,
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
	}
}
