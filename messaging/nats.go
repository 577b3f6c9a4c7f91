package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectTradeExecuted carries one TradeEvent per committed buy or sell.
const SubjectTradeExecuted = "trades.executed"

// TradeEvent is published after a trade commits.
type TradeEvent struct {
	TransactionID uint      `json:"transactionId"`
	UserID        uint      `json:"userId"`
	StockID       uint      `json:"stockId"`
	Symbol        string    `json:"symbol"`
	Type          string    `json:"type"`
	Quantity      string    `json:"quantity"`
	Price         string    `json:"price"`
	Total         string    `json:"total"`
	Date          time.Time `json:"date"`
}

// NATSPublisher publishes JSON events on a core NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
	log  *slog.Logger
}

func NewNATSPublisher(url string, log *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("stock-trader"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &NATSPublisher{conn: nc, log: log}, nil
}

func (p *NATSPublisher) PublishTrade(_ context.Context, event TradeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectTradeExecuted, data)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.log.Warn("draining nats connection", "error", err)
	}
}

// NopPublisher drops events; used when no NATS URL is configured.
type NopPublisher struct{}

func (NopPublisher) PublishTrade(context.Context, TradeEvent) error { return nil }
