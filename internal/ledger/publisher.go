package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"instantwin/internal/logger"
)

const SETTLEMENT_SUBJECT_PREFIX = "instantwin.settlement."

// Publisher fans settled rounds out to downstream consumers. Publishing is
// best effort: the ledger record is the source of truth.
type Publisher interface {
	Publish(ctx context.Context, s Settlement) error
	Close()
}

type SettlementEvent struct {
	Type      string     `json:"type"`
	Game      string     `json:"game"`
	Data      Settlement `json:"data"`
	Timestamp int64      `json:"timestamp"`
}

type NATSPublisher struct {
	conn *nats.Conn
}

// ConnectNATS dials url with reconnects enabled forever.
func ConnectNATS(url string) (*nats.Conn, error) {
	log := logger.Component("nats")
	if url == "" {
		url = nats.DefaultURL
	}
	return nats.Connect(url,
		nats.Name("instantwin"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("disconnected from NATS", logger.Err(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				log.Error("NATS error", "subject", sub.Subject, logger.Err(err))
				return
			}
			log.Error("NATS error", logger.Err(err))
		}),
	)
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func Subject(game string) string {
	return SETTLEMENT_SUBJECT_PREFIX + game
}

func (p *NATSPublisher) Publish(_ context.Context, s Settlement) error {
	const op = "ledger.NATSPublisher.Publish"

	data, err := json.Marshal(SettlementEvent{
		Type:      "settlement",
		Game:      s.Game,
		Data:      s,
		Timestamp: s.SettledAt.UTC().Unix(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.conn.Publish(Subject(s.Game), data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Settlement) error { return nil }
func (NopPublisher) Close()                                    {}
