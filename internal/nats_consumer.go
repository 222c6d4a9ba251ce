package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stan "github.com/nats-io/stan.go"
	"github.com/rs/zerolog"
)

// PortfolioWriter persists incoming portfolio snapshots.
type PortfolioWriter interface {
	UpsertPortfolio(ctx context.Context, p *Portfolio) error
}

// NatsConsumer ingests portfolio snapshots from NATS Streaming into the store.
// It never touches the cache: loaded portfolios stay as first read.
type NatsConsumer struct {
	Conn      stan.Conn
	Channel   string
	Durable   string
	Store     PortfolioWriter
	ClientID  string
	ClusterID string
	NatsURL   string
	log       zerolog.Logger
}

func NewNatsConsumer(cfg NATSConfig, store PortfolioWriter, log zerolog.Logger) (*NatsConsumer, error) {
	sc, err := stan.Connect(cfg.ClusterID, cfg.ClientID, stan.NatsURL(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("connect nats streaming: %w", err)
	}
	return &NatsConsumer{
		Conn:      sc,
		Channel:   cfg.Channel,
		Durable:   cfg.Durable,
		Store:     store,
		ClientID:  cfg.ClientID,
		ClusterID: cfg.ClusterID,
		NatsURL:   cfg.URL,
		log:       log.With().Str("component", "nats_consumer").Logger(),
	}, nil
}

func (nc *NatsConsumer) Close() {
	if nc.Conn != nil {
		_ = nc.Conn.Close()
	}
}

// Start subscribes with a durable, manual-ack subscription and blocks until ctx is done.
func (nc *NatsConsumer) Start(ctx context.Context) error {
	sub, err := nc.Conn.Subscribe(nc.Channel, func(m *stan.Msg) {
		if err := nc.handleMessage(m.Data); err != nil {
			// acked anyway, a bad snapshot would otherwise be redelivered forever
			nc.log.Warn().Err(err).Uint64("sequence", m.Sequence).Msg("dropping portfolio message")
		}
		if err := m.Ack(); err != nil {
			nc.log.Warn().Err(err).Uint64("sequence", m.Sequence).Msg("ack failed")
		}
	}, stan.DurableName(nc.Durable), stan.SetManualAckMode(), stan.StartWithLastReceived())
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", nc.Channel, err)
	}
	nc.log.Info().Str("channel", nc.Channel).Str("durable", nc.Durable).Msg("subscribed")

	<-ctx.Done()
	_ = sub.Close()
	return nil
}

func (nc *NatsConsumer) handleMessage(data []byte) error {
	var p Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal portfolio: %w", err)
	}
	if err := p.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := nc.Store.UpsertPortfolio(ctx, &p); err != nil {
		return fmt.Errorf("upsert portfolio %s: %w", p.ID, err)
	}

	nc.log.Info().Str("portfolio_id", p.ID).Int("positions", len(p.Positions)).Msg("stored portfolio")
	return nil
}
