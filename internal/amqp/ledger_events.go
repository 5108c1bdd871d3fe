package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// LedgerEvents publishes ledger events; it is a ledger.EventSink.
type LedgerEvents struct {
	client *Client
	logger *log.Logger
}

var _ ledger.EventSink = (*LedgerEvents)(nil)

func NewLedgerEvents(client *Client) *LedgerEvents {
	return &LedgerEvents{
		client: client,
		logger: log.ForComponent(log.ComponentAMQP),
	}
}

func (p *LedgerEvents) Emit(ctx context.Context, ev ledger.Event) error {
	msg := NewLedgerEventMessage(ev)
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}
	if err := p.client.Publish(ctx, msg.RoutingKey(), body, true); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "Published ledger event",
		log.FieldEventType, string(msg.Kind),
		log.FieldLoanID, msg.LoanID)
	return nil
}

// ConsumeLedgerEvents feeds ledger events from a durable queue to handler.
func (c *Client) ConsumeLedgerEvents(ctx context.Context, queue string, handler func(context.Context, *LedgerEventMessage) error) error {
	return c.Consume(ctx, QueueSpec{Name: queue, Bindings: []string{RoutingLedgerAll}, Durable: true},
		func(ctx context.Context, body []byte) error {
			msg, err := decode[LedgerEventMessage](body)
			if err != nil {
				return err
			}
			return handler(ctx, msg)
		})
}
