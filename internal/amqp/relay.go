package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/session"
)

type publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, persistent bool) error
}

// Relay is a session.Publisher spanning processes: events go to the local
// dispatcher and to the exchange, and events from other processes are
// dispatched locally by Run.
type Relay struct {
	origin string
	client publisher
	local  *session.Dispatcher
	logger *log.Logger
}

var _ session.Publisher = (*Relay)(nil)

func NewRelay(client *Client, local *session.Dispatcher) *Relay {
	return newRelay(client, local)
}

func newRelay(client publisher, local *session.Dispatcher) *Relay {
	return &Relay{
		origin: uuid.NewString(),
		client: client,
		local:  local,
		logger: log.ForComponent(log.ComponentAMQP),
	}
}

// Publish delivers locally and forwards the event to peers. Only when
// neither path accepted the event is ErrDeliveryUnavailable returned.
func (r *Relay) Publish(ctx context.Context, userID string, ev session.Event) error {
	delivered := r.local.Dispatch(ctx, userID, ev)
	if err := r.forward(ctx, RoutingSessionUser, userID, ev); err != nil {
		r.logger.WarnContext(ctx, "Failed to relay session event",
			log.FieldUserID, userID, log.FieldEventType, string(ev.Type), log.FieldError, err)
		if delivered == 0 {
			return fmt.Errorf("user %s: %w", userID, core.ErrDeliveryUnavailable)
		}
	}
	return nil
}

func (r *Relay) PublishAll(ctx context.Context, ev session.Event) error {
	delivered := r.local.Broadcast(ctx, ev)
	if err := r.forward(ctx, RoutingSessionBroadcast, "", ev); err != nil {
		r.logger.WarnContext(ctx, "Failed to relay broadcast", log.FieldError, err)
		if delivered == 0 {
			return fmt.Errorf("broadcast: %w", core.ErrDeliveryUnavailable)
		}
	}
	return nil
}

func (r *Relay) forward(ctx context.Context, key, userID string, ev session.Event) error {
	body, err := json.Marshal(SessionEventMessage{Origin: r.origin, UserID: userID, Event: ev})
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}
	return r.client.Publish(ctx, key, body, false)
}

// Run consumes peer session events on an exclusive queue until ctx is done.
func (r *Relay) Run(ctx context.Context, client *Client) error {
	return client.Consume(ctx, QueueSpec{Bindings: []string{RoutingSessionAll}}, r.handle)
}

func (r *Relay) handle(ctx context.Context, body []byte) error {
	msg, err := decode[SessionEventMessage](body)
	if err != nil {
		return err
	}
	if msg.Origin == r.origin {
		return nil
	}
	var delivered int
	if msg.UserID == "" {
		delivered = r.local.Broadcast(ctx, msg.Event)
	} else {
		delivered = r.local.Dispatch(ctx, msg.UserID, msg.Event)
	}
	r.logger.DebugContext(ctx, "Relayed peer session event",
		log.FieldUserID, msg.UserID,
		log.FieldEventType, string(msg.Event.Type),
		log.FieldDelivered, delivered)
	return nil
}
