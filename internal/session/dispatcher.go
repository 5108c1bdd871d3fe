package session

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Publisher delivers events to users. Publish returns an error wrapping
// core.ErrDeliveryUnavailable when nothing could take the event; callers
// treat that as the normal offline case.
type Publisher interface {
	Publish(ctx context.Context, userID string, ev Event) error
	PublishAll(ctx context.Context, ev Event) error
}

// Dispatcher pushes events to the connections held by a Registry.
type Dispatcher struct {
	registry *Registry
	logger   *log.Logger
}

var _ Publisher = (*Dispatcher)(nil)

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   log.ForComponent(log.ComponentSession),
	}
}

// Dispatch sends ev to every connection of userID and returns how many
// accepted it. An offline user is a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, ev Event) int {
	return d.send(ctx, d.registry.Connections(userID), ev)
}

// Broadcast sends ev to every registered connection regardless of user.
func (d *Dispatcher) Broadcast(ctx context.Context, ev Event) int {
	return d.send(ctx, d.registry.All(), ev)
}

func (d *Dispatcher) send(ctx context.Context, conns []Conn, ev Event) int {
	delivered := 0
	for _, c := range conns {
		if err := c.Send(ev); err != nil {
			d.logger.WarnContext(ctx, "Dropped push to connection",
				log.FieldConnID, c.ID(),
				log.FieldUserID, c.UserID(),
				log.FieldEventType, string(ev.Type),
				log.FieldError, err)
			continue
		}
		delivered++
	}
	return delivered
}

func (d *Dispatcher) Publish(ctx context.Context, userID string, ev Event) error {
	n := d.Dispatch(ctx, userID, ev)
	d.logger.DebugContext(ctx, "Event dispatched",
		log.FieldUserID, userID,
		log.FieldEventType, string(ev.Type),
		log.FieldDelivered, n)
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, core.ErrDeliveryUnavailable)
	}
	return nil
}

func (d *Dispatcher) PublishAll(ctx context.Context, ev Event) error {
	n := d.Broadcast(ctx, ev)
	d.logger.InfoContext(ctx, "Broadcast dispatched",
		log.FieldEventType, string(ev.Type),
		log.FieldDelivered, n)
	if n == 0 {
		return fmt.Errorf("broadcast: %w", core.ErrDeliveryUnavailable)
	}
	return nil
}
