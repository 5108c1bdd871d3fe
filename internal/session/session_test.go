package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

type fakeConn struct {
	id, user string
	full     bool

	mu     sync.Mutex
	events []Event
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.user }

func (c *fakeConn) Send(ev Event) error {
	if c.full {
		return errors.New("outbox full")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) received() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	phone := &fakeConn{id: "a", user: "u1"}
	laptop := &fakeConn{id: "b", user: "u1"}
	other := &fakeConn{id: "c", user: "u2"}

	r.Register(phone)
	r.Register(laptop)
	r.Register(other)

	assert.Len(t, r.Connections("u1"), 2)
	users, conns := r.Stats()
	assert.Equal(t, 2, users)
	assert.Equal(t, 3, conns)

	r.Unregister(phone)
	assert.True(t, r.Online("u1"))
	r.Unregister(laptop)
	assert.False(t, r.Online("u1"))
	assert.Empty(t, r.Connections("u1"))

	// unknown connections are ignored
	r.Unregister(&fakeConn{id: "zzz", user: "nobody"})
	assert.Len(t, r.All(), 1)
}

func TestRegistryKeysOnConnectionUser(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{id: "a", user: "u7"}
	r.Register(conn)

	assert.True(t, r.Online("u7"))
	require.Len(t, r.Connections("u7"), 1)

	r.Unregister(conn)
	assert.False(t, r.Online("u7"))
	users, conns := r.Stats()
	assert.Zero(t, users)
	assert.Zero(t, conns)
}

func TestDispatchFansOutToUserOnly(t *testing.T) {
	r := NewRegistry()
	a := &fakeConn{id: "a", user: "u1"}
	b := &fakeConn{id: "b", user: "u1"}
	c := &fakeConn{id: "c", user: "u2"}
	r.Register(a)
	r.Register(b)
	r.Register(c)

	d := NewDispatcher(r)
	ev := NotificationEvent(core.Notification{ID: 1, UserID: "u1", Title: "hi", Type: core.TypeInfo})

	assert.Equal(t, 2, d.Dispatch(context.Background(), "u1", ev))
	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
	assert.Empty(t, c.received())
}

func TestDispatchOfflineIsNoop(t *testing.T) {
	d := NewDispatcher(NewRegistry())
	ev := NotificationEvent(core.Notification{ID: 1, UserID: "u1"})

	assert.Equal(t, 0, d.Dispatch(context.Background(), "u1", ev))
	err := d.Publish(context.Background(), "u1", ev)
	assert.ErrorIs(t, err, core.ErrDeliveryUnavailable)
}

func TestSlowConnectionDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry()
	slow := &fakeConn{id: "a", user: "u1", full: true}
	fast := &fakeConn{id: "b", user: "u1"}
	r.Register(slow)
	r.Register(fast)

	d := NewDispatcher(r)
	err := d.Publish(context.Background(), "u1", Event{Type: EventNotification})
	require.NoError(t, err)
	assert.Len(t, fast.received(), 1)
}

func TestBroadcastReachesEveryone(t *testing.T) {
	r := NewRegistry()
	conns := []*fakeConn{{id: "a", user: "u1"}, {id: "b", user: "u2"}, {id: "c", user: "u3"}}
	for _, c := range conns {
		r.Register(c)
	}

	d := NewDispatcher(r)
	assert.Equal(t, 3, d.Broadcast(context.Background(), Event{Type: EventNotification}))
	for _, c := range conns {
		assert.Len(t, c.received(), 1, "connection %s", c.id)
	}
}

func TestPublishAll(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r)
	ctx := context.Background()

	err := d.PublishAll(ctx, Event{Type: EventNotification})
	assert.ErrorIs(t, err, core.ErrDeliveryUnavailable)

	conn := &fakeConn{id: "a", user: "u1"}
	r.Register(conn)
	require.NoError(t, d.PublishAll(ctx, Event{Type: EventNotification}))
	assert.Len(t, conn.received(), 1)
}

func TestEventJSONShape(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ev := NotificationEvent(core.Notification{
		ID: 7, Title: "Loan paid", Message: "done", Type: core.TypeLoan,
		Data:      core.NotificationData{Model: core.ModelLoan, ID: "3", Condition: core.ConditionPaid},
		CreatedAt: created,
	})
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "notification", decoded["type"])
	notification := decoded["notification"].(map[string]any)
	assert.Equal(t, "Loan paid", notification["title"])
	assert.Equal(t, "loan", notification["type"])
	assert.Equal(t, "PAID", notification["data"].(map[string]any)["condition"])
	assert.NotContains(t, decoded, "loanStatus")

	raw, err = json.Marshal(LoanStatusEvent(core.StatusTransition{LoanID: 3, From: core.StatusPaid, To: core.StatusActive}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"loan_status_changed","loanStatus":{"loanId":3,"oldStatus":"PAID","newStatus":"ACTIVE"}}`, string(raw))
}
