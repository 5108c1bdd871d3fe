// Package notify persists user notifications at most once per unread
// condition and pushes them to live sessions.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/storage"
)

// Alert identifies a condition worth telling a user about. Two alerts with
// the same user, subject, type and condition are the same alert.
type Alert struct {
	UserID    string
	Subject   core.SubjectKey
	Type      core.NotificationType
	Condition core.Condition
}

func (a Alert) String() string {
	return fmt.Sprintf("%s %s/%s %s for %s", a.Type, a.Subject.Model, a.Subject.ID, a.Condition, a.UserID)
}

// Content is the user-facing part of a notification.
type Content struct {
	Title   string
	Message string
	Link    string
	Extra   map[string]any
}

// Builder produces the content lazily, only when a notification is due.
type Builder func() Content

type Config struct {
	// Retention is how long read notifications are kept (default: 30 days)
	Retention time.Duration

	// CountCacheSize bounds the number of cached unread counters (default: 1024)
	CountCacheSize int

	// CountCacheTTL is how long an unread counter may be served from cache (default: 30s)
	CountCacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Retention:      30 * 24 * time.Hour,
		CountCacheSize: 1024,
		CountCacheTTL:  30 * time.Second,
	}
}

type Notifier struct {
	store  storage.NotificationStore
	pub    session.Publisher
	counts *cache.LRUCache[int64]
	config Config
	now    func() time.Time
	logger *log.Logger
}

func New(store storage.NotificationStore, pub session.Publisher, config Config) *Notifier {
	defaults := DefaultConfig()
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	if config.CountCacheSize <= 0 {
		config.CountCacheSize = defaults.CountCacheSize
	}
	if config.CountCacheTTL <= 0 {
		config.CountCacheTTL = defaults.CountCacheTTL
	}
	return &Notifier{
		store:  store,
		pub:    pub,
		counts: cache.NewLRUCache[int64](config.CountCacheSize, config.CountCacheTTL),
		config: config,
		now:    time.Now,
		logger: log.ForComponent(log.ComponentNotify),
	}
}

// CountCache exposes the unread counter cache so its expired entries can
// be swept by a cache.Janitor.
func (n *Notifier) CountCache() cache.Cleaner {
	return n.counts
}

// NotifyOnce stores and pushes a notification for a unless an unread one
// for the same alert already exists. It returns nil when nothing was
// created. Failures are logged and never returned: the caller's state
// change stands regardless of whether the alert could be recorded.
func (n *Notifier) NotifyOnce(ctx context.Context, a Alert, build Builder) *core.Notification {
	_, exists, err := n.store.FindUnread(ctx, a.UserID, a.Subject, a.Type, a.Condition)
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to look up existing notification",
			"alert", a.String(), log.FieldError, err)
		return nil
	}
	if exists {
		n.logger.DebugContext(ctx, "Unread notification already exists", "alert", a.String())
		return nil
	}

	content := build()
	created, err := n.store.CreateNotification(ctx, core.Notification{
		UserID:  a.UserID,
		Title:   content.Title,
		Message: content.Message,
		Type:    a.Type,
		Link:    content.Link,
		Data: core.NotificationData{
			Model:     a.Subject.Model,
			ID:        a.Subject.ID,
			Condition: a.Condition,
			Extra:     content.Extra,
		},
		CreatedAt: n.now(),
	})
	if errors.Is(err, core.ErrConflict) {
		// lost the race against a concurrent evaluation of the same alert
		n.logger.DebugContext(ctx, "Concurrent notification already stored", "alert", a.String())
		return nil
	}
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to store notification",
			"alert", a.String(), log.FieldError, err)
		return nil
	}
	n.counts.Delete(a.UserID)

	n.logger.InfoContext(ctx, "Notification created",
		log.FieldUserID, a.UserID,
		log.FieldNotificationID, created.ID,
		log.FieldCondition, string(a.Condition),
		"type", string(a.Type))

	n.publish(ctx, a.UserID, session.NotificationEvent(created))
	return &created
}

// NotifyNegativeBalance is NotifyOnce for the negative-balance alert. Read
// balance alerts are purged first so a recurring negative balance yields one
// fresh alert instead of piling up history.
func (n *Notifier) NotifyNegativeBalance(ctx context.Context, userID string, build Builder) *core.Notification {
	purged, err := n.store.DeleteReadNotifications(ctx, userID, core.TypeAccountBalance)
	if err != nil {
		n.logger.WarnContext(ctx, "Failed to purge read balance alerts",
			log.FieldUserID, userID, log.FieldError, err)
	} else if purged > 0 {
		n.logger.DebugContext(ctx, "Purged read balance alerts", log.FieldUserID, userID, "count", purged)
	}

	return n.NotifyOnce(ctx, Alert{
		UserID:    userID,
		Subject:   core.SubjectKey{Model: core.ModelUser, ID: userID},
		Type:      core.TypeAccountBalance,
		Condition: core.ConditionNegative,
	}, build)
}

// PublishStatusChange pushes the structural loan_status_changed event. It
// is not persisted.
func (n *Notifier) PublishStatusChange(ctx context.Context, userID string, t core.StatusTransition) {
	n.publish(ctx, userID, session.LoanStatusEvent(t))
}

func (n *Notifier) publish(ctx context.Context, userID string, ev session.Event) {
	if n.pub == nil {
		return
	}
	err := n.pub.Publish(ctx, userID, ev)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrDeliveryUnavailable):
		n.logger.DebugContext(ctx, "User offline, event kept in inbox only",
			log.FieldUserID, userID, log.FieldEventType, string(ev.Type))
	default:
		n.logger.WarnContext(ctx, "Failed to publish event",
			log.FieldUserID, userID, log.FieldEventType, string(ev.Type), log.FieldError, err)
	}
}

// SubjectID formats numeric entity ids for subject keys.
func SubjectID(id int64) string {
	return strconv.FormatInt(id, 10)
}
