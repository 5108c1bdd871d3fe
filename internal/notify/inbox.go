package notify

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/session"
)

// List returns the user's notifications, newest first. Read notifications
// past the retention window are deleted before the query.
func (n *Notifier) List(ctx context.Context, userID string, f core.NotificationFilter) ([]core.Notification, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	n.sweepRetention(ctx, userID)

	items, err := n.store.ListNotifications(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

func (n *Notifier) sweepRetention(ctx context.Context, userID string) {
	cutoff := n.now().Add(-n.config.Retention)
	purged, err := n.store.PurgeReadBefore(ctx, userID, cutoff)
	if err != nil {
		n.logger.WarnContext(ctx, "Retention sweep failed", log.FieldUserID, userID, log.FieldError, err)
		return
	}
	if purged > 0 {
		n.logger.InfoContext(ctx, "Purged expired read notifications",
			log.FieldUserID, userID, "count", purged, "cutoff", cutoff)
	}
}

func (n *Notifier) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if count, ok := n.counts.Get(userID); ok {
		return count, nil
	}
	count, err := n.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	n.counts.Set(userID, count)
	return count, nil
}

func (n *Notifier) MarkRead(ctx context.Context, userID string, id int64) error {
	if err := n.store.MarkRead(ctx, userID, id); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	n.counts.Delete(userID)
	return nil
}

func (n *Notifier) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := n.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	n.counts.Delete(userID)
	return count, nil
}

func (n *Notifier) Delete(ctx context.Context, userID string, id int64) error {
	if err := n.store.DeleteNotification(ctx, userID, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	n.counts.Delete(userID)
	return nil
}

// DeleteRead removes every read notification of the user.
func (n *Notifier) DeleteRead(ctx context.Context, userID string) (int64, error) {
	count, err := n.store.DeleteReadNotifications(ctx, userID, "")
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	return count, nil
}

// Announce pushes an operator message to every live session. Announcements
// are not stored; only administrators may send them.
func (n *Notifier) Announce(ctx context.Context, caller core.Caller, content Content) error {
	if !caller.Admin {
		return fmt.Errorf("announce: %w", core.ErrForbidden)
	}
	if content.Title == "" || content.Message == "" {
		return fmt.Errorf("%w: announcement needs a title and a message", core.ErrInvalidState)
	}
	if n.pub == nil {
		return nil
	}

	ev := session.NotificationEvent(core.Notification{
		Title:     content.Title,
		Message:   content.Message,
		Type:      core.TypeSystem,
		Link:      content.Link,
		Data:      core.NotificationData{Extra: content.Extra},
		CreatedAt: n.now(),
	})
	if err := n.pub.PublishAll(ctx, ev); err != nil {
		n.logger.InfoContext(ctx, "Announcement not delivered", log.FieldError, err)
	}
	return nil
}
