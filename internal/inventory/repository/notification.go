package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/pantrymind/pantrymind-backend/pkg/database"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
)

// NotificationRepository handles notifications and their per-user state
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification. A zero CreatedAt is set by the database.
func (r *NotificationRepository) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	var createdAt *time.Time
	if !n.CreatedAt.IsZero() {
		createdAt = &n.CreatedAt
	}

	query := `
		INSERT INTO notifications (id, kitchen_id, type, title, severity, message, related_item_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
		RETURNING created_at
	`

	return r.db.Q(ctx).QueryRowxContext(ctx, query,
		n.ID, n.KitchenID, n.Type, n.Title, n.Severity, n.Message, n.RelatedItemID, createdAt,
	).Scan(&n.CreatedAt)
}

// ExistsSince reports whether a notification of the given type was raised
// for the kitchen after since
func (r *NotificationRepository) ExistsSince(ctx context.Context, kitchenID, notificationType string, since time.Time) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE kitchen_id = $1 AND type = $2 AND created_at > $3
		)
	`
	if err := r.db.Q(ctx).GetContext(ctx, &exists, query, kitchenID, notificationType, since); err != nil {
		return false, err
	}
	return exists, nil
}

// LockDedup takes a transaction-scoped advisory lock on (kitchen, type). It
// only serializes when ctx carries a transaction.
func (r *NotificationRepository) LockDedup(ctx context.Context, kitchenID, notificationType string) error {
	_, err := r.db.Q(ctx).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, kitchenID, notificationType)
	return err
}

// ListForUser lists the kitchen's notifications the user has not deleted, newest first
func (r *NotificationRepository) ListForUser(ctx context.Context, kitchenID, userID string, unreadOnly bool, limit int) ([]*UserNotification, error) {
	var list []*UserNotification
	query := `
		SELECT n.id, n.kitchen_id, n.type, n.title, n.severity, n.message, n.related_item_id, n.created_at,
			(rb.user_id IS NOT NULL) AS read
		FROM notifications n
		LEFT JOIN notification_read_by rb ON rb.notification_id = n.id AND rb.user_id = $2
		WHERE n.kitchen_id = $1
			AND NOT EXISTS (
				SELECT 1 FROM notification_deleted_by db
				WHERE db.notification_id = n.id AND db.user_id = $2
			)
			AND ($3 = false OR rb.user_id IS NULL)
		ORDER BY n.created_at DESC
		LIMIT $4
	`
	if err := r.db.Q(ctx).SelectContext(ctx, &list, query, kitchenID, userID, unreadOnly, limit); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkRead marks one notification read for one user
func (r *NotificationRepository) MarkRead(ctx context.Context, kitchenID, id, userID string) error {
	if err := r.ensureVisible(ctx, kitchenID, id); err != nil {
		return err
	}
	query := `
		INSERT INTO notification_read_by (notification_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.db.Q(ctx).ExecContext(ctx, query, id, userID)
	return err
}

// MarkAllRead marks every notification of a kitchen read for one user and
// returns how many changed
func (r *NotificationRepository) MarkAllRead(ctx context.Context, kitchenID, userID string) (int64, error) {
	query := `
		INSERT INTO notification_read_by (notification_id, user_id)
		SELECT id, $2 FROM notifications WHERE kitchen_id = $1
		ON CONFLICT DO NOTHING
	`
	result, err := r.db.Q(ctx).ExecContext(ctx, query, kitchenID, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete hides one notification from one user
func (r *NotificationRepository) Delete(ctx context.Context, kitchenID, id, userID string) error {
	if err := r.ensureVisible(ctx, kitchenID, id); err != nil {
		return err
	}
	query := `
		INSERT INTO notification_deleted_by (notification_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.db.Q(ctx).ExecContext(ctx, query, id, userID)
	return err
}

func (r *NotificationRepository) ensureVisible(ctx context.Context, kitchenID, id string) error {
	if !validID(id) {
		return errors.NotFound("notification")
	}
	var found string
	err := r.db.Q(ctx).GetContext(ctx, &found, `SELECT id FROM notifications WHERE id = $1 AND kitchen_id = $2`, id, kitchenID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound("notification")
	}
	return err
}
