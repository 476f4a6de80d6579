package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.NotificationRepository = (*notificationRepo)(nil)

type notificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *notificationRepo {
	return &notificationRepo{pool: pool}
}

func (r *notificationRepo) Save(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	const q = `
INSERT INTO notifications (id, user_id, type, title, message, is_read, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.IsRead, n.CreatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, unreadOnly bool) ([]*model.Notification, error) {
	q := `
SELECT id, user_id, type, title, message, is_read, created_at
  FROM notifications
 WHERE user_id=$1`
	if unreadOnly {
		q += ` AND is_read=false`
	}
	q += ` ORDER BY created_at DESC LIMIT 100;`

	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Notification
	for rows.Next() {
		n := &model.Notification{}
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		n.Type = model.NotificationType(typ)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE notifications SET is_read=true WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
