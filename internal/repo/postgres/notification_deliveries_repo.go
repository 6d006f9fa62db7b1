package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ovoz/admin/internal/domain/delivery"
)

// NotificationDeliveriesRepo records each event notification job's send so a
// retried or re-claimed job never broadcasts twice.
type NotificationDeliveriesRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationDeliveriesRepo(pool *pgxpool.Pool) *NotificationDeliveriesRepo {
	return &NotificationDeliveriesRepo{pool: pool}
}

// TryStart claims the send for jobID. It returns delivery.ErrAlreadySent when
// an earlier attempt got through and delivery.ErrInProgress while another
// worker holds it.
func (r *NotificationDeliveriesRepo) TryStart(ctx context.Context, jobID string, eventID int64) error {
	kind := delivery.KindEventNotification

	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_deliveries (kind, job_id, event_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'sending', NOW(), NOW())
	`, kind, jobID, eventID)
	if err == nil {
		return nil
	}
	if !IsUniqueViolation(err) {
		return err
	}

	// Row exists. Only one worker can flip failed -> sending.
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'sending',
		    last_error = NULL,
		    updated_at = NOW()
		WHERE kind = $1 AND job_id = $2 AND status = 'failed'
	`, kind, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var status string
	var sentAt *time.Time

	err = r.pool.QueryRow(ctx, `
		SELECT status, sent_at
		FROM notification_deliveries
		WHERE kind = $1 AND job_id = $2
	`, kind, jobID).Scan(&status, &sentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// row disappeared; let caller retry
			return nil
		}
		return err
	}

	if sentAt != nil || status == delivery.StatusSent {
		return delivery.ErrAlreadySent
	}

	return delivery.ErrInProgress
}

func (r *NotificationDeliveriesRepo) MarkSent(ctx context.Context, jobID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'sent',
		    sent_at = NOW(),
		    last_error = NULL,
		    updated_at = NOW()
		WHERE kind = $1 AND job_id = $2
	`, delivery.KindEventNotification, jobID)

	return err
}

func (r *NotificationDeliveriesRepo) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'failed',
		    last_error = $3,
		    updated_at = NOW()
		WHERE kind = $1 AND job_id = $2
	`, delivery.KindEventNotification, jobID, errMsg)

	return err
}
