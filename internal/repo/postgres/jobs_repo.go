package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ovoz/admin/internal/domain/job"
	"github.com/ovoz/admin/internal/observability"
)

const jobColumns = `id, type, payload, status, attempts, max_attempts,
	run_at, locked_at, locked_by, last_error, idempotency_key,
	priority, created_by, created_at, updated_at`

type JobsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{pool: pool, prom: prom}
}

func (r *JobsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanJob(row pgx.Row) (job.Job, error) {
	var j job.Job
	var status string

	err := row.Scan(
		&j.ID, &j.Type, &j.Payload, &status,
		&j.Attempts, &j.MaxAttempts,
		&j.RunAt, &j.LockedAt, &j.LockedBy,
		&j.LastError, &j.IdempotencyKey,
		&j.Priority, &j.CreatedBy,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return job.Job{}, err
	}

	j.Status = job.Status(status)
	return j, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return job.ErrJobNotFound
	}
	return err
}

func (r *JobsRepo) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	err := r.observe("jobs.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO jobs (`+jobColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		`, j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts,
			j.RunAt, j.LockedAt, j.LockedBy, j.LastError, j.IdempotencyKey,
			j.Priority, j.CreatedBy, j.CreatedAt, j.UpdatedAt)
		return err
	})
	if err != nil {
		return job.Job{}, err
	}

	return j, nil
}

// exec runs a single-row status update and maps zero rows to ErrJobNotFound.
func (r *JobsRepo) exec(ctx context.Context, op, sql string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return job.ErrJobNotFound
	}
	return nil
}

func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	return r.exec(ctx, "jobs.mark_done", `
		UPDATE jobs
		SET status = 'done',
		    attempts = attempts + 1,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
}

func (r *JobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.exec(ctx, "jobs.mark_failed", `
		UPDATE jobs
		SET status = 'failed',
		    attempts = attempts + 1,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, errMsg)
}

// Reschedule puts a job back in the queue after a retryable failure.
func (r *JobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	return r.exec(ctx, "jobs.reschedule", `
		UPDATE jobs
		SET status = 'pending',
		    attempts = attempts + 1,
		    run_at = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, runAt, errMsg)
}

// ClaimNext locks the next runnable job for workerID with SKIP LOCKED, so
// concurrent workers never claim the same row.
func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	var j job.Job

	err := r.observe("jobs.claim_next", func() error {
		var err error
		j, err = scanJob(r.pool.QueryRow(ctx, `
			WITH next AS (
				SELECT id
				FROM jobs
				WHERE status = 'pending'
				  AND run_at <= NOW()
				  AND attempts < max_attempts
				ORDER BY priority DESC, run_at ASC, created_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			UPDATE jobs
			SET status = 'processing',
			    locked_at = NOW(),
			    locked_by = $1,
			    updated_at = NOW()
			WHERE id = (SELECT id FROM next)
			RETURNING `+jobColumns,
			workerID))
		return err
	})

	// no rows means nothing is runnable right now
	return j, notFound(err)
}

func (r *JobsRepo) GetByIdempotencyKey(ctx context.Context, key string) (job.Job, error) {
	var j job.Job

	err := r.observe("jobs.get_by_idempotency_key", func() error {
		var err error
		j, err = scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE idempotency_key = $1`, key))
		return err
	})

	return j, notFound(err)
}

func (r *JobsRepo) GetByID(ctx context.Context, id string) (job.Job, error) {
	var j job.Job

	err := r.observe("jobs.admin.get_by_id", func() error {
		var err error
		j, err = scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
		return err
	})

	return j, notFound(err)
}

// RequeueStaleProcessing releases jobs whose lock is older than lockTTL,
// i.e. their worker died mid-run.
func (r *JobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	secs := int64(lockTTL.Seconds())
	if secs <= 0 {
		secs = 30
	}

	var rows int64
	err := r.observe("jobs.requeue_stale", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE jobs
			SET status = 'pending',
			    locked_at = NULL,
			    locked_by = NULL,
			    updated_at = NOW()
			WHERE status = 'processing'
			  AND locked_at IS NOT NULL
			  AND locked_at < NOW() - ($1 * INTERVAL '1 second')
		`, secs)
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})

	return rows, err
}

// List pages jobs newest-first by (updated_at, id).
func (r *JobsRepo) List(ctx context.Context, f job.ListFilter) (job.Page, error) {
	var (
		conds []string
		args  []any
	)

	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}

	after := f.After
	if after.ID == "" {
		after = job.FirstPage()
	}
	args = append(args, after.UpdatedAt, after.ID)
	conds = append(conds, fmt.Sprintf("(updated_at, id) < ($%d, $%d)", len(args)-1, len(args)))

	args = append(args, f.Limit+1)
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + strings.Join(conds, " AND ") +
		fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d", len(args))

	var rows pgx.Rows
	err := r.observe("jobs.admin.list", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, q, args...)
		return qerr
	})
	if err != nil {
		return job.Page{}, err
	}
	defer rows.Close()

	page := job.Page{Items: make([]job.Job, 0, f.Limit)}
	for rows.Next() {
		j, scanErr := scanJob(rows)
		if scanErr != nil {
			return job.Page{}, scanErr
		}
		page.Items = append(page.Items, j)
	}
	if err := rows.Err(); err != nil {
		return job.Page{}, err
	}

	if len(page.Items) > f.Limit {
		page.Items = page.Items[:f.Limit]
		page.HasMore = true

		next := job.CursorAfter(page.Items[len(page.Items)-1]).Encode()
		page.NextCursor = &next
	}

	return page, nil
}

// Retry requeues one failed job.
func (r *JobsRepo) Retry(ctx context.Context, id string) error {
	var status string

	err := r.observe("jobs.admin.retry.check_status", func() error {
		return r.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	})
	if err != nil {
		return notFound(err)
	}

	if status != string(job.StatusFailed) {
		return job.ErrJobNotFailed
	}

	return r.exec(ctx, "jobs.admin.retry.requeue", `
		UPDATE jobs
		SET status = 'pending',
		    attempts = 0,
		    run_at = NOW(),
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'failed'
	`, id)
}

// RetryManyFailed requeues up to limit failed jobs, most recent first.
func (r *JobsRepo) RetryManyFailed(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var n int64
	err := r.observe("jobs.admin.retry_many_failed", func() error {
		tag, err := r.pool.Exec(ctx, `
			WITH picked AS (
				SELECT id
				FROM jobs
				WHERE status = 'failed'
				ORDER BY updated_at DESC
				LIMIT $1
			)
			UPDATE jobs
			SET status = 'pending',
			    attempts = 0,
			    run_at = NOW(),
			    locked_at = NULL,
			    locked_by = NULL,
			    last_error = NULL,
			    updated_at = NOW()
			WHERE id IN (SELECT id FROM picked)
		`, limit)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})

	return n, err
}
