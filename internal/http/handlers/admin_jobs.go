package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/domain/job"
	"github.com/ovoz/admin/internal/http/middlewares"
	"github.com/ovoz/admin/internal/jobs"
	"github.com/ovoz/admin/internal/utils"
)

type AdminJobsRepo interface {
	List(ctx context.Context, f job.ListFilter) (job.Page, error)
	GetByID(ctx context.Context, id string) (job.Job, error)
	Retry(ctx context.Context, id string) error
	RetryManyFailed(ctx context.Context, limit int) (int64, error)
}

// AdminJobsHandler lets an operator inspect and requeue dispatch jobs.
type AdminJobsHandler struct {
	repo    AdminJobsRepo
	timeout time.Duration
}

func NewAdminJobsHandler(repo AdminJobsRepo) *AdminJobsHandler {
	return &AdminJobsHandler{
		repo:    repo,
		timeout: 3 * time.Second,
	}
}

// queryLimit reads ?limit= within [1,max]; ok is false when it is present but
// out of range or not a number.
func queryLimit(ctx *gin.Context, fallback, max int) (int, bool) {
	raw := ctx.Query("limit")
	if raw == "" {
		return fallback, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		RespondBadRequest(ctx, "limit must be a number between 1 and "+strconv.Itoa(max), gin.H{"field": "limit"})
		return 0, false
	}

	return n, true
}

func (h *AdminJobsHandler) jobID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	ctx.Set(middlewares.CtxJobID, id)

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid job id", gin.H{"field": "id"})
		return "", false
	}

	return id, true
}

// GET /admin/jobs?status=failed&type=delete_media&limit=20&cursor=...

func (h *AdminJobsHandler) List(ctx *gin.Context) {
	limit, ok := queryLimit(ctx, 20, 100)
	if !ok {
		return
	}

	f := job.ListFilter{Limit: limit}

	if s := job.Status(ctx.Query("status")); s != "" {
		if !s.Valid() {
			RespondBadRequest(ctx, "status must be one of pending, processing, done, failed", gin.H{"field": "status"})
			return
		}
		f.Status = s
	}

	if t := ctx.Query("type"); t != "" {
		if !jobs.JobType(t).IsValid() {
			RespondBadRequest(ctx, "unknown job type", gin.H{"field": "type", "allowed": jobs.Types()})
			return
		}
		f.Type = t
	}

	if raw := ctx.Query("cursor"); raw != "" {
		cur, err := job.ParseCursor(raw)
		if err != nil {
			RespondBadRequest(ctx, "cursor is invalid", gin.H{"field": "cursor"})
			return
		}
		f.After = cur
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	page, err := h.repo.List(cctx, f)
	if err != nil {
		RespondInternal(ctx, "Could not list jobs")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"limit":      limit,
		"count":      len(page.Items),
		"items":      page.Items,
		"hasMore":    page.HasMore,
		"nextCursor": page.NextCursor,
	})
}

// GET /admin/jobs/:id

func (h *AdminJobsHandler) GetByID(ctx *gin.Context) {
	id, ok := h.jobID(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	j, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			RespondNotFound(ctx, "Job not found")
			return
		}

		RespondInternal(ctx, "Could not fetch job")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, j)
}

// POST /admin/jobs/:id/retry
func (h *AdminJobsHandler) Retry(ctx *gin.Context) {
	id, ok := h.jobID(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if err := h.repo.Retry(cctx, id); err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			RespondNotFound(ctx, "Job not found")
		case errors.Is(err, job.ErrJobNotFailed):
			RespondConflict(ctx, "job_not_failed", "Only failed jobs can be retried")
		default:
			RespondInternal(ctx, "Could not retry job")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"jobId":  id,
		"status": job.StatusPending,
	})
}

// POST /admin/jobs/reprocess-dead?limit=50
// Failed jobs go back to pending with their attempts reset.

func (h *AdminJobsHandler) ReprocessDead(ctx *gin.Context) {
	limit, ok := queryLimit(ctx, 50, 500)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	n, err := h.repo.RetryManyFailed(cctx, limit)
	if err != nil {
		RespondInternal(ctx, "Could not reprocess dead jobs")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"requeued": n,
	})
}
