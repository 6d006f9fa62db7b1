package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/cache"
	"github.com/ovoz/admin/internal/domain/event"
	"github.com/ovoz/admin/internal/draft"
	"github.com/ovoz/admin/internal/http/middlewares"
	"github.com/ovoz/admin/internal/media"
	"github.com/ovoz/admin/internal/schedule"
	"github.com/ovoz/admin/internal/submission"
	"github.com/ovoz/admin/internal/upstream"
	"github.com/ovoz/admin/internal/utils"
)

type DraftStore interface {
	Put(ctx context.Context, d *draft.Draft) error
	Get(ctx context.Context, id string) (*draft.Draft, error)
	Delete(ctx context.Context, id string) error
}

type EventReader interface {
	GetEvent(ctx context.Context, id int64) (event.Event, error)
}

type MediaStore interface {
	Upload(ctx context.Context, name string, data []byte) (media.Upload, error)
	Delete(ctx context.Context, key string) error
}

type Submitter interface {
	Submit(ctx context.Context, d *draft.Draft) (submission.Outcome, error)
}

// MediaCleanup retries media deletes that failed inline.
type MediaCleanup interface {
	EnqueueDelete(ctx context.Context, key, draftID string) error
}

type DraftsDeps struct {
	Drafts   DraftStore
	Events   EventReader
	Media    MediaStore
	Submit   Submitter
	Cleanup  MediaCleanup
	Cache    cache.Store
	Location *time.Location
	Now      func() time.Time
	Log      *slog.Logger
}

type DraftsHandler struct {
	drafts  DraftStore
	events  EventReader
	media   MediaStore
	submit  Submitter
	cleanup MediaCleanup
	lists   listCache
	loc     *time.Location
	now     func() time.Time
	log     *slog.Logger
}

func NewDraftsHandler(d DraftsDeps) *DraftsHandler {
	h := &DraftsHandler{
		drafts:  d.Drafts,
		events:  d.Events,
		media:   d.Media,
		submit:  d.Submit,
		cleanup: d.Cleanup,
		lists:   listCache{store: d.Cache},
		loc:     d.Location,
		now:     d.Now,
		log:     d.Log,
	}

	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.log == nil {
		h.log = slog.Default()
	}

	return h
}

func (h *DraftsHandler) options() draft.Options {
	return draft.Options{Now: h.now, Location: h.loc}
}

func respondDraftError(ctx *gin.Context, err error) {
	var rangeErr *schedule.RangeError

	switch {
	case errors.Is(err, draft.ErrNotFound):
		RespondNotFound(ctx, "Draft not found")
	case errors.Is(err, draft.ErrSentChannelsImmutable):
		RespondConflict(ctx, "sent_channels_immutable", "Sent channels cannot be changed for an existing event")
	case errors.Is(err, draft.ErrInFlight):
		RespondConflict(ctx, "submission_in_flight", "The event is already being saved")
	case errors.Is(err, draft.ErrAlreadySubmitted):
		RespondConflict(ctx, "already_submitted", "This draft was already saved")
	case errors.Is(err, draft.ErrBadTransition):
		RespondConflict(ctx, "invalid_state", "The draft changed while saving, try again")
	case errors.As(err, &rangeErr):
		RespondError(ctx, http.StatusBadRequest, "invalid_time", rangeErr.Message, gin.H{"field": rangeErr.Field})
	case errors.Is(err, schedule.ErrNoDateSelected):
		RespondError(ctx, http.StatusBadRequest, "invalid_time", err.Error(), gin.H{"field": "date"})
	default:
		RespondInternal(ctx, "Could not update draft")
	}
}

// load fetches the draft named in the path, writing the error response when
// there is none.
func (h *DraftsHandler) load(ctx *gin.Context) (*draft.Draft, bool) {
	id := ctx.Param("draftId")
	ctx.Set(middlewares.CtxDraftID, id)

	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Draft not found")
		return nil, false
	}

	d, err := h.drafts.Get(ctx.Request.Context(), id)
	if err != nil {
		respondDraftError(ctx, err)
		return nil, false
	}

	return d, true
}

// dropMedia removes a stored image. A failed delete is queued for the worker
// when a queue is configured, and only logged otherwise.
func (h *DraftsHandler) dropMedia(ctx context.Context, key, draftID string) {
	if key == "" || h.media == nil {
		return
	}

	err := h.media.Delete(ctx, key)
	if err == nil {
		return
	}

	h.log.WarnContext(ctx, "media delete failed", "draft_id", draftID, "key", key, "err", err)

	if h.cleanup == nil {
		return
	}

	if qerr := h.cleanup.EnqueueDelete(ctx, key, draftID); qerr != nil {
		h.log.ErrorContext(ctx, "media delete could not be queued", "draft_id", draftID, "key", key, "err", qerr)
	}
}

// POST /drafts

func (h *DraftsHandler) OpenCreate(ctx *gin.Context) {
	d := draft.NewCreate(h.options())
	ctx.Set(middlewares.CtxDraftID, d.ID)

	if err := h.drafts.Put(ctx.Request.Context(), d); err != nil {
		d.Close()
		RespondInternal(ctx, "Could not open draft")
		return
	}

	ctx.JSON(http.StatusCreated, d.View())
}

// POST /events/:id/drafts

func (h *DraftsHandler) OpenEdit(ctx *gin.Context) {
	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondBadRequest(ctx, "Invalid event id", nil)
		return
	}

	rctx := ctx.Request.Context()

	if absentFromLastList(rctx, h.lists, cache.LastEventsKey(listScope(ctx)), id) {
		RespondNotFound(ctx, "Event not found")
		return
	}

	ev, err := h.events.GetEvent(rctx, id)
	if err != nil {
		RespondUpstream(ctx, err, "Event not found", "Failed to load event")
		return
	}

	d := draft.NewEdit(ev, h.options())
	ctx.Set(middlewares.CtxDraftID, d.ID)

	if err := h.drafts.Put(rctx, d); err != nil {
		d.Close()
		RespondInternal(ctx, "Could not open draft")
		return
	}

	ctx.JSON(http.StatusCreated, d.View())
}

// GET /drafts/:draftId

func (h *DraftsHandler) Get(ctx *gin.Context) {
	d, ok := h.load(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, d.View())
}

// PATCH /drafts/:draftId

func (h *DraftsHandler) Patch(ctx *gin.Context) {
	d, ok := h.load(ctx)
	if !ok {
		return
	}

	var p draft.FieldPatch
	if !BindJSON(ctx, &p) {
		return
	}

	if err := d.Apply(p); err != nil {
		respondDraftError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, d.View())
}

type finishDateRequest struct {
	Date string `json:"date" binding:"required,dateonly"`
}

// PUT /drafts/:draftId/finish/date

func (h *DraftsHandler) SetFinishDate(ctx *gin.Context) {
	d, ok := h.load(ctx)
	if !ok {
		return
	}

	var req finishDateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	day, err := time.ParseInLocation(time.DateOnly, req.Date, h.loc)
	if err != nil {
		RespondBadRequest(ctx, "date must be formatted YYYY-MM-DD", gin.H{"field": "date"})
		return
	}

	if _, err := d.SelectDate(day); err != nil {
		respondDraftError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, d.View())
}

type finishTimeRequest struct {
	Hours   *int `json:"hours" binding:"required"`
	Minutes *int `json:"minutes" binding:"required"`
}

// PUT /drafts/:draftId/finish/time

func (h *DraftsHandler) SetFinishTime(ctx *gin.Context) {
	d, ok := h.load(ctx)
	if !ok {
		return
	}

	var req finishTimeRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if _, err := d.ApplyTime(*req.Hours, *req.Minutes); err != nil {
		respondDraftError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, d.View())
}

// DELETE /drafts/:draftId/finish

func (h *DraftsHandler) ClearFinish(ctx *gin.Context) {
	d, ok := h.load(ctx)
	if !ok {
		return
	}

	if err := d.ClearFinish(); err != nil {
		respondDraftError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, d.View())
}

func respondMediaError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, media.ErrNoFile):
		RespondError(ctx, http.StatusBadRequest, "invalid_file", err.Error(), gin.H{"field": "file"})
	case errors.Is(err, media.ErrFileTooLarge):
		RespondError(ctx, http.StatusRequestEntityTooLarge, "file_too_large", err.Error(), gin.H{"field": "file"})
	case errors.Is(err, media.ErrUnsupportedType):
		RespondError(ctx, http.StatusUnsupportedMediaType, "unsupported_file_type", err.Error(), gin.H{"field": "file"})
	case errors.Is(err, context.DeadlineExceeded):
		RespondError(ctx, http.StatusGatewayTimeout, "media_timeout", "Media server did not answer in time", nil)
	default:
		RespondError(ctx, http.StatusBadGateway, "media_error", err.Error(), nil)
	}
}

// POST /drafts/:draftId/image

func (h *DraftsHandler) UploadImage(ctx *gin.Context) {
	d, ok := h.load(ctx)
	if !ok {
		return
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		respondMediaError(ctx, media.ErrNoFile)
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondMediaError(ctx, media.ErrNoFile)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, media.MaxFileSize+1))
	if err != nil {
		RespondBadRequest(ctx, "Could not read upload", gin.H{"field": "file"})
		return
	}

	if _, err := media.Validate(data); err != nil {
		respondMediaError(ctx, err)
		return
	}

	rctx := ctx.Request.Context()

	up, err := h.media.Upload(rctx, fh.Filename, data)
	if err != nil {
		respondMediaError(ctx, err)
		return
	}

	prev, err := d.SetUpload(up)
	if err != nil {
		h.dropMedia(rctx, up.Key, d.ID)
		respondDraftError(ctx, err)
		return
	}

	if prev != nil {
		h.dropMedia(rctx, prev.Key, d.ID)
	}

	ctx.JSON(http.StatusOK, d.View())
}

// DELETE /drafts/:draftId/image

func (h *DraftsHandler) DeleteImage(ctx *gin.Context) {
	d, ok := h.load(ctx)
	if !ok {
		return
	}

	key, err := d.ClearImage()
	if err != nil {
		respondDraftError(ctx, err)
		return
	}

	h.dropMedia(ctx.Request.Context(), key, d.ID)

	ctx.JSON(http.StatusOK, d.View())
}

// POST /drafts/:draftId/submit

func (h *DraftsHandler) Submit(ctx *gin.Context) {
	d, ok := h.load(ctx)
	if !ok {
		return
	}

	out, err := h.submit.Submit(ctx.Request.Context(), d)
	if err != nil {
		respondDraftError(ctx, err)
		return
	}

	switch out.Status {
	case submission.StatusRejected:
		RespondValidation(ctx, out.Field, out.Message)
	case submission.StatusFailed:
		switch {
		case errors.Is(out.Err, upstream.ErrUnauthorized), errors.Is(out.Err, upstream.ErrNoToken):
			RespondUnauthorized(ctx, "upstream_unauthorized", "Upstream session expired, please log in again")
		case errors.Is(out.Err, upstream.ErrNotFound):
			RespondNotFound(ctx, "Event not found")
		default:
			RespondError(ctx, http.StatusBadGateway, "upstream_error", out.Message, nil)
		}
	default:
		ctx.JSON(http.StatusOK, out)
	}
}

// DELETE /drafts/:draftId

func (h *DraftsHandler) Discard(ctx *gin.Context) {
	id := ctx.Param("draftId")
	ctx.Set(middlewares.CtxDraftID, id)

	if err := h.drafts.Delete(ctx.Request.Context(), id); err != nil {
		respondDraftError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
