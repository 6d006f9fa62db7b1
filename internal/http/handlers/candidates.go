package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/cache"
	"github.com/ovoz/admin/internal/domain/candidate"
	"github.com/ovoz/admin/internal/sanitize"
	"github.com/ovoz/admin/internal/utils"
)

type CandidatesAPI interface {
	ListCandidates(ctx context.Context, eventID int64, keyword string) ([]candidate.Candidate, error)
	CreateCandidate(ctx context.Context, req candidate.CreateRequest) (candidate.Candidate, error)
	UpdateCandidate(ctx context.Context, id int64, req candidate.UpdateRequest) (candidate.Candidate, error)
	DeleteCandidate(ctx context.Context, id int64) error
}

type CandidatesHandler struct {
	api   CandidatesAPI
	lists listCache
}

func NewCandidatesHandler(api CandidatesAPI, c cache.Store, ttl time.Duration) *CandidatesHandler {
	return &CandidatesHandler{api: api, lists: listCache{store: c, ttl: ttl}}
}

// GET /events/:id/candidates?keyword=

func (h *CandidatesHandler) List(ctx *gin.Context) {
	eventID, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondBadRequest(ctx, "Invalid event id", nil)
		return
	}

	keyword := sanitize.Text(ctx.Query("keyword"))
	key := cache.CandidatesListKey(eventID, keyword)
	rctx := ctx.Request.Context()

	items, hit := cachedList[candidate.Candidate](rctx, h.lists, key)
	if !hit {
		var err error
		items, err = h.api.ListCandidates(rctx, eventID, keyword)
		if err != nil {
			RespondUpstream(ctx, err, "Event not found", "Failed to load candidates")
			return
		}

		h.lists.put(rctx, key, items)
	}

	ids := make([]int64, 0, len(items))
	for _, c := range items {
		ids = append(ids, c.ID)
	}
	filter := "event=" + strconv.FormatInt(eventID, 10) + ":keyword=" + keyword
	rememberListing(rctx, h.lists, cache.LastCandidatesKey(listScope(ctx)), filter, ids)

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// POST /candidates

func (h *CandidatesHandler) Create(ctx *gin.Context) {
	var req candidate.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	req.Name = sanitize.Text(req.Name)
	if req.Name == "" {
		RespondValidation(ctx, "name", "Candidate name is required")
		return
	}

	rctx := ctx.Request.Context()

	c, err := h.api.CreateCandidate(rctx, req)
	if err != nil {
		RespondUpstream(ctx, err, "Event not found", "Failed to create candidate")
		return
	}

	h.lists.invalidate(rctx, cache.PrefixCandidates)

	ctx.JSON(http.StatusCreated, c)
}

// PUT /candidates/:id

func (h *CandidatesHandler) Update(ctx *gin.Context) {
	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondBadRequest(ctx, "Invalid candidate id", nil)
		return
	}

	var req candidate.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	req.Name = sanitize.Text(req.Name)
	if req.Name == "" {
		RespondValidation(ctx, "name", "Candidate name is required")
		return
	}

	rctx := ctx.Request.Context()

	if absentFromLastList(rctx, h.lists, cache.LastCandidatesKey(listScope(ctx)), id) {
		RespondNotFound(ctx, "Candidate not found")
		return
	}

	c, err := h.api.UpdateCandidate(rctx, id, req)
	if err != nil {
		RespondUpstream(ctx, err, "Candidate not found", "Failed to update candidate")
		return
	}

	h.lists.invalidate(rctx, cache.PrefixCandidates)

	ctx.JSON(http.StatusOK, c)
}

// DELETE /candidates/:id

func (h *CandidatesHandler) Delete(ctx *gin.Context) {
	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondBadRequest(ctx, "Invalid candidate id", nil)
		return
	}

	rctx := ctx.Request.Context()

	if absentFromLastList(rctx, h.lists, cache.LastCandidatesKey(listScope(ctx)), id) {
		RespondNotFound(ctx, "Candidate not found")
		return
	}

	if err := h.api.DeleteCandidate(rctx, id); err != nil {
		RespondUpstream(ctx, err, "Candidate not found", "Failed to delete candidate")
		return
	}

	h.lists.invalidate(rctx, cache.PrefixCandidates)

	ctx.Status(http.StatusNoContent)
}
