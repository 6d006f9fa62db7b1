package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/dispatch"
	"github.com/ovoz/admin/internal/domain/candidate"
	"github.com/ovoz/admin/internal/utils"
)

type CandidateLister interface {
	ListCandidates(ctx context.Context, eventID int64, keyword string) ([]candidate.Candidate, error)
}

type NotificationsHandler struct {
	candidates CandidateLister
	dispatcher dispatch.Notifications
}

func NewNotificationsHandler(candidates CandidateLister, dispatcher dispatch.Notifications) *NotificationsHandler {
	return &NotificationsHandler{candidates: candidates, dispatcher: dispatcher}
}

// POST /events/:id/send

func (h *NotificationsHandler) Send(ctx *gin.Context) {
	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondBadRequest(ctx, "Invalid event id", nil)
		return
	}

	rctx := ctx.Request.Context()

	list, err := h.candidates.ListCandidates(rctx, id, "")
	if err != nil {
		RespondUpstream(ctx, err, "Event not found", "Failed to load candidates")
		return
	}

	if len(list) == 0 {
		RespondConflict(ctx, "no_candidates", "Add at least one candidate before sending the event")
		return
	}

	res, err := h.dispatcher.SendEventNotification(rctx, id, requestIDFrom(ctx))
	if err != nil {
		RespondUpstream(ctx, err, "Event not found", "Failed to send event")
		return
	}

	if res.Queued {
		ctx.JSON(http.StatusAccepted, gin.H{
			"message":         "Event send queued",
			"jobId":           res.JobID,
			"status":          res.Status,
			"alreadyEnqueued": res.AlreadyEnqueued,
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Event sent"})
}
