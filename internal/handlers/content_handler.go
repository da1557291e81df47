package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"points-service/internal/worker"
	"points-service/pkg/common"
)

type ContentDecisionRequest struct {
	Reason string `json:"reason"`
}

// ApproveContent approves every pending transaction of the content item.
// With ?async=true and a queue configured the work is handed to the worker.
func (h *Handler) ApproveContent(c *gin.Context) {
	payload := worker.ContentDecisionPayload{
		ReferenceID: c.Param("referenceId"),
		ApprovedBy:  actorFrom(c).ID,
	}
	if h.async(c) {
		task, err := worker.NewContentApproveTask(payload)
		h.enqueue(c, task, err)
		return
	}
	res, err := h.Content.ApproveForContent(c.Request.Context(), payload.ReferenceID, payload.ApprovedBy)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(res, "content approved"))
}

func (h *Handler) RejectContent(c *gin.Context) {
	var req ContentDecisionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	payload := worker.ContentDecisionPayload{
		ReferenceID: c.Param("referenceId"),
		ApprovedBy:  actorFrom(c).ID,
		Reason:      req.Reason,
	}
	if h.async(c) {
		task, err := worker.NewContentRejectTask(payload)
		h.enqueue(c, task, err)
		return
	}
	res, err := h.Content.RejectForContent(c.Request.Context(), payload.ReferenceID, payload.ApprovedBy, payload.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(res, "content rejected"))
}

func (h *Handler) async(c *gin.Context) bool {
	return h.Queue != nil && c.Query("async") == "true"
}

func (h *Handler) enqueue(c *gin.Context, task *asynq.Task, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	info, err := h.Queue.Enqueue(task)
	if err != nil {
		h.Log.WithError(err).WithField("task", task.Type()).Error("enqueue failed")
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, common.SuccessResponse{
		Status:  http.StatusAccepted,
		Success: true,
		Message: "queued",
		Data:    gin.H{"taskId": info.ID, "queue": info.Queue, "type": task.Type()},
	})
}
