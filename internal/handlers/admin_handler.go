package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"points-service/internal/services"
	"points-service/internal/worker"
	"points-service/pkg/common"
)

type ExpireRequest struct {
	MaxAgeDays int `json:"maxAgeDays"`
}

// ExpirePending runs the expiry sweep. maxAgeDays overrides the configured age;
// without it the sweep takes the shared lease like the scheduled run.
func (h *Handler) ExpirePending(c *gin.Context) {
	var req ExpireRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.MaxAgeDays < 0 {
		badRequest(c, "maxAgeDays must be positive")
		return
	}
	if h.async(c) {
		task, err := worker.NewExpirePendingTask(worker.ExpirePayload{MaxAgeDays: req.MaxAgeDays})
		h.enqueue(c, task, err)
		return
	}

	var (
		res *services.SweepResult
		err error
	)
	if req.MaxAgeDays > 0 {
		res, err = h.Expiry.ExpirePending(c.Request.Context(), req.MaxAgeDays)
	} else {
		res, err = h.Expiry.Sweep(c.Request.Context())
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(res, "expiry sweep finished"))
}

// ReconcileBalances checks one user (?userId=) or all users; ?fix=true rewrites
// drifted balances.
func (h *Handler) ReconcileBalances(c *gin.Context) {
	fix := c.Query("fix") == "true"

	if v := c.Query("userId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid userId")
			return
		}
		drift, err := h.Reconcile.ReconcileUser(c.Request.Context(), uint(id), fix)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, common.NewSuccessResponse(drift, "reconciled"))
		return
	}

	drifts, err := h.Reconcile.ReconcileAll(c.Request.Context(), fix)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(drifts, "reconciled"))
}
