package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"points-service/internal/models"
	"points-service/internal/services"
	"points-service/pkg/common"
)

type CreateTransactionRequest struct {
	UserId      uint    `json:"userId" binding:"required"`
	ActionType  string  `json:"actionType" binding:"required"`
	ReferenceId *string `json:"referenceId"`
	Points      *int    `json:"points" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Status      string  `json:"status"`
	Notes       *string `json:"notes"`
}

func (h *Handler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	trx, err := h.Ledger.Create(c.Request.Context(), services.CreateTransactionDTO{
		UserId:      req.UserId,
		ActionType:  req.ActionType,
		ReferenceId: req.ReferenceId,
		Points:      *req.Points,
		Description: req.Description,
		Status:      models.TransactionStatus(strings.ToLower(req.Status)),
		Notes:       req.Notes,
		Actor:       actorFrom(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewCreatedResponse(trx, "transaction recorded"))
}

func (h *Handler) GetTransaction(c *gin.Context) {
	trx, err := h.Ledger.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !canSee(c, trx.UserId) {
		forbidden(c)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "transaction fetched"))
}

type TransitionRequest struct {
	Action     string  `json:"action" binding:"required"`
	ApprovedBy string  `json:"approvedBy"`
	Notes      *string `json:"notes"`
}

func (h *Handler) TransitionTransaction(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.ApprovedBy == "" {
		req.ApprovedBy = actorFrom(c).ID
	}

	trx, err := h.Ledger.Transition(c.Request.Context(), services.TransitionDTO{
		ID:         c.Param("id"),
		Action:     req.Action,
		ApprovedBy: req.ApprovedBy,
		Notes:      req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "transaction updated"))
}

// ListTransactions accepts userId, actionType, status, referenceId, startDate,
// endDate, page and limit. Non-admin callers only see their own transactions.
func (h *Handler) ListTransactions(c *gin.Context) {
	var filter services.TransactionFilter

	if v := c.Query("userId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid userId")
			return
		}
		uid := uint(id)
		filter.UserId = &uid
	}
	if !actorFrom(c).Admin {
		own, ok := callerUserID(c)
		if !ok || (filter.UserId != nil && *filter.UserId != own) {
			forbidden(c)
			return
		}
		filter.UserId = &own
	}

	filter.ActionType = c.Query("actionType")
	filter.Status = strings.ToLower(c.Query("status"))
	filter.ReferenceId = c.Query("referenceId")

	var err error
	if filter.StartDate, err = parseDate(c.Query("startDate"), false); err != nil {
		badRequest(c, "invalid startDate: use YYYY-MM-DD or RFC3339")
		return
	}
	if filter.EndDate, err = parseDate(c.Query("endDate"), true); err != nil {
		badRequest(c, "invalid endDate: use YYYY-MM-DD or RFC3339")
		return
	}
	if filter.Page, err = queryInt(c, "page"); err != nil {
		badRequest(c, "invalid page")
		return
	}
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		badRequest(c, "invalid limit")
		return
	}

	res, err := h.Reporting.GetTransactions(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) PendingTransactions(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, "invalid limit")
		return
	}
	rows, err := h.Reporting.GetPendingTransactions(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(rows, "pending transactions fetched"))
}

// parseDate accepts a calendar day or an RFC3339 instant. A calendar day used
// as an end bound covers the whole day.
func parseDate(v string, end bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if d, err := time.Parse(time.DateOnly, v); err == nil {
		if end {
			d = d.AddDate(0, 0, 1)
		}
		return &d, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
