package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"points-service/internal/services"
	"points-service/pkg/common"
)

type RegisterUserRequest struct {
	ID       uint   `json:"id" binding:"required"`
	Username string `json:"username"`
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := h.Users.RegisterUser(c.Request.Context(), services.RegisterUserDTO{ID: req.ID, Username: req.Username})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(user, "user registered"))
}

func (h *Handler) UserSummary(c *gin.Context) {
	userID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if !canSee(c, userID) {
		forbidden(c)
		return
	}
	summary, err := h.Reporting.GetUserSummary(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(summary, "summary fetched"))
}
