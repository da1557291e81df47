package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"points-service/internal/auth"
	"points-service/internal/services"
	"points-service/pkg/apperror"
	"points-service/pkg/common"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Handler struct {
	Ledger    *services.LedgerService
	Content   *services.ContentLinkageService
	Expiry    *services.ExpiryService
	Reporting *services.ReportingService
	Reconcile *services.ReconcileService
	Users     *services.UserService
	// Queue is nil when background processing is disabled; async requests
	// then run inline.
	Queue Enqueuer
	Log   logrus.FieldLogger
}

// RegisterRoutes mounts the ledger API under /api/v1.
func (h *Handler) RegisterRoutes(r gin.IRouter, jwtSecret string) {
	api := r.Group("/api/v1", auth.Middleware(jwtSecret))
	admin := auth.RequireAdmin()

	tx := api.Group("/transactions")
	tx.POST("", h.CreateTransaction)
	tx.GET("", h.ListTransactions)
	tx.GET("/pending", admin, h.PendingTransactions)
	tx.GET("/:id", h.GetTransaction)
	tx.POST("/:id/transition", admin, h.TransitionTransaction)

	content := api.Group("/content", admin)
	content.POST("/:referenceId/approve", h.ApproveContent)
	content.POST("/:referenceId/reject", h.RejectContent)

	users := api.Group("/users")
	users.POST("", admin, h.RegisterUser)
	users.GET("/:id/summary", h.UserSummary)

	adm := api.Group("/admin", admin)
	adm.POST("/expire", h.ExpirePending)
	adm.POST("/reconcile", h.ReconcileBalances)
}

// respondError writes err in the error envelope. Anything outside the client
// error kinds is logged with its cause before the message is masked.
func (h *Handler) respondError(c *gin.Context, err error) {
	if !apperror.IsClientError(err) {
		h.Log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
	}
	writeError(c, err)
}

func writeError(c *gin.Context, err error) {
	status := apperror.MapErrorToStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	c.JSON(status, common.NewErrorResponse(message, nil, status))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, common.NewErrorResponse(message, nil, http.StatusBadRequest))
}

func actorFrom(c *gin.Context) services.Actor {
	identity, _ := auth.FromContext(c)
	return services.Actor{ID: identity.Subject, Admin: identity.IsAdmin()}
}

// callerUserID returns the numeric user id of a non-admin caller.
func callerUserID(c *gin.Context) (uint, bool) {
	identity, _ := auth.FromContext(c)
	id, err := strconv.ParseUint(identity.Subject, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// canSee reports whether the caller may read userID's data.
func canSee(c *gin.Context, userID uint) bool {
	if actorFrom(c).Admin {
		return true
	}
	id, ok := callerUserID(c)
	return ok && id == userID
}

func forbidden(c *gin.Context) {
	writeError(c, apperror.Forbidden("not allowed to access another user's points"))
}

// bindOptionalJSON binds the body into obj when one is sent. Chunked bodies have
// no declared length, so an empty body is detected by the decoder instead.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}
