package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"points-service/internal/services"
	"points-service/pkg/apperror"
)

type ContentResolver interface {
	ApproveForContent(ctx context.Context, referenceID, approvedBy string) (*services.ContentResolution, error)
	RejectForContent(ctx context.Context, referenceID, approvedBy, reason string) (*services.ContentResolution, error)
}

type Expirer interface {
	ExpirePending(ctx context.Context, maxAgeDays int) (*services.SweepResult, error)
	Sweep(ctx context.Context) (*services.SweepResult, error)
}

type Worker struct {
	Content ContentResolver
	Expiry  Expirer
	Log     logrus.FieldLogger
}

func NewWorker(content ContentResolver, expiry Expirer, log logrus.FieldLogger) *Worker {
	return &Worker{Content: content, Expiry: expiry, Log: log}
}

func (w *Worker) HandleContentApprove(ctx context.Context, t *asynq.Task) error {
	var p ContentDecisionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	res, err := w.Content.ApproveForContent(ctx, p.ReferenceID, p.ApprovedBy)
	return w.finish(t, p.ReferenceID, res, err)
}

func (w *Worker) HandleContentReject(ctx context.Context, t *asynq.Task) error {
	var p ContentDecisionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	res, err := w.Content.RejectForContent(ctx, p.ReferenceID, p.ApprovedBy, p.Reason)
	return w.finish(t, p.ReferenceID, res, err)
}

func (w *Worker) HandleExpirePending(ctx context.Context, t *asynq.Task) error {
	var p ExpirePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
		}
	}

	var (
		res *services.SweepResult
		err error
	)
	if p.MaxAgeDays > 0 {
		res, err = w.Expiry.ExpirePending(ctx, p.MaxAgeDays)
	} else {
		res, err = w.Expiry.Sweep(ctx)
	}
	if err != nil {
		return retryable(err)
	}
	w.Log.WithFields(logrus.Fields{
		"task":    t.Type(),
		"expired": res.Expired,
		"skipped": res.Skipped,
	}).Info("expiry task done")
	return nil
}

// finish logs the outcome. Partial progress is safe to retry since resolved
// rows are no longer pending.
func (w *Worker) finish(t *asynq.Task, referenceID string, res *services.ContentResolution, err error) error {
	entry := w.Log.WithFields(logrus.Fields{"task": t.Type(), "reference_id": referenceID})
	if res != nil {
		entry = entry.WithFields(logrus.Fields{"transitioned": len(res.Transitioned), "skipped": res.Skipped})
	}
	if err != nil {
		entry.WithError(err).Warn("content task failed")
		return retryable(err)
	}
	entry.Info("content task done")
	return nil
}

// retryable marks caller mistakes as permanent so asynq does not retry them.
func retryable(err error) error {
	if apperror.IsClientError(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func NewServeMux(w *Worker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeContentApprove, w.HandleContentApprove)
	mux.HandleFunc(TypeContentReject, w.HandleContentReject)
	mux.HandleFunc(TypeExpirePending, w.HandleExpirePending)
	return mux
}

// StartWorker blocks serving ledger tasks until the process is signalled.
func StartWorker(redisOpt asynq.RedisClientOpt, w *Worker, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: w.Log.WithField("component", "asynq"),
		},
	)
	return srv.Run(NewServeMux(w))
}
