package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"points-service/internal/services"
	"points-service/pkg/apperror"
)

type fakeContent struct {
	calls []ContentDecisionPayload
	err   error
}

func (f *fakeContent) ApproveForContent(_ context.Context, ref, by string) (*services.ContentResolution, error) {
	f.calls = append(f.calls, ContentDecisionPayload{ReferenceID: ref, ApprovedBy: by})
	return &services.ContentResolution{ReferenceID: ref}, f.err
}

func (f *fakeContent) RejectForContent(_ context.Context, ref, by, reason string) (*services.ContentResolution, error) {
	f.calls = append(f.calls, ContentDecisionPayload{ReferenceID: ref, ApprovedBy: by, Reason: reason})
	return &services.ContentResolution{ReferenceID: ref}, f.err
}

type fakeExpiry struct {
	swept   int
	maxAges []int
}

func (f *fakeExpiry) ExpirePending(_ context.Context, maxAgeDays int) (*services.SweepResult, error) {
	f.maxAges = append(f.maxAges, maxAgeDays)
	return &services.SweepResult{Expired: 2}, nil
}

func (f *fakeExpiry) Sweep(context.Context) (*services.SweepResult, error) {
	f.swept++
	return &services.SweepResult{Expired: 1}, nil
}

func newTestWorker() (*Worker, *fakeContent, *fakeExpiry) {
	log, _ := test.NewNullLogger()
	content, expiry := &fakeContent{}, &fakeExpiry{}
	return NewWorker(content, expiry, log), content, expiry
}

func TestHandleContentTasks(t *testing.T) {
	w, content, _ := newTestWorker()

	task, err := NewContentApproveTask(ContentDecisionPayload{ReferenceID: "video1", ApprovedBy: "admin1"})
	require.NoError(t, err)
	require.NoError(t, w.HandleContentApprove(context.Background(), task))

	task, err = NewContentRejectTask(ContentDecisionPayload{ReferenceID: "video2", ApprovedBy: "admin1", Reason: "spam"})
	require.NoError(t, err)
	require.NoError(t, w.HandleContentReject(context.Background(), task))

	assert.Equal(t, []ContentDecisionPayload{
		{ReferenceID: "video1", ApprovedBy: "admin1"},
		{ReferenceID: "video2", ApprovedBy: "admin1", Reason: "spam"},
	}, content.calls)
}

func TestHandleContentRetryPolicy(t *testing.T) {
	w, content, _ := newTestWorker()
	task, err := NewContentApproveTask(ContentDecisionPayload{ReferenceID: "video1", ApprovedBy: "admin1"})
	require.NoError(t, err)

	content.err = apperror.Validation("approvedBy is required")
	err = w.HandleContentApprove(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	content.err = apperror.Persistence(errors.New("connection reset"))
	err = w.HandleContentApprove(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	err = w.HandleContentApprove(context.Background(), asynq.NewTask(TypeContentApprove, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleExpirePending(t *testing.T) {
	w, _, expiry := newTestWorker()

	require.NoError(t, w.HandleExpirePending(context.Background(), asynq.NewTask(TypeExpirePending, nil)))
	assert.Equal(t, 1, expiry.swept)

	task, err := NewExpirePendingTask(ExpirePayload{MaxAgeDays: 14})
	require.NoError(t, err)
	require.NoError(t, w.HandleExpirePending(context.Background(), task))
	assert.Equal(t, []int{14}, expiry.maxAges)
}

func TestServeMuxRoutesTaskTypes(t *testing.T) {
	w, content, _ := newTestWorker()
	mux := NewServeMux(w)

	task, err := NewContentRejectTask(ContentDecisionPayload{ReferenceID: "lib1", ApprovedBy: "mod"})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Len(t, content.calls, 1)
}
