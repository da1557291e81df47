package worker

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypeContentApprove = "content:approve"
	TypeContentReject  = "content:reject"
	TypeExpirePending  = "ledger:expire-pending"
)

type ContentDecisionPayload struct {
	ReferenceID string `json:"reference_id"`
	ApprovedBy  string `json:"approved_by"`
	Reason      string `json:"reason,omitempty"`
}

// ExpirePayload with MaxAgeDays 0 runs the configured sweep under its lease.
type ExpirePayload struct {
	MaxAgeDays int `json:"max_age_days,omitempty"`
}

func NewContentApproveTask(payload ContentDecisionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeContentApprove, data, asynq.MaxRetry(5)), nil
}

func NewContentRejectTask(payload ContentDecisionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeContentReject, data, asynq.MaxRetry(5)), nil
}

func NewExpirePendingTask(payload ExpirePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExpirePending, data, asynq.MaxRetry(1)), nil
}
