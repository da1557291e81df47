package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"points-service/internal/models"
	"points-service/pkg/apperror"
)

// ContentResolution reports what a bulk content decision did.
type ContentResolution struct {
	ReferenceID  string                    `json:"referenceId"`
	Transitioned []models.PointTransaction `json:"transitioned"`
	Skipped      int                       `json:"skipped"`
}

// ContentLinkageService resolves every pending transaction tied to a piece of
// content once a moderator decides on that content. Each transaction moves in
// its own atomic unit.
type ContentLinkageService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Log    logrus.FieldLogger
}

func NewContentLinkageService(db *gorm.DB, ledger *LedgerService, log logrus.FieldLogger) *ContentLinkageService {
	return &ContentLinkageService{DB: db, Ledger: ledger, Log: log}
}

func (s *ContentLinkageService) ApproveForContent(ctx context.Context, referenceID, approvedBy string) (*ContentResolution, error) {
	return s.resolve(ctx, referenceID, transition{
		to:         models.StatusApproved,
		approvedBy: strings.TrimSpace(approvedBy),
		source:     SourceContent,
	})
}

// RejectForContent rejects the pending transactions of referenceID. An empty
// reason is replaced by a generated note.
func (s *ContentLinkageService) RejectForContent(ctx context.Context, referenceID, approvedBy, reason string) (*ContentResolution, error) {
	note := strings.TrimSpace(reason)
	if note == "" {
		note = fmt.Sprintf("content %s rejected", strings.TrimSpace(referenceID))
	}
	return s.resolve(ctx, referenceID, transition{
		to:         models.StatusRejected,
		approvedBy: strings.TrimSpace(approvedBy),
		notes:      &note,
		source:     SourceContent,
	})
}

func (s *ContentLinkageService) resolve(ctx context.Context, referenceID string, t transition) (*ContentResolution, error) {
	referenceID = strings.TrimSpace(referenceID)
	if referenceID == "" {
		return nil, apperror.Validation("referenceId is required")
	}
	if t.approvedBy == "" {
		return nil, apperror.Validation("approvedBy is required")
	}

	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.PointTransaction{}).
		Where("reference_id = ? AND status = ?", referenceID, string(models.StatusPending)).
		Order("created_at ASC, id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, apperror.Persistence(err)
	}

	res := &ContentResolution{ReferenceID: referenceID, Transitioned: []models.PointTransaction{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		trx, err := s.Ledger.applyTransition(ctx, id, t)
		if errors.Is(err, apperror.ErrInvalidState) {
			// Resolved by someone else since the lookup.
			res.Skipped++
			continue
		}
		if err != nil {
			return res, err
		}
		res.Transitioned = append(res.Transitioned, *trx)
	}

	s.Log.WithFields(logrus.Fields{
		"reference_id": referenceID,
		"status":       t.to,
		"transitioned": len(res.Transitioned),
		"skipped":      res.Skipped,
	}).Info("content resolved")
	return res, nil
}
