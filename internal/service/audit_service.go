package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/dulcevicio/course-api/internal/models"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
)

type auditLister interface {
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

// AuditService exposes the audit trail to administrators.
type AuditService struct {
	repo   auditLister
	logger *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditLister, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// ListByResource returns the trail for one resource, newest first.
func (s *AuditService) ListByResource(ctx context.Context, actor models.JWTClaims, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	if err := Authorize(actor.Role, ActionAuditView); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListByResource(ctx, resource, resourceID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit trail")
	}
	return entries, nil
}
