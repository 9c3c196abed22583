package services

import (
	"context"

	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/stores"
)

// AuditService exposes the audit trail for the API layer.
type AuditService struct {
	audits *stores.AuditStore
}

func NewAuditService(audits *stores.AuditStore) *AuditService {
	return &AuditService{audits: audits}
}

func (s *AuditService) Record(ctx context.Context, tenantID string, action models.AuditAction, details models.JSON) error {
	return s.audits.Create(ctx, &models.AuditEntry{
		TenantID: tenantID,
		Action:   action,
		Details:  details,
	})
}

func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEntry, int64, error) {
	return s.audits.List(ctx, filter)
}
