package stores

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ledgerflowhq/ledgerflow/models"
)

type IntegrationStore struct {
	BaseStore
}

func NewIntegrationStore(db *gorm.DB) *IntegrationStore {
	return &IntegrationStore{BaseStore: BaseStore{db: db}}
}

func (s *IntegrationStore) Upsert(ctx context.Context, integration *models.Integration) error {
	if integration.ID == "" {
		integration.ID = models.IntegrationID(integration.TenantID)
	}
	return s.GetDB(ctx).Save(integration).Error
}

// GetByTenant returns the tenant's ledger integration, or (nil, nil) when the
// tenant never connected one. Absence is a normal outcome, not an error.
func (s *IntegrationStore) GetByTenant(ctx context.Context, tenantID string) (*models.Integration, error) {
	var integration models.Integration
	err := s.GetDB(ctx).Where("tenant_id = ?", tenantID).First(&integration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (s *IntegrationStore) Delete(ctx context.Context, tenantID string) error {
	return s.GetDB(ctx).Delete(&models.Integration{}, "tenant_id = ?", tenantID).Error
}
