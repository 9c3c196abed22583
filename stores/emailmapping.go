package stores

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ledgerflowhq/ledgerflow/models"
)

type EmailMappingStore struct {
	BaseStore
}

func NewEmailMappingStore(db *gorm.DB) *EmailMappingStore {
	return &EmailMappingStore{BaseStore: BaseStore{db: db}}
}

func (s *EmailMappingStore) Upsert(ctx context.Context, mapping *models.EmailMapping) error {
	if mapping.ID == "" {
		mapping.ID = models.EmailMappingID(mapping.TenantID)
	}
	return s.GetDB(ctx).Save(mapping).Error
}

func (s *EmailMappingStore) GetByAddress(ctx context.Context, address string) (*models.EmailMapping, error) {
	var mapping models.EmailMapping
	err := s.GetDB(ctx).Where("email_address = ? AND status = 'active'", address).First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (s *EmailMappingStore) GetByTenant(ctx context.Context, tenantID string) (*models.EmailMapping, error) {
	var mapping models.EmailMapping
	err := s.GetDB(ctx).Where("tenant_id = ?", tenantID).First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}
