package stores

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"gorm.io/gorm"

	"github.com/ledgerflowhq/ledgerflow/models"
)

type TenantStore struct {
	BaseStore
}

func NewTenantStore(db *gorm.DB) *TenantStore {
	return &TenantStore{BaseStore: BaseStore{db: db}}
}

func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.APIKey == "" {
		tenant.APIKey = s.generateAPIKey()
	}
	return s.GetDB(ctx).Create(tenant).Error
}

func (s *TenantStore) Update(ctx context.Context, tenant *models.Tenant) error {
	return s.GetDB(ctx).Save(tenant).Error
}

func (s *TenantStore) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.GetDB(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *TenantStore) GetByAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.GetDB(ctx).Where("api_key = ? AND status = 'active'", apiKey).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

// ListActiveWithProcessing returns active tenants with receipt processing
// enabled, for the reconciliation sweep.
func (s *TenantStore) ListActiveWithProcessing(ctx context.Context) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	err := s.GetDB(ctx).
		Where("status = ? AND settings->>'processing_enabled' = 'true'", models.TenantStatusActive).
		Order("created_at ASC").
		Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// ListActiveWithAutoPay returns active tenants with auto-pay enabled, for the
// auto-pay sweep.
func (s *TenantStore) ListActiveWithAutoPay(ctx context.Context) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	err := s.GetDB(ctx).
		Where("status = ? AND settings->>'auto_pay_enabled' = 'true'", models.TenantStatusActive).
		Order("created_at ASC").
		Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// IncrementUsage bumps the processed counter and stamps the last processing
// time. Usage lives in a jsonb blob, so this is a read-modify-write.
func (s *TenantStore) IncrementUsage(ctx context.Context, tenantID string, now time.Time) error {
	tenant, err := s.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	tenant.Usage.ReceiptsProcessed++
	tenant.Usage.LastProcessing = &now
	return s.GetDB(ctx).Model(&models.Tenant{}).
		Where("id = ?", tenantID).
		Update("usage", tenant.Usage).Error
}

func (s *TenantStore) generateAPIKey() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return "lf_" + hex.EncodeToString(bytes)
}
