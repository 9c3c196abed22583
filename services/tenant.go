package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/storage"
	"github.com/ledgerflowhq/ledgerflow/stores"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

// TenantService provisions tenants: the database row, the per-stage storage
// namespaces, and the inbound email address.
type TenantService struct {
	tenants     *stores.TenantStore
	mappings    *stores.EmailMappingStore
	audits      *stores.AuditStore
	objects     storage.ObjectStore
	emailDomain string
	logger      *utils.Logger
}

func NewTenantService(tenants *stores.TenantStore, mappings *stores.EmailMappingStore, audits *stores.AuditStore, objects storage.ObjectStore, emailDomain string) *TenantService {
	return &TenantService{
		tenants:     tenants,
		mappings:    mappings,
		audits:      audits,
		objects:     objects,
		emailDomain: emailDomain,
		logger:      utils.NewLogger("tenant"),
	}
}

func (s *TenantService) Create(ctx context.Context, req models.CreateTenantRequest) (*models.Tenant, error) {
	if req.CompanyName == "" || req.AdminEmail == "" {
		return nil, fmt.Errorf("%w: company_name and admin_email are required", utils.ErrInvalidRequest)
	}

	plan := req.Plan
	if plan == "" {
		plan = "starter"
	}

	tenant := &models.Tenant{
		ID:          uuid.NewString(),
		CompanyName: req.CompanyName,
		AdminEmail:  strings.ToLower(req.AdminEmail),
		Plan:        plan,
		Status:      models.TenantStatusActive,
		Settings: models.TenantSettings{
			ProcessingEnabled:      true,
			NotificationsEnabled:   true,
			EmailProcessingEnabled: true,
		},
	}

	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	for _, stage := range storage.Stages {
		namespace := storage.Namespace(tenant.ID, stage)
		if err := s.objects.EnsureNamespace(ctx, namespace); err != nil {
			s.logger.Error(ctx, "failed to provision namespace", map[string]interface{}{
				"tenant_id": tenant.ID,
				"namespace": namespace,
				"error":     err.Error(),
			})
			return nil, fmt.Errorf("provision namespace %s: %w", namespace, err)
		}
	}

	mapping := &models.EmailMapping{
		TenantID:     tenant.ID,
		EmailAddress: s.inboundAddress(tenant.ID, ""),
		Status:       "active",
	}
	if err := s.mappings.Upsert(ctx, mapping); err != nil {
		s.logger.Warn(ctx, "failed to create email mapping", map[string]interface{}{
			"tenant_id": tenant.ID,
			"error":     err.Error(),
		})
	}

	if err := s.audits.Create(ctx, &models.AuditEntry{
		TenantID: tenant.ID,
		Action:   models.AuditActionTenantCreated,
		Details: models.JSON{
			"company_name": tenant.CompanyName,
			"plan":         tenant.Plan,
		},
	}); err != nil {
		s.logger.Warn(ctx, "failed to write audit entry", map[string]interface{}{
			"tenant_id": tenant.ID,
			"error":     err.Error(),
		})
	}

	s.logger.Info(ctx, "tenant created", map[string]interface{}{"tenant_id": tenant.ID})
	return tenant, nil
}

func (s *TenantService) Get(ctx context.Context, id string) (*models.Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

// UpdateSettings applies a partial settings update. Nil pointers leave the
// current value untouched.
func (s *TenantService) UpdateSettings(ctx context.Context, id string, req models.UpdateTenantSettingsRequest) (*models.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ProcessingEnabled != nil {
		tenant.Settings.ProcessingEnabled = *req.ProcessingEnabled
	}
	if req.AutoPayEnabled != nil {
		tenant.Settings.AutoPayEnabled = *req.AutoPayEnabled
	}
	if req.NotificationsEnabled != nil {
		tenant.Settings.NotificationsEnabled = *req.NotificationsEnabled
	}
	if req.EmailProcessingEnabled != nil {
		tenant.Settings.EmailProcessingEnabled = *req.EmailProcessingEnabled
	}
	if req.BankAccountID != nil {
		tenant.Settings.BankAccountID = *req.BankAccountID
	}
	if req.CurrencyCode != nil {
		tenant.Settings.CurrencyCode = strings.ToUpper(*req.CurrencyCode)
	}
	if req.AuthorizedSenders != nil {
		senders := make([]string, 0, len(req.AuthorizedSenders))
		for _, sender := range req.AuthorizedSenders {
			senders = append(senders, strings.ToLower(strings.TrimSpace(sender)))
		}
		tenant.Settings.AuthorizedSenders = senders
	}

	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, fmt.Errorf("update tenant: %w", err)
	}

	if err := s.audits.Create(ctx, &models.AuditEntry{
		TenantID: tenant.ID,
		Action:   models.AuditActionSettingsUpdate,
		Details:  models.JSON{"updated_by": "api"},
	}); err != nil {
		s.logger.Warn(ctx, "failed to write audit entry", map[string]interface{}{
			"tenant_id": tenant.ID,
			"error":     err.Error(),
		})
	}
	return tenant, nil
}

// ConfigureEmailDomain switches a tenant's inbound address to a custom domain,
// or back to the default domain when customDomain is empty.
func (s *TenantService) ConfigureEmailDomain(ctx context.Context, tenantID, customDomain string) (*models.EmailMapping, error) {
	if _, err := s.tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	mapping := &models.EmailMapping{
		ID:           models.EmailMappingID(tenantID),
		TenantID:     tenantID,
		EmailAddress: s.inboundAddress(tenantID, customDomain),
		CustomDomain: customDomain,
		Status:       "active",
	}
	if err := s.mappings.Upsert(ctx, mapping); err != nil {
		return nil, fmt.Errorf("update email mapping: %w", err)
	}
	return mapping, nil
}

func (s *TenantService) inboundAddress(tenantID, customDomain string) string {
	if customDomain != "" {
		return fmt.Sprintf("receipts-%s@%s", tenantID, customDomain)
	}
	return fmt.Sprintf("%s@%s", tenantID, s.emailDomain)
}
