package models

import (
	"time"
)

// EmailMapping routes an inbound address to a tenant. One mapping per tenant.
type EmailMapping struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	TenantID     string    `json:"tenant_id" gorm:"uniqueIndex;not null"`
	EmailAddress string    `json:"email_address" gorm:"uniqueIndex;not null"`
	CustomDomain string    `json:"custom_domain,omitempty"`
	Status       string    `json:"status" gorm:"default:'active'"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func EmailMappingID(tenantID string) string {
	return "mapping-" + tenantID
}
