package models

import (
	"time"
)

// Integration holds one tenant's connection to the external ledger. The
// record's absence means the tenant never connected, which the sync engine
// treats as a benign no-op.
type Integration struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	TenantID       string    `json:"tenant_id" gorm:"uniqueIndex;not null"`
	ClientID       string    `json:"client_id" gorm:"not null"`
	ClientSecret   string    `json:"-" gorm:"not null"`
	LedgerTenantID string    `json:"ledger_tenant_id" gorm:"not null"`
	Status         string    `json:"status" gorm:"default:'connected'"`
	ConnectedAt    time.Time `json:"connected_at"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func IntegrationID(tenantID string) string {
	return "ledger-" + tenantID
}

// TenantCredential is the cached OAuth token bundle for one tenant. It lives
// in the secret store as JSON, not in the record store.
type TenantCredential struct {
	TenantID     string `json:"tenant_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Usable reports whether the access token is still safe to use given the
// expiry skew margin.
func (c *TenantCredential) Usable(now time.Time, skew time.Duration) bool {
	return c.AccessToken != "" && now.Unix() < c.ExpiresAt-int64(skew.Seconds())
}
