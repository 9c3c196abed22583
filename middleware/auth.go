package middleware

import (
	"context"
	"net/http"

	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

type tenantContextKey string

const tenantKey tenantContextKey = "tenant"

// TenantResolver maps an API key to its active tenant.
type TenantResolver interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error)
}

// APIKeyAuth authenticates requests with the X-API-Key header and makes the
// resolved tenant available on the request context.
func APIKeyAuth(resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tenant, err := resolver.GetByAPIKey(r.Context(), apiKey)
			if err != nil || tenant == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), tenantKey, tenant)
			ctx = utils.WithTenantID(ctx, tenant.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFromContext returns the authenticated tenant, or nil on routes that
// skip auth.
func TenantFromContext(ctx context.Context) *models.Tenant {
	tenant, _ := ctx.Value(tenantKey).(*models.Tenant)
	return tenant
}
