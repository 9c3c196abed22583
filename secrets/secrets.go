package secrets

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned when no value exists under the given name.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore is the credential storage boundary. Token bundles are stored as
// JSON strings keyed "token-{tenant_id}".
type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
	SetSecret(ctx context.Context, name, value string) error
}

// TokenSecretName keys one tenant's cached token bundle.
func TokenSecretName(tenantID string) string {
	return "token-" + tenantID
}
