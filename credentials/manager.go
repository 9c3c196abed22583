package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/secrets"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

// ExpirySkew is the safety margin subtracted from a token's expiry so a token
// never expires mid-call.
const ExpirySkew = 300 * time.Second

type ManagerConfig struct {
	TokenURL string
	Timeout  time.Duration
}

// Manager caches per-tenant OAuth token bundles in the secret store and
// refreshes them on demand. Refreshes for the same tenant are single-flighted
// so concurrent invocations cannot race and invalidate each other's token.
type Manager struct {
	tokenURL   string
	store      secrets.SecretStore
	httpClient *http.Client
	group      singleflight.Group
	logger     *utils.Logger

	now func() time.Time
}

func NewManager(config ManagerConfig, store secrets.SecretStore) *Manager {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Manager{
		tokenURL:   config.TokenURL,
		store:      store,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     utils.NewLogger("credentials"),
		now:        time.Now,
	}
}

// Token returns a usable access token for the tenant, refreshing the cached
// bundle when it is missing or within the expiry skew. Any failure maps to
// ErrAuthFailed; the next trigger may retry.
func (m *Manager) Token(ctx context.Context, tenantID string, integration *models.Integration) (string, error) {
	bundle, err := m.readBundle(ctx, tenantID)
	if err == nil && bundle.Usable(m.now(), ExpirySkew) {
		return bundle.AccessToken, nil
	}

	var refreshToken string
	if bundle != nil {
		refreshToken = bundle.RefreshToken
	}
	if refreshToken == "" {
		m.logger.Warn(ctx, "no refresh token available", map[string]interface{}{"tenant_id": tenantID})
		return "", utils.ErrAuthFailed
	}

	token, err, _ := m.group.Do(tenantID, func() (interface{}, error) {
		// Another caller may have refreshed while we waited on the flight.
		if fresh, err := m.readBundle(ctx, tenantID); err == nil && fresh.Usable(m.now(), ExpirySkew) {
			return fresh.AccessToken, nil
		}
		return m.refresh(ctx, tenantID, integration, refreshToken)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (m *Manager) readBundle(ctx context.Context, tenantID string) (*models.TenantCredential, error) {
	raw, err := m.store.GetSecret(ctx, secrets.TokenSecretName(tenantID))
	if err != nil {
		return nil, err
	}
	var bundle models.TenantCredential
	if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (m *Manager) refresh(ctx context.Context, tenantID string, integration *models.Integration, refreshToken string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", utils.ErrAuthFailed
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(integration.ClientID, integration.ClientSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Error(ctx, "token refresh request failed", map[string]interface{}{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
		return "", utils.ErrAuthFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.logger.Error(ctx, "token refresh rejected", map[string]interface{}{
			"tenant_id": tenantID,
			"status":    resp.StatusCode,
		})
		return "", utils.ErrAuthFailed
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", utils.ErrAuthFailed
	}
	if token.AccessToken == "" {
		return "", utils.ErrAuthFailed
	}

	bundle := models.TenantCredential{
		TenantID:     tenantID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    m.now().Unix() + token.ExpiresIn,
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		return "", utils.ErrAuthFailed
	}
	if err := m.store.SetSecret(ctx, secrets.TokenSecretName(tenantID), string(data)); err != nil {
		// The token itself is good; losing the cache write only costs an
		// extra refresh on the next trigger.
		m.logger.Warn(ctx, "failed to persist refreshed token", map[string]interface{}{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
	}
	return token.AccessToken, nil
}
