package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/secrets"
	"github.com/ledgerflowhq/ledgerflow/stores"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

type IntegrationHandler struct {
	integrations *stores.IntegrationStore
	audits       *stores.AuditStore
	secretStore  secrets.SecretStore
	logger       *utils.Logger
}

func CreateIntegrationHandler(integrations *stores.IntegrationStore, audits *stores.AuditStore, secretStore secrets.SecretStore) *IntegrationHandler {
	return &IntegrationHandler{
		integrations: integrations,
		audits:       audits,
		secretStore:  secretStore,
		logger:       utils.NewLogger("integration"),
	}
}

type connectRequest struct {
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret"`
	LedgerTenantID string `json:"ledger_tenant_id"`
	RefreshToken   string `json:"refresh_token"`
}

// HandleConnect stores a tenant's ledger app credentials and seeds the token
// bundle so the next sync can refresh its way to a usable access token.
func (h *IntegrationHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	tenant := authorizedTenant(r)
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.ClientID == "" || req.ClientSecret == "" || req.LedgerTenantID == "" || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "client_id, client_secret, ledger_tenant_id and refresh_token are required"})
		return
	}

	integration := &models.Integration{
		ID:             models.IntegrationID(tenant.ID),
		TenantID:       tenant.ID,
		ClientID:       req.ClientID,
		ClientSecret:   req.ClientSecret,
		LedgerTenantID: req.LedgerTenantID,
		Status:         "connected",
		ConnectedAt:    time.Now().UTC(),
	}
	if err := h.integrations.Upsert(r.Context(), integration); err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	// Expiry zero forces a refresh on first use.
	bundle, err := json.Marshal(models.TenantCredential{
		TenantID:     tenant.ID,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.secretStore.SetSecret(r.Context(), secrets.TokenSecretName(tenant.ID), string(bundle)); err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.audits.Create(r.Context(), &models.AuditEntry{
		TenantID: tenant.ID,
		Action:   models.AuditActionLedgerConnect,
		Details:  models.JSON{"ledger_tenant_id": req.LedgerTenantID},
	}); err != nil {
		h.logger.Warn(r.Context(), "failed to write audit entry", map[string]interface{}{"error": err.Error()})
	}

	writeJSON(w, http.StatusOK, integration)
}

func (h *IntegrationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tenant := authorizedTenant(r)
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	integration, err := h.integrations.GetByTenant(r.Context(), tenant.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if integration == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "No ledger integration configured"})
		return
	}
	writeJSON(w, http.StatusOK, integration)
}

func (h *IntegrationHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	tenant := authorizedTenant(r)
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	if err := h.integrations.Delete(r.Context(), tenant.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}
