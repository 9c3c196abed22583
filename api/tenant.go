package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/services"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

type TenantHandler struct {
	tenantService *services.TenantService
}

func CreateTenantHandler(tenantService *services.TenantService) *TenantHandler {
	return &TenantHandler{
		tenantService: tenantService,
	}
}

func (h *TenantHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	tenant, err := h.tenantService.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, utils.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, tenant)
}

func (h *TenantHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.tenantService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Tenant not found"})
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (h *TenantHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTenantSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	tenant, err := h.tenantService.UpdateSettings(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

type emailDomainRequest struct {
	CustomDomain string `json:"custom_domain"`
}

func (h *TenantHandler) HandleConfigureEmail(w http.ResponseWriter, r *http.Request) {
	var req emailDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	mapping, err := h.tenantService.ConfigureEmailDomain(r.Context(), mux.Vars(r)["id"], req.CustomDomain)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, mapping)
}
