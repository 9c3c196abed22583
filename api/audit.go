package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ledgerflowhq/ledgerflow/middleware"
	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/services"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func CreateAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	filter := models.AuditFilter{TenantID: tenant.ID, Limit: 20}
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			filter.Limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil {
			filter.Offset = parsed
		}
	}
	filter.Action = r.URL.Query().Get("action")
	if s := r.URL.Query().Get("start_date"); s != "" {
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			filter.StartDate = &parsed
		}
	}
	if e := r.URL.Query().Get("end_date"); e != "" {
		if parsed, err := time.Parse(time.RFC3339, e); err == nil {
			filter.EndDate = &parsed
		}
	}
	filter.Limit = clampLimit(filter.Limit)

	entries, total, err := h.auditService.List(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}
