package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ledgerflowhq/ledgerflow/middleware"
	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/services"
	"github.com/ledgerflowhq/ledgerflow/storage"
	"github.com/ledgerflowhq/ledgerflow/stores"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

// maxUploadSize caps a single receipt document at 20 MB.
const maxUploadSize = 20 << 20

type ReceiptHandler struct {
	receipts  *stores.ReceiptStore
	ingestion *services.IngestionService
	objects   storage.ObjectStore
}

func CreateReceiptHandler(receipts *stores.ReceiptStore, ingestion *services.IngestionService, objects storage.ObjectStore) *ReceiptHandler {
	return &ReceiptHandler{
		receipts:  receipts,
		ingestion: ingestion,
		objects:   objects,
	}
}

// authorizedTenant returns the authenticated tenant when it matches the
// tenant id in the path. Keys never reach across tenants.
func authorizedTenant(r *http.Request) *models.Tenant {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		return nil
	}
	if id, ok := mux.Vars(r)["id"]; ok && id != tenant.ID {
		return nil
	}
	return tenant
}

// HandleUpload accepts one multipart document and runs it through the
// pipeline synchronously.
func (h *ReceiptHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	tenant := authorizedTenant(r)
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid multipart body"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing file field"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Failed to read file"})
		return
	}

	// The source document lands in the uploads namespace before the pipeline
	// touches it. A crash mid-pipeline leaves it there for the next sweep.
	namespace := storage.Namespace(tenant.ID, storage.StageUploads)
	metadata := map[string]string{"source": "upload", "original_filename": header.Filename}
	if err := h.objects.Put(r.Context(), namespace, header.Filename, content, metadata); err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to store document"})
		return
	}

	receipt, err := h.ingestion.Ingest(r.Context(), tenant.ID, header.Filename, content, services.IngestOptions{})
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrProcessingDisabled):
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Processing is disabled for this account"})
		case errors.Is(err, utils.ErrExtractionFailed):
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "Could not extract receipt data"})
		default:
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

func (h *ReceiptHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tenant := authorizedTenant(r)
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	filter := models.ReceiptFilter{TenantID: tenant.ID, Limit: 20}
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
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = models.ReceiptStatus(s)
	}
	filter.Limit = clampLimit(filter.Limit)

	receipts, total, err := h.receipts.List(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"receipts": receipts,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (h *ReceiptHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tenant := authorizedTenant(r)
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	receipt, err := h.receipts.GetByID(r.Context(), tenant.ID, mux.Vars(r)["receiptID"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Receipt not found"})
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// HandleStatus summarizes the tenant's receipts by pipeline state.
func (h *ReceiptHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	tenant := authorizedTenant(r)
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	status, err := h.receipts.CountByStatus(r.Context(), tenant.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}
