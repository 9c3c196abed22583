package api

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ledgerflowhq/ledgerflow/services"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

// maxInboundEmailSize bounds one webhook delivery, attachments included.
const maxInboundEmailSize = 35 << 20

type EmailWebhookHandler struct {
	emailService *services.EmailIngestService
	webhookToken string
	logger       *utils.Logger
}

func CreateEmailWebhookHandler(emailService *services.EmailIngestService, webhookToken string) *EmailWebhookHandler {
	return &EmailWebhookHandler{
		emailService: emailService,
		webhookToken: webhookToken,
		logger:       utils.NewLogger("email-webhook"),
	}
}

// HandleInbound receives one email from the inbound mail provider. The
// provider authenticates with a shared token; per-tenant authorization happens
// inside the email service against the sender address.
func (h *EmailWebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if h.webhookToken != "" {
		token := r.Header.Get("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInboundEmailSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Failed to read body"})
		return
	}

	var payload services.InboundEmail
	if err := json.Unmarshal(body, &payload); err != nil || payload.Body == "" {
		// Some providers post the raw RFC822 message instead of JSON.
		payload = services.InboundEmail{Body: string(body)}
	}

	processed, err := h.emailService.ProcessInbound(r.Context(), payload)
	if err != nil {
		h.logger.Warn(r.Context(), "inbound email rejected", map[string]interface{}{"error": err.Error()})
		// 200 keeps the provider from redelivering a permanently bad message.
		writeJSON(w, http.StatusOK, map[string]interface{}{"processed": 0, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"processed": processed})
}
