package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/notify"
	"github.com/ledgerflowhq/ledgerflow/storage"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

// supportedExtensions lists attachment types the extractor can read.
var supportedExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".tiff": true, ".heif": true, ".docx": true, ".xlsx": true, ".pptx": true,
	".html": true,
}

// MappingSource resolves an inbound address to its tenant mapping.
type MappingSource interface {
	GetByAddress(ctx context.Context, address string) (*models.EmailMapping, error)
}

// EmailTenantSource loads tenants for sender authorization checks.
type EmailTenantSource interface {
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
}

// InboundEmail is the webhook payload: a raw RFC822 message.
type InboundEmail struct {
	Body string `json:"body"`
}

type emailAttachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

// EmailIngestService validates and deduplicates inbound email submissions,
// stores their attachments in the tenant's uploads namespace, and feeds them
// through the same ingestion path as direct uploads.
type EmailIngestService struct {
	mappings MappingSource
	tenants  EmailTenantSource
	objects  storage.ObjectStore
	ingestor Ingestor
	deduper  Deduper
	mailer   notify.Mailer
	logger   *utils.Logger

	now func() time.Time
}

func NewEmailIngestService(mappings MappingSource, tenants EmailTenantSource, objects storage.ObjectStore, ingestor Ingestor, deduper Deduper, mailer notify.Mailer) *EmailIngestService {
	return &EmailIngestService{
		mappings: mappings,
		tenants:  tenants,
		objects:  objects,
		ingestor: ingestor,
		deduper:  deduper,
		mailer:   mailer,
		logger:   utils.NewLogger("email"),
		now:      time.Now,
	}
}

// ProcessInbound handles one email webhook delivery. It returns the number of
// attachments successfully processed; a single attachment's failure does not
// abort its siblings.
//
// The dedup marker is claimed up front so concurrent deliveries of the same
// message race to a single winner, but it is released again unless at least
// one attachment lands. Redelivery is the only retry an email has.
func (s *EmailIngestService) ProcessInbound(ctx context.Context, payload InboundEmail) (processed int, err error) {
	msg, err := mail.ReadMessage(strings.NewReader(payload.Body))
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable message", utils.ErrInvalidRequest)
	}

	from := extractAddress(msg.Header.Get("From"))
	to := extractAddress(msg.Header.Get("To"))
	subject := msg.Header.Get("Subject")
	messageID := msg.Header.Get("Message-ID")

	s.logger.Info(ctx, "processing inbound email", map[string]interface{}{"from": from, "to": to})

	hash := sha256.Sum256([]byte(messageID + from))
	dedupeKey := hex.EncodeToString(hash[:])
	marked := false
	seen, dedupeErr := s.deduper.MarkSeen(ctx, dedupeKey)
	if dedupeErr != nil {
		s.logger.Warn(ctx, "dedup check failed, continuing", map[string]interface{}{"error": dedupeErr.Error()})
	} else if seen {
		s.logger.Info(ctx, "email already processed", nil)
		return 0, nil
	} else {
		marked = true
	}
	defer func() {
		if processed == 0 && marked {
			if forgetErr := s.deduper.Forget(ctx, dedupeKey); forgetErr != nil {
				s.logger.Warn(ctx, "failed to release dedup marker", map[string]interface{}{"error": forgetErr.Error()})
			}
		}
	}()

	mapping, err := s.mappings.GetByAddress(ctx, to)
	if err != nil {
		return 0, fmt.Errorf("lookup email mapping: %w", err)
	}
	if mapping == nil {
		s.sendError(ctx, from, "Email address not registered")
		return 0, fmt.Errorf("%w: no tenant for address %s", utils.ErrNotFound, to)
	}

	tenant, err := s.tenants.GetByID(ctx, mapping.TenantID)
	if err != nil {
		return 0, fmt.Errorf("load tenant: %w", err)
	}
	if !tenant.Settings.EmailProcessingEnabled {
		s.sendError(ctx, from, "Email processing is disabled for this account")
		return 0, fmt.Errorf("%w: email processing disabled", utils.ErrProcessingDisabled)
	}
	if !s.senderAuthorized(tenant, from) {
		s.sendError(ctx, from, "Sender not authorized for this account")
		return 0, fmt.Errorf("%w: sender %s not authorized", utils.ErrUnauthorized, from)
	}

	attachments, err := extractAttachments(msg)
	if err != nil || len(attachments) == 0 {
		s.sendError(ctx, from, "No valid receipt attachments found")
		return 0, fmt.Errorf("%w: no valid attachments", utils.ErrInvalidRequest)
	}

	for _, attachment := range attachments {
		if err := s.processAttachment(ctx, tenant.ID, attachment, from, subject); err != nil {
			s.logger.Error(ctx, "attachment processing failed", map[string]interface{}{
				"filename": attachment.Filename,
				"error":    err.Error(),
			})
			continue
		}
		processed++
	}

	if processed > 0 && tenant.Settings.NotificationsEnabled {
		s.sendConfirmation(ctx, from, processed, subject)
	}

	s.logger.Info(ctx, "inbound email processed", map[string]interface{}{
		"processed": processed,
		"total":     len(attachments),
	})
	return processed, nil
}

func (s *EmailIngestService) senderAuthorized(tenant *models.Tenant, sender string) bool {
	if strings.EqualFold(tenant.AdminEmail, sender) {
		return true
	}
	for _, authorized := range tenant.Settings.AuthorizedSenders {
		if strings.EqualFold(authorized, sender) {
			return true
		}
	}
	return false
}

func (s *EmailIngestService) processAttachment(ctx context.Context, tenantID string, attachment emailAttachment, sender, subject string) error {
	senderHash := sha256.Sum256([]byte(sender))
	safeName := fmt.Sprintf("email_%s_%s_%s",
		s.now().UTC().Format("20060102_150405"),
		hex.EncodeToString(senderHash[:])[:8],
		attachment.Filename)

	namespace := storage.Namespace(tenantID, storage.StageUploads)
	metadata := map[string]string{
		"source":            "email",
		"sender":            sender,
		"subject":           subject,
		"original_filename": attachment.Filename,
		"received_at":       s.now().UTC().Format(time.RFC3339),
	}
	if err := s.objects.Put(ctx, namespace, safeName, attachment.Content, metadata); err != nil {
		return fmt.Errorf("store attachment: %w", err)
	}

	_, err := s.ingestor.Ingest(ctx, tenantID, safeName, attachment.Content, IngestOptions{
		Origin:      models.ReceiptOriginEmail,
		SenderEmail: sender,
		Subject:     subject,
	})
	return err
}

func (s *EmailIngestService) sendConfirmation(ctx context.Context, recipient string, count int, subject string) {
	body := fmt.Sprintf(
		"<html><body><h2>Receipt Received</h2>"+
			"<p>%d attachment(s) from %q were received and are being processed. "+
			"Each receipt will be extracted and filed as a draft bill in your ledger.</p>"+
			"</body></html>", count, subject)
	if err := s.mailer.Send(ctx, recipient, "Receipt Processed - "+subject, body); err != nil {
		s.logger.Warn(ctx, "failed to send confirmation email", map[string]interface{}{"error": err.Error()})
	}
}

func (s *EmailIngestService) sendError(ctx context.Context, recipient, message string) {
	body := fmt.Sprintf(
		"<html><body><h2>Receipt Processing Error</h2><p>%s</p>"+
			"<p>Supported formats: PDF, JPG, PNG, BMP, TIFF, DOCX, XLSX, PPTX and HTML. "+
			"Make sure you are sending from an authorized address.</p>"+
			"</body></html>", message)
	if err := s.mailer.Send(ctx, recipient, "Receipt Processing Error", body); err != nil {
		s.logger.Warn(ctx, "failed to send error email", map[string]interface{}{"error": err.Error()})
	}
}

// extractAddress pulls the bare address out of a header like
// `Name <user@example.com>`.
func extractAddress(header string) string {
	if addr, err := mail.ParseAddress(header); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(header))
}

// extractAttachments walks the MIME tree collecting attachment parts with
// supported extensions.
func extractAttachments(msg *mail.Message) ([]emailAttachment, error) {
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, nil
	}
	return walkParts(multipart.NewReader(msg.Body, params["boundary"]))
}

func walkParts(reader *multipart.Reader) ([]emailAttachment, error) {
	var attachments []emailAttachment

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return attachments, err
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err == nil && strings.HasPrefix(mediaType, "multipart/") {
			nested, err := walkParts(multipart.NewReader(part, params["boundary"]))
			if err != nil {
				return attachments, err
			}
			attachments = append(attachments, nested...)
			continue
		}

		filename := part.FileName()
		if filename == "" {
			continue
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(filename))] {
			continue
		}

		content, err := io.ReadAll(part)
		if err != nil {
			continue
		}
		if strings.EqualFold(part.Header.Get("Content-Transfer-Encoding"), "base64") {
			cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(content))
			decoded, err := base64.StdEncoding.DecodeString(cleaned)
			if err == nil {
				content = decoded
			}
		}
		if len(content) == 0 {
			continue
		}

		attachments = append(attachments, emailAttachment{
			Filename:    filename,
			Content:     content,
			ContentType: mediaType,
		})
	}
	return attachments, nil
}
