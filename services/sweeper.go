package services

import (
	"context"

	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/storage"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

// maxSweepPerTenant caps per-tenant work so one run stays bounded in
// wall-clock time.
const maxSweepPerTenant = 5

// SweepTenantSource lists tenants eligible for the reconciliation sweep.
type SweepTenantSource interface {
	ListActiveWithProcessing(ctx context.Context) ([]*models.Tenant, error)
}

// Ingestor re-drives the pipeline for one pending upload.
type Ingestor interface {
	Ingest(ctx context.Context, tenantID, filename string, content []byte, opts IngestOptions) (*models.Receipt, error)
}

// ReconciliationSweeper periodically scans every active tenant's uploads
// namespace for documents the event-driven path missed and re-drives them
// through ingestion. One document's failure never stops the batch.
type ReconciliationSweeper struct {
	tenants  SweepTenantSource
	objects  storage.ObjectStore
	ingestor Ingestor
	logger   *utils.Logger
}

func NewReconciliationSweeper(tenants SweepTenantSource, objects storage.ObjectStore, ingestor Ingestor) *ReconciliationSweeper {
	return &ReconciliationSweeper{
		tenants:  tenants,
		objects:  objects,
		ingestor: ingestor,
		logger:   utils.NewLogger("sweeper"),
	}
}

func (s *ReconciliationSweeper) Run(ctx context.Context) {
	tenants, err := s.tenants.ListActiveWithProcessing(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to list tenants for sweep", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return
		}
		s.sweepTenant(ctx, tenant)
	}
}

func (s *ReconciliationSweeper) sweepTenant(ctx context.Context, tenant *models.Tenant) {
	ctx = utils.WithTenantID(ctx, tenant.ID)
	namespace := storage.Namespace(tenant.ID, storage.StageUploads)

	objects, err := s.objects.List(ctx, namespace)
	if err != nil {
		s.logger.Error(ctx, "failed to list pending uploads", map[string]interface{}{"error": err.Error()})
		return
	}
	if len(objects) == 0 {
		return
	}

	s.logger.Info(ctx, "found pending uploads", map[string]interface{}{"count": len(objects)})

	if len(objects) > maxSweepPerTenant {
		objects = objects[:maxSweepPerTenant]
	}
	for _, obj := range objects {
		content, err := s.objects.Get(ctx, namespace, obj.Key)
		if err != nil {
			s.logger.Error(ctx, "failed to read pending upload", map[string]interface{}{
				"filename": obj.Key,
				"error":    err.Error(),
			})
			continue
		}

		if _, err := s.ingestor.Ingest(ctx, tenant.ID, obj.Key, content, IngestOptions{}); err != nil {
			s.logger.Error(ctx, "failed to process pending upload", map[string]interface{}{
				"filename": obj.Key,
				"error":    err.Error(),
			})
		}
	}
}
