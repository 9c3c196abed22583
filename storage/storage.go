package storage

import (
	"context"
	"fmt"
)

// Stage is one step of a document's storage lifecycle. Each tenant gets one
// namespace per stage.
type Stage string

const (
	StageUploads    Stage = "uploads"
	StageProcessing Stage = "processing"
	StageJSON       Stage = "json"
	StageComplete   Stage = "complete"
)

// Stages lists every namespace provisioned for a tenant.
var Stages = []Stage{StageUploads, StageProcessing, StageJSON, StageComplete}

// Namespace builds the container name for one tenant and stage.
func Namespace(tenantID string, stage Stage) string {
	return fmt.Sprintf("tenant-%s-%s", tenantID, stage)
}

type Object struct {
	Key      string
	Size     int64
	Metadata map[string]string
}

// ObjectStore is the blob storage boundary: a key-value byte store with
// container-scoped namespaces.
type ObjectStore interface {
	Put(ctx context.Context, namespace, key string, data []byte, metadata map[string]string) error
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Delete(ctx context.Context, namespace, key string) error
	List(ctx context.Context, namespace string) ([]Object, error)
	EnsureNamespace(ctx context.Context, namespace string) error
}
