package storage

import (
	"context"
	"testing"
)

func TestNamespaceNaming(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageUploads, "tenant-abc-uploads"},
		{StageProcessing, "tenant-abc-processing"},
		{StageJSON, "tenant-abc-json"},
		{StageComplete, "tenant-abc-complete"},
	}
	for _, tt := range tests {
		if got := Namespace("abc", tt.stage); got != tt.want {
			t.Errorf("Namespace(abc, %s) = %q, want %q", tt.stage, got, tt.want)
		}
	}
}

func TestMemoryStoreIsolatesNamespaces(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Put(ctx, "tenant-a-uploads", "r.pdf", []byte("a"), nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "tenant-b-uploads", "r.pdf", []byte("b"), nil); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := store.Get(ctx, "tenant-a-uploads", "r.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "a" {
		t.Errorf("namespace bleed: got %q", data)
	}

	if _, err := store.Get(ctx, "tenant-c-uploads", "r.pdf"); err == nil {
		t.Error("expected miss for unknown namespace")
	}
}

func TestMemoryStoreListSortedWithMetadata(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Put(ctx, "ns", "b.pdf", []byte("xx"), nil)
	store.Put(ctx, "ns", "a.pdf", []byte("x"), map[string]string{"source": "email"})

	objects, err := store.List(ctx, "ns")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(objects))
	}
	if objects[0].Key != "a.pdf" || objects[1].Key != "b.pdf" {
		t.Errorf("expected sorted keys, got %v", objects)
	}
	if objects[0].Size != 1 || objects[0].Metadata["source"] != "email" {
		t.Errorf("unexpected object attributes: %+v", objects[0])
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Put(ctx, "ns", "r.pdf", []byte("x"), nil)
	if err := store.Delete(ctx, "ns", "r.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "ns", "r.pdf"); err == nil {
		t.Error("expected object gone after delete")
	}
}
