package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memObject struct {
	data     []byte
	metadata map[string]string
}

// MemoryStore is an in-process ObjectStore used by tests.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]memObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{namespaces: make(map[string]map[string]memObject)}
}

func (s *MemoryStore) Put(ctx context.Context, namespace, key string, data []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]memObject)
		s.namespaces[namespace] = ns
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	ns[key] = memObject{data: buf, metadata: metadata}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.namespaces[namespace][key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", namespace, key)
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, nil
}

func (s *MemoryStore) Delete(ctx context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return fmt.Errorf("namespace %s not found", namespace)
	}
	delete(ns, key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, namespace string) ([]Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var objects []Object
	for key, obj := range s.namespaces[namespace] {
		objects = append(objects, Object{
			Key:      key,
			Size:     int64(len(obj.data)),
			Metadata: obj.metadata,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *MemoryStore) EnsureNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.namespaces[namespace]; !ok {
		s.namespaces[namespace] = make(map[string]memObject)
	}
	return nil
}
