package objectstore

import (
	"context"
	"strings"
	"sync"
)

// memoryObject holds an uploaded blob for inspection in tests.
type memoryObject struct {
	Data        []byte
	ContentType string
}

// MemoryProvider is an in-memory Provider for tests and dry runs.
type MemoryProvider struct {
	mu      sync.Mutex
	objects map[string]memoryObject
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{objects: make(map[string]memoryObject)}
}

func (m *MemoryProvider) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix, wildcard := splitWildcard(key)
	if !wildcard {
		_, ok := m.objects[prefix]
		return ok, nil
	}
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryProvider) Upload(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[key] = memoryObject{Data: cp, ContentType: contentType}
	return nil
}

func (m *MemoryProvider) Close() error { return nil }

// Len reports how many objects have been uploaded.
func (m *MemoryProvider) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Get returns a stored object's bytes and content type.
func (m *MemoryProvider) Get(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj.Data, obj.ContentType, ok
}
