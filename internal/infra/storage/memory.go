package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

var ErrPreviewNotFound = errors.New("preview not found")

const DefaultURLPrefix = "/v1/previews/"

// MemoryStore keeps preview bytes in process and serves them under URLPrefix.
type MemoryStore struct {
	urlPrefix string

	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	contentType string
	data        []byte
}

func NewMemory(urlPrefix string) *MemoryStore {
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	return &MemoryStore{urlPrefix: urlPrefix, objects: make(map[string]memObject)}
}

func (m *MemoryStore) Create(_ context.Context, file domain.File) (domain.Preview, error) {
	key := uuid.NewString()
	data := make([]byte, len(file.Data))
	copy(data, file.Data)

	m.mu.Lock()
	m.objects[key] = memObject{contentType: ContentType(file), data: data}
	m.mu.Unlock()

	return domain.Preview{Key: key, URL: m.urlPrefix + key}, nil
}

// Release is idempotent.
func (m *MemoryStore) Release(_ context.Context, p domain.Preview) error {
	m.mu.Lock()
	delete(m.objects, p.Key)
	m.mu.Unlock()
	return nil
}

// Open returns the bytes and content type of a live preview.
func (m *MemoryStore) Open(key string) ([]byte, string, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, "", ErrPreviewNotFound
	}
	return obj.data, obj.contentType, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemoryStore) Check(context.Context) error { return nil }
