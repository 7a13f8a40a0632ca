package blob

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Memory is an in-memory Store for tests and the dev profile.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memObject
}

type memObject struct {
	contentType string
	bytes       []byte
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: map[string]memObject{}}
}

func (m *Memory) Put(ctx context.Context, key, contentType string, r io.Reader) (Info, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	m.mu.Lock()
	m.data[key] = memObject{contentType: contentType, bytes: b}
	m.mu.Unlock()
	return Info{Key: key, ContentType: contentType, Size: int64(len(b))}, nil
}

func (m *Memory) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.RLock()
	obj, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, "", ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(obj.bytes)), obj.contentType, nil
}

func (m *Memory) Stat(ctx context.Context, key string) (Info, error) {
	m.mu.RLock()
	obj, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return Info{}, ErrNotExist
	}
	return Info{Key: key, ContentType: obj.contentType, Size: int64(len(obj.bytes))}, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return ErrNotExist
	}
	delete(m.data, key)
	return nil
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
