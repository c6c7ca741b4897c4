package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore はプロセス内のマップにオブジェクトを保持するストレージ。
// ローカル開発とテスト用で、再起動すると内容は失われる。
type MemoryStore struct {
	bucket  string
	mu      sync.RWMutex
	objects map[string]MemoryObject
}

// MemoryObject はMemoryStoreに保存されたオブジェクト。
type MemoryObject struct {
	Data        []byte
	ContentType string
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		objects: make(map[string]MemoryObject),
	}
}

// Put はオブジェクトをメモリに保存し、memory://<bucket>/<key> 形式のURLを返す。
func (m *MemoryStore) Put(ctx context.Context, obj Object) (string, error) {
	if !validKey(obj.Key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, obj.Key)
	}

	var buf bytes.Buffer
	written, err := io.Copy(&buf, obj.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read object body: %w", err)
	}
	if obj.Size >= 0 && written != obj.Size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", obj.Size, written)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.objects[obj.Key] = MemoryObject{Data: buf.Bytes(), ContentType: obj.ContentType}
	m.mu.Unlock()

	return fmt.Sprintf("memory://%s/%s", m.bucket, obj.Key), nil
}

// Get は保存済みオブジェクトを返す。
func (m *MemoryStore) Get(key string) (MemoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Len は保存済みオブジェクト数を返す。
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Ping は常に成功する。
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Name はバックエンド名を返す。
func (m *MemoryStore) Name() string {
	return "memory"
}

var _ ObjectStore = (*MemoryStore)(nil)
