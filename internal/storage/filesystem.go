package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FileSystemStore はローカルディレクトリにオブジェクトを保存するストレージ。
// 保存したファイルはHandlerで読み取り専用に配信する。
type FileSystemStore struct {
	root          string
	publicBaseURL string
}

// NewFileSystemStore はrootを起点とするFileSystemStoreを生成する。
// rootが存在しない場合は作成する。
func NewFileSystemStore(root, publicBaseURL string) (*FileSystemStore, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem storage requires a root directory")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileSystemStore{
		root:          root,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Put はオブジェクトをファイルとして保存し、公開URLを返す。
// 一時ファイルに書き込んでからリネームするため、途中で失敗しても不完全なファイルは残らない。
func (s *FileSystemStore) Put(ctx context.Context, obj Object) (string, error) {
	if !validKey(obj.Key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, obj.Key)
	}

	destPath := filepath.Join(s.root, filepath.FromSlash(obj.Key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, obj.Body)
	if err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if obj.Size >= 0 && written != obj.Size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", obj.Size, written)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return joinURL(s.publicBaseURL, obj.Key), nil
}

// Ping はルートディレクトリがアクセス可能なディレクトリであることを確認する。
func (s *FileSystemStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("storage root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root is not a directory: %s", s.root)
	}
	return nil
}

// Name はバックエンド名を返す。
func (s *FileSystemStore) Name() string {
	return "filesystem"
}

// Handler は保存済みファイルを配信するハンドラーを返す。
// ディレクトリ一覧と一時ファイルは返さない。
func (s *FileSystemStore) Handler() http.Handler {
	fileServer := http.FileServer(http.Dir(s.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p == "" || strings.HasSuffix(p, "/") || strings.HasPrefix(filepath.Base(p), ".") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

var _ ObjectStore = (*FileSystemStore)(nil)
