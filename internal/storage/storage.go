// Package storage はアップロードされたファイルのバイト列を保存し、取得用URLを返すオブジェクトストレージを提供する。
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidKey はオブジェクトキーが不正な場合のエラー。
var ErrInvalidKey = errors.New("invalid object key")

// Object は保存するオブジェクトを表す。
// Sizeが負の場合はサイズ不明として扱う。
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
}

// ObjectStore はオブジェクトストレージのインターフェース。
type ObjectStore interface {
	// Put はオブジェクトを保存し、取得用URLを返す。
	Put(ctx context.Context, obj Object) (string, error)
	// Ping はストレージへの疎通を確認する。
	Ping(ctx context.Context) error
	// Name はバックエンド名を返す。
	Name() string
}
