// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/recordgate/internal/model"
)

// ErrDuplicateEmail はメールアドレスのユニーク制約違反を表す。
var ErrDuplicateEmail = errors.New("email already exists")

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail は正規化済みメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを作成する。
	// メールアドレスが重複している場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account) error
}

// RecordRepository はレコードデータの永続化インターフェース。
// 作成と状態更新はいずれも単一の文で完結し、トランザクションを必要としない。
type RecordRepository interface {
	// Create はレコードを作成する。
	Create(ctx context.Context, record *model.Record) error

	// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Record, error)

	// ListByOwner は指定アカウントのレコードをcreated_at降順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Record, error)

	// ListAllWithOwner は全レコードを提出者情報とLEFT JOINしてcreated_at降順で返す。
	// 提出者を解決できない行はOwnerがnilになる。
	ListAllWithOwner(ctx context.Context) ([]model.ReviewedRecord, error)

	// UpdateStatus は状態・備考・更新日時を1文で更新し、更新後のレコードと更新前の状態を返す。
	// 見つからない場合はnilを返す。
	UpdateStatus(ctx context.Context, id string, status model.RecordStatus, remarks string, updatedAt time.Time) (*model.Record, model.RecordStatus, error)
}
