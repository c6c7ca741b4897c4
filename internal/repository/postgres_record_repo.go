package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/recordgate/internal/model"
)

// PostgresRecordRepo はPostgreSQLを使用したレコードリポジトリ。
type PostgresRecordRepo struct {
	db *sql.DB
}

// NewPostgresRecordRepo はPostgresRecordRepoを生成する。
func NewPostgresRecordRepo(db *sql.DB) *PostgresRecordRepo {
	return &PostgresRecordRepo{db: db}
}

const recordColumns = `r.id, r.owner_id, r.file_url, r.storage_key, r.content_type, r.size_bytes,
	r.status, r.remarks, r.created_at, r.updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// Create はレコードを作成する。
func (r *PostgresRecordRepo) Create(ctx context.Context, record *model.Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO records
		   (id, owner_id, file_url, storage_key, content_type, size_bytes, status, remarks, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.OwnerID, record.FileURL, record.StorageKey, record.ContentType,
		record.SizeBytes, string(record.Status), record.Remarks, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
func (r *PostgresRecordRepo) FindByID(ctx context.Context, id string) (*model.Record, error) {
	record := &model.Record{}
	err := scanRecord(r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records r WHERE r.id = $1`,
		id,
	), record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record: %w", err)
	}
	return record, nil
}

// ListByOwner は指定アカウントのレコードをcreated_at降順で返す。
func (r *PostgresRecordRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+`
		 FROM records r
		 WHERE r.owner_id = $1
		 ORDER BY r.created_at DESC, r.id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records by owner: %w", err)
	}
	defer rows.Close()

	records := make([]*model.Record, 0)
	for rows.Next() {
		record := &model.Record{}
		if err := scanRecord(rows, record); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// ListAllWithOwner は全レコードを提出者情報とLEFT JOINしてcreated_at降順で返す。
func (r *PostgresRecordRepo) ListAllWithOwner(ctx context.Context) ([]model.ReviewedRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+`, a.id, a.name, a.email
		 FROM records r
		 LEFT JOIN accounts a ON a.id = r.owner_id
		 ORDER BY r.created_at DESC, r.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	results := make([]model.ReviewedRecord, 0)
	for rows.Next() {
		var (
			rr                          model.ReviewedRecord
			ownerID, ownerName, ownerEm sql.NullString
		)
		if err := rows.Scan(
			&rr.ID, &rr.OwnerID, &rr.FileURL, &rr.StorageKey, &rr.ContentType, &rr.SizeBytes,
			&rr.Status, &rr.Remarks, &rr.CreatedAt, &rr.UpdatedAt,
			&ownerID, &ownerName, &ownerEm,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record with owner: %w", err)
		}
		if ownerID.Valid {
			rr.Owner = &model.OwnerIdentity{
				ID:    ownerID.String,
				Name:  ownerName.String,
				Email: ownerEm.String,
			}
		}
		results = append(results, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return results, nil
}

// UpdateStatus は状態・備考・更新日時を1文で更新し、更新後のレコードと更新前の状態を返す。
// FROM句の自己結合は文開始時点のスナップショットを参照するため、prev.statusは更新前の値になる。
func (r *PostgresRecordRepo) UpdateStatus(ctx context.Context, id string, status model.RecordStatus, remarks string, updatedAt time.Time) (*model.Record, model.RecordStatus, error) {
	record := &model.Record{}
	var previous string
	err := r.db.QueryRowContext(ctx,
		`UPDATE records r
		 SET status = $2, remarks = $3, updated_at = $4
		 FROM records prev
		 WHERE r.id = $1 AND prev.id = r.id
		 RETURNING `+recordColumns+`, prev.status`,
		id, string(status), remarks, updatedAt,
	).Scan(
		&record.ID, &record.OwnerID, &record.FileURL, &record.StorageKey, &record.ContentType,
		&record.SizeBytes, &record.Status, &record.Remarks, &record.CreatedAt, &record.UpdatedAt,
		&previous,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to update record status: %w", err)
	}
	return record, model.RecordStatus(previous), nil
}

// scanRecord は1行をRecordに読み込む。
func scanRecord(row rowScanner, record *model.Record) error {
	return row.Scan(
		&record.ID, &record.OwnerID, &record.FileURL, &record.StorageKey, &record.ContentType,
		&record.SizeBytes, &record.Status, &record.Remarks, &record.CreatedAt, &record.UpdatedAt,
	)
}

// compile-time interface check
var _ RecordRepository = (*PostgresRecordRepo)(nil)
