package model

import "time"

// RecordStatus はレコードの審査状態を表す。
type RecordStatus string

const (
	// RecordStatusPending はアップロード直後の審査待ち状態。
	RecordStatusPending RecordStatus = "pending"
	// RecordStatusApproved は承認済み状態。
	RecordStatusApproved RecordStatus = "approved"
	// RecordStatusRejected は却下済み状態。
	RecordStatusRejected RecordStatus = "rejected"
)

// Valid は定義済みの状態かどうかを返す。
func (s RecordStatus) Valid() bool {
	switch s {
	case RecordStatusPending, RecordStatusApproved, RecordStatusRejected:
		return true
	}
	return false
}

// IsTerminal は審査者が設定できる終端状態（approved / rejected）かどうかを返す。
func (s RecordStatus) IsTerminal() bool {
	return s == RecordStatusApproved || s == RecordStatusRejected
}

// Record は提出されたファイルとその審査状態を表す。
type Record struct {
	ID          string
	OwnerID     string
	FileURL     string // オブジェクトストレージ上の取得用URL
	StorageKey  string
	ContentType string
	SizeBytes   int64
	Status      RecordStatus
	Remarks     string // 未指定の場合は空文字列
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReviewedRecord は審査者向け一覧の1行。
// Ownerは読み取り時に結合され、提出者を解決できなかった場合はnilになる。
type ReviewedRecord struct {
	Record
	Owner *OwnerIdentity
}

// OwnerResolved は提出者情報が解決できたかどうかを返す。
func (r ReviewedRecord) OwnerResolved() bool {
	return r.Owner != nil
}
