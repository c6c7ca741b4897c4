// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアカウントの役割を表す。
type Role string

const (
	// RoleSubmitter はファイルを提出するアカウント。
	RoleSubmitter Role = "submitter"
	// RoleReviewer は提出されたレコードを審査するアカウント。
	RoleReviewer Role = "reviewer"
)

// Valid は定義済みのロールかどうかを返す。
func (r Role) Valid() bool {
	return r == RoleSubmitter || r == RoleReviewer
}

// Account はサービス利用アカウントを表す。
// 作成後にロールやメールアドレスが変更されることはない。
type Account struct {
	ID           string
	Email        string // 小文字に正規化済み
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OwnerIdentity はレコード一覧に結合される提出者の表示情報。
type OwnerIdentity struct {
	ID    string
	Name  string
	Email string
}
