// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/recordgate/internal/middleware"
	"github.com/hitoshi/recordgate/internal/model"
)

// maxJSONBodySize はJSONリクエストボディの上限バイト数。
const maxJSONBodySize = 64 << 10

// errTrailingData はJSON値の後に余分なデータが続く場合のエラー。
var errTrailingData = errors.New("unexpected data after JSON body")

// decodeJSONBody はリクエストボディを1つのJSON値としてdstに読み込む。
// 上限超過・構文誤り・後続データがある場合はエラーを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodySize))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err != nil {
			return err
		}
		return errTrailingData
	}
	return nil
}

// accountResponse はアカウント情報のAPIレスポンス。パスワードハッシュは含めない。
type accountResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

// recordResponse はレコード情報のAPIレスポンス。
type recordResponse struct {
	ID          string             `json:"id"`
	OwnerID     string             `json:"owner_id"`
	FileURL     string             `json:"file_url"`
	ContentType string             `json:"content_type"`
	SizeBytes   int64              `json:"size_bytes"`
	Status      model.RecordStatus `json:"status"`
	Remarks     string             `json:"remarks"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ownerResponse はレコードに結合された提出者情報。
type ownerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// reviewedRecordResponse は審査者向け一覧の1行。
// 提出者を解決できない場合はownerがnull、owner_resolvedがfalseになる。
type reviewedRecordResponse struct {
	recordResponse
	Owner         *ownerResponse `json:"owner"`
	OwnerResolved bool           `json:"owner_resolved"`
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

func toRecordResponse(r *model.Record) recordResponse {
	return recordResponse{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		FileURL:     r.FileURL,
		ContentType: r.ContentType,
		SizeBytes:   r.SizeBytes,
		Status:      r.Status,
		Remarks:     r.Remarks,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toReviewedRecordResponse(r model.ReviewedRecord) reviewedRecordResponse {
	resp := reviewedRecordResponse{
		recordResponse: toRecordResponse(&r.Record),
		OwnerResolved:  r.OwnerResolved(),
	}
	if r.Owner != nil {
		resp.Owner = &ownerResponse{
			ID:    r.Owner.ID,
			Name:  r.Owner.Name,
			Email: r.Owner.Email,
		}
	}
	return resp
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// callerFromRequest は認証ミドルウェアが設定したアカウントを取り出す。
// 取り出せない場合は401を書き込みfalseを返す。
func callerFromRequest(w http.ResponseWriter, r *http.Request) (*model.Account, bool) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return nil, false
	}
	return account, true
}

func notFoundError() *model.APIError {
	return &model.APIError{
		Code:     "NOT_FOUND",
		Message:  "指定されたパスは存在しません。",
		Category: "validation",
		Action:   "URLを確認してください。",
	}
}

func methodNotAllowedError() *model.APIError {
	return &model.APIError{
		Code:     "METHOD_NOT_ALLOWED",
		Message:  "このメソッドは使用できません。",
		Category: "validation",
		Action:   "APIの仕様を確認してください。",
	}
}
