package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/recordgate/internal/middleware"
	"github.com/hitoshi/recordgate/internal/model"
	"github.com/hitoshi/recordgate/internal/workflow"
)

// uploadFieldName はアップロードファイルを受け取るmultipartフィールド名。
const uploadFieldName = "file"

// multipartOverhead はmultipartの境界やヘッダーのために許容する追加バイト数。
const multipartOverhead = 64 << 10

// RecordServiceInterface はレコードハンドラーが必要とするサービスインターフェース。
type RecordServiceInterface interface {
	Upload(ctx context.Context, caller *model.Account, upload workflow.FileUpload) (*model.Record, error)
	ListOwn(ctx context.Context, caller *model.Account) ([]*model.Record, error)
	ListAll(ctx context.Context, caller *model.Account) ([]model.ReviewedRecord, error)
	Transition(ctx context.Context, caller *model.Account, input workflow.TransitionInput) (*model.Record, error)
}

// RecordHandler はレコードの提出・一覧・審査のHTTPハンドラー。
type RecordHandler struct {
	service       RecordServiceInterface
	maxUploadSize int64
}

// NewRecordHandler はRecordHandlerを生成する。maxUploadSizeが0以下の場合はボディサイズを制限しない。
func NewRecordHandler(service RecordServiceInterface, maxUploadSize int64) *RecordHandler {
	return &RecordHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

type recordEnvelope struct {
	Record recordResponse `json:"record"`
}

type recordListResponse struct {
	Records []recordResponse `json:"records"`
}

type reviewedRecordListResponse struct {
	Records []reviewedRecordResponse `json:"records"`
}

// transitionRequest は審査状態更新リクエストのボディ。
// remarksの未指定とnullはどちらも空文字列として扱う。
type transitionRequest struct {
	Status  string  `json:"status"`
	Remarks *string `json:"remarks"`
}

// Upload はmultipartのfileフィールドを受け取りレコードを作成する。
// POST /records
func (h *RecordHandler) Upload(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	// ロール不一致はボディを読む前に弾く
	if err := workflow.Require(caller, model.RoleSubmitter); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	}

	part, err := findFilePart(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteAPIError(w, model.NewFileTooLargeError(h.maxUploadSize))
			return
		}
		slog.Debug("upload without file part", slog.String("error", err.Error()))
		middleware.WriteAPIError(w, model.NewNoFileError())
		return
	}
	defer part.Close()

	record, err := h.service.Upload(r.Context(), caller, workflow.FileUpload{
		Reader:      part,
		Size:        -1,
		ContentType: part.Header.Get("Content-Type"),
		Filename:    part.FileName(),
	})
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteAPIError(w, model.NewFileTooLargeError(h.maxUploadSize))
			return
		}
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, recordEnvelope{Record: toRecordResponse(record)})
}

var errNoFilePart = errors.New("no file part in multipart body")

// findFilePart はmultipartボディを先頭から読み、fileフィールドのパートを返す。
// ボディ全体をメモリや一時ファイルに展開せず、パートをそのままストリームとして渡す。
func findFilePart(r *http.Request) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadFieldName && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// ListMine は呼び出し元が提出したレコードを新しい順に返す。
// GET /records/mine
func (h *RecordHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	records, err := h.service.ListOwn(r.Context(), caller)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := recordListResponse{Records: make([]recordResponse, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, toRecordResponse(rec))
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// ListAll は全レコードを提出者情報付きで新しい順に返す。
// GET /records
func (h *RecordHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	records, err := h.service.ListAll(r.Context(), caller)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := reviewedRecordListResponse{Records: make([]reviewedRecordResponse, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, toReviewedRecordResponse(rec))
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// UpdateStatus はレコードの審査状態を更新する。
// PATCH /records/{id}
func (h *RecordHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	if err := workflow.Require(caller, model.RoleReviewer); err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req transitionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	record, err := h.service.Transition(r.Context(), caller, workflow.TransitionInput{
		RecordID: chi.URLParam(r, "id"),
		Status:   req.Status,
		Remarks:  req.Remarks,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, recordEnvelope{Record: toRecordResponse(record)})
}
