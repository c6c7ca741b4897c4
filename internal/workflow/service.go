// Package workflow は提出物レコードの審査ワークフローを提供する。
// ロールによる操作制限、状態遷移、一覧取得、ファイル受け付けを扱う。
package workflow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/recordgate/internal/metrics"
	"github.com/hitoshi/recordgate/internal/model"
	"github.com/hitoshi/recordgate/internal/repository"
	"github.com/hitoshi/recordgate/internal/storage"
)

// ServiceConfig はワークフローサービスの設定。
type ServiceConfig struct {
	StoragePrefix string
	MaxUploadSize int64 // 0以下は無制限
}

// FileUpload はアップロードされたファイル。
// Sizeが負の場合はサイズ不明として扱う。
type FileUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// TransitionInput は審査状態の更新入力。
type TransitionInput struct {
	RecordID string
	Status   string
	Remarks  *string
}

// Service は審査ワークフローのサービス層。
type Service struct {
	records repository.RecordRepository
	store   storage.ObjectStore
	config  ServiceConfig
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。collectorはnilでもよい。
func NewService(
	records repository.RecordRepository,
	store storage.ObjectStore,
	config ServiceConfig,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		records: records,
		store:   store,
		config:  config,
		metrics: collector,
		now:     time.Now,
	}
}

// Require は呼び出し元が指定ロールを持つことを確認する。
// 呼び出し元がない場合はUNAUTHORIZED、ロールが異なる場合はFORBIDDENを返す。
func Require(caller *model.Account, role model.Role) error {
	if caller == nil {
		return model.NewUnauthorizedError()
	}
	if caller.Role != role {
		return model.NewForbiddenError(role)
	}
	return nil
}

// Upload はファイルをオブジェクトストレージに保存し、pending状態のレコードを作成する。
// ストレージへの保存に失敗した場合はレコードを作成しない。
func (s *Service) Upload(ctx context.Context, caller *model.Account, upload FileUpload) (*model.Record, error) {
	if err := Require(caller, model.RoleSubmitter); err != nil {
		return nil, err
	}

	if upload.Reader == nil || upload.Size == 0 {
		s.recordUploadFailure(metrics.UploadFailureNoFile)
		return nil, model.NewNoFileError()
	}
	if s.config.MaxUploadSize > 0 && upload.Size > s.config.MaxUploadSize {
		s.recordUploadFailure(metrics.UploadFailureTooLarge)
		return nil, model.NewFileTooLargeError(s.config.MaxUploadSize)
	}

	br := bufio.NewReaderSize(upload.Reader, storage.SniffLen)
	head, err := br.Peek(storage.SniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("アップロードファイルの読み込みに失敗しました: %w", err)
	}
	if len(head) == 0 {
		s.recordUploadFailure(metrics.UploadFailureNoFile)
		return nil, model.NewNoFileError()
	}

	contentType := storage.ResolveContentType(upload.ContentType, head)
	kind := storage.KindOf(contentType)
	now := s.now()
	key := storage.ObjectKey(s.config.StoragePrefix, kind, now, uuid.New().String(), upload.Filename)

	body := &countingReader{r: br}
	if s.config.MaxUploadSize > 0 {
		body.limit = s.config.MaxUploadSize
	}

	url, err := s.store.Put(ctx, storage.Object{
		Key:         key,
		Body:        body,
		Size:        upload.Size,
		ContentType: contentType,
	})
	if err != nil && (errors.Is(err, errUploadTooLarge) || body.exceeded()) {
		s.recordUploadFailure(metrics.UploadFailureTooLarge)
		return nil, model.NewFileTooLargeError(s.config.MaxUploadSize)
	}
	if err != nil {
		slog.Error("failed to store uploaded file",
			slog.String("account_id", caller.ID),
			slog.String("backend", s.store.Name()),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		s.recordUploadFailure(metrics.UploadFailureStorage)
		return nil, model.NewStorageFailedError()
	}

	record := &model.Record{
		ID:          uuid.New().String(),
		OwnerID:     caller.ID,
		FileURL:     url,
		StorageKey:  key,
		ContentType: contentType,
		SizeBytes:   body.n,
		Status:      model.RecordStatusPending,
		Remarks:     "",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.records.Create(ctx, record); err != nil {
		// 保存済みオブジェクトは参照されないまま残る
		slog.Warn("stored object left without record",
			slog.String("key", key),
			slog.String("backend", s.store.Name()),
		)
		s.recordUploadFailure(metrics.UploadFailureDatabase)
		return nil, fmt.Errorf("レコードの作成に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordUpload(string(kind), record.SizeBytes)
	}
	slog.Info("record submitted",
		slog.String("record_id", record.ID),
		slog.String("account_id", caller.ID),
		slog.String("kind", string(kind)),
		slog.Int64("size_bytes", record.SizeBytes),
	)
	return record, nil
}

// ListOwn は呼び出し元が提出したレコードを新しい順に返す。
func (s *Service) ListOwn(ctx context.Context, caller *model.Account) ([]*model.Record, error) {
	if err := Require(caller, model.RoleSubmitter); err != nil {
		return nil, err
	}

	records, err := s.records.ListByOwner(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("レコード一覧の取得に失敗しました: %w", err)
	}
	return records, nil
}

// ListAll は全レコードを提出者情報付きで新しい順に返す。
// 提出者を解決できないレコードもOwner=nilとして含める。
func (s *Service) ListAll(ctx context.Context, caller *model.Account) ([]model.ReviewedRecord, error) {
	if err := Require(caller, model.RoleReviewer); err != nil {
		return nil, err
	}

	records, err := s.records.ListAllWithOwner(ctx)
	if err != nil {
		return nil, fmt.Errorf("レコード一覧の取得に失敗しました: %w", err)
	}
	return records, nil
}

// Transition はレコードをapprovedまたはrejectedに遷移させる。
// 審査済みのレコードも再判定でき、最後の更新が有効になる。
func (s *Service) Transition(ctx context.Context, caller *model.Account, input TransitionInput) (*model.Record, error) {
	if err := Require(caller, model.RoleReviewer); err != nil {
		return nil, err
	}

	status := model.RecordStatus(input.Status)
	if !status.IsTerminal() {
		return nil, model.NewInvalidStatusError(input.Status)
	}
	if _, err := uuid.Parse(input.RecordID); err != nil {
		return nil, model.NewRecordNotFoundError(input.RecordID)
	}

	remarks := ""
	if input.Remarks != nil {
		remarks = *input.Remarks
	}

	record, previous, err := s.records.UpdateStatus(ctx, input.RecordID, status, remarks, s.now())
	if err != nil {
		return nil, fmt.Errorf("審査状態の更新に失敗しました: %w", err)
	}
	if record == nil {
		return nil, model.NewRecordNotFoundError(input.RecordID)
	}

	override := previous.IsTerminal()
	if override {
		slog.Info("record review overridden",
			slog.String("record_id", record.ID),
			slog.String("reviewer_id", caller.ID),
			slog.String("previous_status", string(previous)),
			slog.String("status", string(status)),
		)
	} else {
		slog.Info("record reviewed",
			slog.String("record_id", record.ID),
			slog.String("reviewer_id", caller.ID),
			slog.String("status", string(status)),
		)
	}
	if s.metrics != nil {
		s.metrics.RecordTransition(string(status), override)
	}

	return record, nil
}

func (s *Service) recordUploadFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordUploadFailure(reason)
	}
}
