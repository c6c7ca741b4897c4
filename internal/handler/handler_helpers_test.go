package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/recordgate/internal/auth"
	"github.com/hitoshi/recordgate/internal/middleware"
	"github.com/hitoshi/recordgate/internal/model"
	"github.com/hitoshi/recordgate/internal/workflow"
)

// --- モック定義 ---

// mockAccountService はAccountServiceInterfaceのモック実装。
type mockAccountService struct {
	registerFn func(ctx context.Context, input auth.RegisterInput) (*model.Account, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

func (m *mockAccountService) Register(ctx context.Context, input auth.RegisterInput) (*model.Account, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, input)
	}
	return nil, nil
}

func (m *mockAccountService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

// mockRecordService はRecordServiceInterfaceのモック実装。
type mockRecordService struct {
	uploadFn     func(ctx context.Context, caller *model.Account, upload workflow.FileUpload) (*model.Record, error)
	listOwnFn    func(ctx context.Context, caller *model.Account) ([]*model.Record, error)
	listAllFn    func(ctx context.Context, caller *model.Account) ([]model.ReviewedRecord, error)
	transitionFn func(ctx context.Context, caller *model.Account, input workflow.TransitionInput) (*model.Record, error)
}

func (m *mockRecordService) Upload(ctx context.Context, caller *model.Account, upload workflow.FileUpload) (*model.Record, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, caller, upload)
	}
	return nil, nil
}

func (m *mockRecordService) ListOwn(ctx context.Context, caller *model.Account) ([]*model.Record, error) {
	if m.listOwnFn != nil {
		return m.listOwnFn(ctx, caller)
	}
	return nil, nil
}

func (m *mockRecordService) ListAll(ctx context.Context, caller *model.Account) ([]model.ReviewedRecord, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx, caller)
	}
	return nil, nil
}

func (m *mockRecordService) Transition(ctx context.Context, caller *model.Account, input workflow.TransitionInput) (*model.Record, error) {
	if m.transitionFn != nil {
		return m.transitionFn(ctx, caller, input)
	}
	return nil, nil
}

// --- テストヘルパー ---

var (
	testSubmitter = &model.Account{ID: "submitter-1", Name: "Alice", Email: "alice@example.com", Role: model.RoleSubmitter}
	testReviewer  = &model.Account{ID: "reviewer-1", Name: "Bob", Email: "bob@example.com", Role: model.RoleReviewer}
)

// withAccount はテスト用にリクエストコンテキストに認証済みアカウントを注入するヘルパー。
func withAccount(r *http.Request, account *model.Account) *http.Request {
	return r.WithContext(middleware.ContextWithAccount(r.Context(), account))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeJSON はレスポンスボディを汎用マップにデコードするヘルパー。
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}
