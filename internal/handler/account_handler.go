package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/recordgate/internal/auth"
	"github.com/hitoshi/recordgate/internal/middleware"
	"github.com/hitoshi/recordgate/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// Register はアカウントを登録する。招待コードが一致した場合のみreviewerになる。
	Register(ctx context.Context, input auth.RegisterInput) (*model.Account, error)
	// Login は資格情報を検証し、セッショントークンを発行する。
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// AccountHandler は登録・ログイン・セッション確認のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// registerRequest はアカウント登録リクエストのボディ。
type registerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	InviteCode string `json:"invite_code"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountEnvelope struct {
	Account accountResponse `json:"account"`
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   accountResponse `json:"account"`
}

// Register はアカウントを登録する。
// POST /accounts
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	account, err := h.service.Register(r.Context(), auth.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		InviteCode: req.InviteCode,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, accountEnvelope{Account: toAccountResponse(account)})
}

// Login は資格情報を検証してトークンを発行する。
// POST /sessions
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, sessionResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC(),
		Account:   toAccountResponse(result.Account),
	})
}

// Me は現在のトークンに対応するアカウントを返す。
// GET /session
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, accountEnvelope{Account: toAccountResponse(caller)})
}
