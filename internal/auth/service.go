// Package auth はアカウント登録、ログイン、ベアラートークンの発行と検証を提供する。
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/recordgate/internal/metrics"
	"github.com/hitoshi/recordgate/internal/model"
	"github.com/hitoshi/recordgate/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	ReviewerInviteCode string // 空の場合は誰もreviewerとして登録できない
	BcryptCost         int
}

// RegisterInput はアカウント登録の入力。
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	InviteCode string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *model.Account
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts  repository.AccountRepository
	tokens    *TokenIssuer
	config    ServiceConfig
	metrics   metrics.MetricsCollector
	dummyHash string
	now       func() time.Time
}

// NewService はServiceを生成する。collectorはnilでもよい。
func NewService(
	accounts repository.AccountRepository,
	tokens *TokenIssuer,
	config ServiceConfig,
	collector metrics.MetricsCollector,
) *Service {
	// 未登録メールアドレスでも同じコストの比較を行うため、設定コストでダミーハッシュを作る
	dummy, err := hashPassword(dummyPassword, config.BcryptCost)
	if err != nil {
		slog.Error("failed to prepare dummy password hash", slog.String("error", err.Error()))
	}
	return &Service{
		accounts:  accounts,
		tokens:    tokens,
		config:    config,
		metrics:   collector,
		dummyHash: dummy,
		now:       time.Now,
	}
}

// NormalizeEmail はメールアドレスの前後の空白を除去し小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register はアカウントを登録する。
// 招待コードが設定値と一致する場合のみreviewerロールを付与する。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.Account, error) {
	name := strings.TrimSpace(input.Name)
	email := NormalizeEmail(input.Email)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if input.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldsError(missing...)
	}

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailInUseError()
	}

	hash, err := hashPassword(input.Password, s.config.BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, model.NewInvalidRequestError()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         s.roleFor(input.InviteCode),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		// 事前チェック後に同時登録された場合はユニーク制約で検出される
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailInUseError()
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account registered",
		slog.String("account_id", account.ID),
		slog.String("role", string(account.Role)),
	)
	return account, nil
}

// roleFor は招待コードからロールを決定する。
func (s *Service) roleFor(inviteCode string) model.Role {
	configured := s.config.ReviewerInviteCode
	if configured == "" || inviteCode == "" {
		return model.RoleSubmitter
	}
	if subtle.ConstantTimeCompare([]byte(inviteCode), []byte(configured)) == 1 {
		return model.RoleReviewer
	}
	return model.RoleSubmitter
}

// Login はメールアドレスとパスワードで認証し、セッショントークンを発行する。
// 未登録メールアドレスとパスワード誤りは同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldsError(missing...)
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if account == nil {
		checkPassword(s.dummyHash, password)
		s.recordLoginFailure()
		return nil, model.NewInvalidCredentialsError()
	}
	if !checkPassword(account.PasswordHash, password) {
		s.recordLoginFailure()
		return nil, model.NewInvalidCredentialsError()
	}

	token, expiresAt, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   account,
	}, nil
}

func (s *Service) recordLoginFailure() {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure()
	}
}

// Authenticate はトークンを検証し、保存されている最新のアカウントを返す。
// アカウントが存在しない場合は認証失敗とする。
// トークンのロールと保存済みロールが異なる場合は保存済みロールを優先する。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Account, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, model.NewUnauthorizedError()
	}

	account, err := s.accounts.FindByID(ctx, claims.AccountID())
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewUnauthorizedError()
	}

	if account.Role != claims.Role {
		slog.Warn("token role differs from stored role",
			slog.String("account_id", account.ID),
			slog.String("token_role", string(claims.Role)),
			slog.String("stored_role", string(account.Role)),
		)
	}

	return account, nil
}
