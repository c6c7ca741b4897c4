package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/recordgate/internal/model"
	"github.com/hitoshi/recordgate/internal/repository"
)

// --- モック定義 ---

type mockAccountRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.Account, error)
	findByEmailFn func(ctx context.Context, email string) (*model.Account, error)
	createFn      func(ctx context.Context, account *model.Account) error
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockAccountRepo) Create(ctx context.Context, account *model.Account) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	return nil
}

type mockMetrics struct {
	mu            sync.Mutex
	loginFailures int
}

func (m *mockMetrics) RecordHTTPStatus(int)               {}
func (m *mockMetrics) RecordRequestLatency(time.Duration) {}
func (m *mockMetrics) RecordUpload(string, int64)         {}
func (m *mockMetrics) RecordUploadFailure(string)         {}
func (m *mockMetrics) RecordTransition(string, bool)      {}
func (m *mockMetrics) RecordLoginFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginFailures++
}

func newTestService(repo repository.AccountRepository, inviteCode string) *Service {
	return NewService(repo, NewTokenIssuer(testSecret, time.Hour), ServiceConfig{
		ReviewerInviteCode: inviteCode,
		BcryptCost:         bcrypt.MinCost,
	}, nil)
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Errorf("error code = %q, want %q", apiErr.Code, code)
	}
}

// --- Register ---

func TestRegister_CreatesSubmitterWithNormalizedEmail(t *testing.T) {
	var created *model.Account
	repo := &mockAccountRepo{
		createFn: func(_ context.Context, account *model.Account) error {
			created = account
			return nil
		},
	}
	svc := newTestService(repo, "")

	account, err := svc.Register(context.Background(), RegisterInput{
		Name:     " Alice ",
		Email:    "  Alice@Example.COM ",
		Password: "secret-password",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected account to be persisted")
	}
	if account.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", account.Email, "alice@example.com")
	}
	if account.Name != "Alice" {
		t.Errorf("Name = %q, want %q", account.Name, "Alice")
	}
	if account.Role != model.RoleSubmitter {
		t.Errorf("Role = %q, want %q", account.Role, model.RoleSubmitter)
	}
	if account.ID == "" {
		t.Error("expected generated ID")
	}
	if account.PasswordHash == "secret-password" || !checkPassword(account.PasswordHash, "secret-password") {
		t.Error("password should be stored as a bcrypt hash")
	}
}

func TestRegister_InviteCodeGrantsReviewer(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		supplied   string
		want       model.Role
	}{
		{name: "matching_code", configured: "open-sesame", supplied: "open-sesame", want: model.RoleReviewer},
		{name: "wrong_code", configured: "open-sesame", supplied: "open-says-me", want: model.RoleSubmitter},
		{name: "no_code_supplied", configured: "open-sesame", supplied: "", want: model.RoleSubmitter},
		{name: "no_code_configured", configured: "", supplied: "", want: model.RoleSubmitter},
		{name: "no_code_configured_with_supplied", configured: "", supplied: "anything", want: model.RoleSubmitter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockAccountRepo{}, tt.configured)
			account, err := svc.Register(context.Background(), RegisterInput{
				Name:       "Bob",
				Email:      "bob@example.com",
				Password:   "pw",
				InviteCode: tt.supplied,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if account.Role != tt.want {
				t.Errorf("Role = %q, want %q", account.Role, tt.want)
			}
		})
	}
}

func TestRegister_MissingFields(t *testing.T) {
	svc := newTestService(&mockAccountRepo{
		createFn: func(context.Context, *model.Account) error {
			t.Fatal("Create should not be called")
			return nil
		},
	}, "")

	_, err := svc.Register(context.Background(), RegisterInput{Name: "  ", Email: "a@example.com"})
	assertAPIErrorCode(t, err, model.ErrCodeMissingFields)
	if !strings.Contains(err.Error(), "name") || !strings.Contains(err.Error(), "password") {
		t.Errorf("error should list missing fields, got %q", err.Error())
	}
}

func TestRegister_DuplicateEmail_PreCheck(t *testing.T) {
	repo := &mockAccountRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.Account, error) {
			if email != "taken@example.com" {
				t.Errorf("FindByEmail called with %q, want normalized email", email)
			}
			return &model.Account{ID: "existing"}, nil
		},
	}
	svc := newTestService(repo, "")

	_, err := svc.Register(context.Background(), RegisterInput{Name: "X", Email: "TAKEN@example.com", Password: "pw"})
	assertAPIErrorCode(t, err, model.ErrCodeEmailInUse)
}

func TestRegister_DuplicateEmail_UniqueConstraint(t *testing.T) {
	repo := &mockAccountRepo{
		createFn: func(context.Context, *model.Account) error {
			return repository.ErrDuplicateEmail
		},
	}
	svc := newTestService(repo, "")

	_, err := svc.Register(context.Background(), RegisterInput{Name: "X", Email: "race@example.com", Password: "pw"})
	assertAPIErrorCode(t, err, model.ErrCodeEmailInUse)
}

func TestRegister_RepositoryError_Propagates(t *testing.T) {
	repo := &mockAccountRepo{
		findByEmailFn: func(context.Context, string) (*model.Account, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(repo, "")

	_, err := svc.Register(context.Background(), RegisterInput{Name: "X", Email: "x@example.com", Password: "pw"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("expected non-API error, got %v", apiErr)
	}
}

// --- Login ---

func storedAccount(t *testing.T, password string, role model.Role) *model.Account {
	t.Helper()
	hash, err := hashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	return &model.Account{
		ID:           "account-1",
		Email:        "carol@example.com",
		Name:         "Carol",
		PasswordHash: hash,
		Role:         role,
	}
}

func TestLogin_Success_IssuesToken(t *testing.T) {
	account := storedAccount(t, "correct", model.RoleReviewer)
	repo := &mockAccountRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.Account, error) {
			if email == account.Email {
				return account, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(repo, "")

	result, err := svc.Login(context.Background(), " Carol@Example.com", "correct")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Account.ID != account.ID {
		t.Errorf("Account.ID = %q, want %q", result.Account.ID, account.ID)
	}

	claims, err := svc.tokens.Validate(result.Token)
	if err != nil {
		t.Fatalf("issued token should validate: %v", err)
	}
	if claims.AccountID() != account.ID || claims.Role != model.RoleReviewer {
		t.Errorf("claims = %+v", claims)
	}
	if !result.ExpiresAt.After(time.Now()) {
		t.Errorf("ExpiresAt = %v, should be in the future", result.ExpiresAt)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	account := storedAccount(t, "correct", model.RoleSubmitter)
	repo := &mockAccountRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.Account, error) {
			if email == account.Email {
				return account, nil
			}
			return nil, nil
		},
	}
	m := &mockMetrics{}
	svc := NewService(repo, NewTokenIssuer(testSecret, time.Hour), ServiceConfig{BcryptCost: bcrypt.MinCost}, m)

	_, errUnknown := svc.Login(context.Background(), "nobody@example.com", "correct")
	_, errWrong := svc.Login(context.Background(), account.Email, "wrong")

	assertAPIErrorCode(t, errUnknown, model.ErrCodeInvalidCredentials)
	assertAPIErrorCode(t, errWrong, model.ErrCodeInvalidCredentials)
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("errors differ: %q vs %q", errUnknown.Error(), errWrong.Error())
	}
	if m.loginFailures != 2 {
		t.Errorf("loginFailures = %d, want 2", m.loginFailures)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	svc := newTestService(&mockAccountRepo{}, "")

	_, err := svc.Login(context.Background(), "", "")
	assertAPIErrorCode(t, err, model.ErrCodeMissingFields)
}

// --- Authenticate ---

func TestAuthenticate_ReturnsStoredAccount(t *testing.T) {
	account := &model.Account{ID: "account-1", Role: model.RoleSubmitter}
	repo := &mockAccountRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Account, error) {
			if id == account.ID {
				return account, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(repo, "")

	token, _, err := svc.tokens.Issue(account.ID, account.Role)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, err := svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != account.ID {
		t.Errorf("ID = %q, want %q", got.ID, account.ID)
	}
}

func TestAuthenticate_StoredRoleWins(t *testing.T) {
	repo := &mockAccountRepo{
		findByIDFn: func(context.Context, string) (*model.Account, error) {
			return &model.Account{ID: "account-1", Role: model.RoleSubmitter}, nil
		},
	}
	svc := newTestService(repo, "")

	// トークン上はreviewerだが保存済みロールはsubmitter
	token, _, err := svc.tokens.Issue("account-1", model.RoleReviewer)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, err := svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Role != model.RoleSubmitter {
		t.Errorf("Role = %q, want %q", got.Role, model.RoleSubmitter)
	}
}

func TestAuthenticate_DeletedAccount_Unauthorized(t *testing.T) {
	svc := newTestService(&mockAccountRepo{}, "")

	token, _, err := svc.tokens.Issue("gone", model.RoleSubmitter)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = svc.Authenticate(context.Background(), token)
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
}

func TestAuthenticate_InvalidToken_Unauthorized(t *testing.T) {
	repo := &mockAccountRepo{
		findByIDFn: func(context.Context, string) (*model.Account, error) {
			t.Fatal("FindByID should not be called for invalid tokens")
			return nil, nil
		},
	}
	svc := newTestService(repo, "")

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := svc.Authenticate(context.Background(), token)
		assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
	}
}
