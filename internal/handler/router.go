package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/recordgate/internal/metrics"
	"github.com/hitoshi/recordgate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	// TrustProxyHeaders がtrueの場合、X-Forwarded-For等からクライアントIPを決定する。
	TrustProxyHeaders bool

	// アカウント
	AccountService AccountServiceInterface

	// レコード
	RecordService RecordServiceInterface
	MaxUploadSize int64

	// ヘルスチェック
	DB    Pinger
	Store StoragePinger

	// MetricsHandler が指定された場合は /metrics で公開する。
	MetricsHandler http.Handler
	// FileHandler が指定された場合は /files/ 以下で保存済みファイルを配信する（filesystemバックエンド用）。
	FileHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → (RealIP) → Logging → Metrics → SecurityHeaders → CORS
//	  → 登録・ログイン: RateLimit(Auth)
//	  → 認証が必要なルート: BearerAuth → RateLimit(General) → [RateLimit(Upload)]
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, notFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, methodNotAllowedError())
	})

	accountHandler := NewAccountHandler(deps.AccountService)
	recordHandler := NewRecordHandler(deps.RecordService, deps.MaxUploadSize)

	// --- 認証不要のルート ---

	if deps.DB != nil && deps.Store != nil {
		r.Get("/health", NewHealthHandler(deps.DB, deps.Store).Check)
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	if deps.FileHandler != nil {
		r.Handle("/files/*", http.StripPrefix("/files", deps.FileHandler))
	}

	// 登録・ログイン（クライアントIP単位のレート制限）
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())
		r.Post("/accounts", accountHandler.Register)
		r.Post("/sessions", accountHandler.Login)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: BearerAuth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/session", accountHandler.Me)

		r.Route("/records", func(r chi.Router) {
			// POST /records - アップロード（アップロード専用レート制限を追加）
			r.With(deps.RateLimiter.UploadMiddleware()).Post("/", recordHandler.Upload)
			r.Get("/", recordHandler.ListAll)
			r.Get("/mine", recordHandler.ListMine)
			r.Patch("/{id}", recordHandler.UpdateStatus)
		})
	})

	return r
}
