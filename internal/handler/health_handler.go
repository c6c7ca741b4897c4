package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/recordgate/internal/middleware"
)

// healthCheckTimeout は依存先1つあたりの疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// Pinger は疎通確認できる依存先を表す。*sql.DBはPingContextで満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StoragePinger はオブジェクトストレージの疎通確認を表す。
type StoragePinger interface {
	Ping(ctx context.Context) error
	Name() string
}

// HealthHandler はデータベースとオブジェクトストレージの疎通を確認する。
type HealthHandler struct {
	db    Pinger
	store StoragePinger
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db Pinger, store StoragePinger) *HealthHandler {
	return &HealthHandler{db: db, store: store}
}

type healthResponse struct {
	Status         string `json:"status"`
	Database       string `json:"database"`
	Storage        string `json:"storage"`
	StorageBackend string `json:"storage_backend"`
}

// Check は依存先の状態を返す。いずれかが応答しない場合は503。
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:         "ok",
		Database:       "ok",
		Storage:        "ok",
		StorageBackend: h.store.Name(),
	}
	statusCode := http.StatusOK

	if err := ping(r.Context(), h.db.PingContext); err != nil {
		slog.Error("health check: database unavailable", slog.String("error", err.Error()))
		resp.Database = "unavailable"
		resp.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}
	if err := ping(r.Context(), h.store.Ping); err != nil {
		slog.Error("health check: storage unavailable",
			slog.String("backend", h.store.Name()),
			slog.String("error", err.Error()),
		)
		resp.Storage = "unavailable"
		resp.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	middleware.WriteJSON(w, statusCode, resp)
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return fn(ctx)
}
