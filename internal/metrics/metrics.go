// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordUpload(kind string, sizeBytes int64)
	RecordUploadFailure(reason string)
	RecordTransition(status string, override bool)
	RecordLoginFailure()
}

// アップロード失敗理由のラベル値。
const (
	UploadFailureNoFile   = "no_file"
	UploadFailureTooLarge = "too_large"
	UploadFailureStorage  = "storage"
	UploadFailureDatabase = "database"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	uploads        *prometheus.CounterVec
	uploadBytes    prometheus.Counter
	uploadFail     *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	loginFail      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordgate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recordgate_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordgate_uploads_total",
			Help: "リソース種別ごとのアップロード成功数",
		}, []string{"kind"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recordgate_upload_bytes_total",
			Help: "アップロードされたバイト数の合計",
		}),
		uploadFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordgate_upload_failures_total",
			Help: "理由別のアップロード失敗数",
		}, []string{"reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordgate_transitions_total",
			Help: "審査状態遷移の合計数（overrideは審査済みレコードの再判定）",
		}, []string{"status", "override"}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recordgate_login_failures_total",
			Help: "ログイン失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.uploads,
		c.uploadBytes,
		c.uploadFail,
		c.transitions,
		c.loginFail,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordUpload はアップロード成功を記録する。
func (c *Collector) RecordUpload(kind string, sizeBytes int64) {
	c.uploads.WithLabelValues(kind).Inc()
	c.uploadBytes.Add(float64(sizeBytes))
}

// RecordUploadFailure はアップロード失敗を記録する。
func (c *Collector) RecordUploadFailure(reason string) {
	c.uploadFail.WithLabelValues(reason).Inc()
}

// RecordTransition は審査状態の遷移を記録する。
func (c *Collector) RecordTransition(status string, override bool) {
	c.transitions.WithLabelValues(status, strconv.FormatBool(override)).Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
