// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証イベントの種別
const (
	AuthMethodLocal    = "local"
	AuthMethodRegister = "register"
	AuthMethodGoogle   = "google"

	AuthResultSuccess = "success"
	AuthResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやハンドラー層から利用する。
type MetricsCollector interface {
	ObserveHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordAuthEvent(method, result string)
	RecordAuthRejection(reason string)
	RecordTaskOperation(operation string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	authEvents     *prometheus.CounterVec
	authRejections *prometheus.CounterVec
	taskOperations *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_http_requests_total",
			Help: "ルート・メソッド・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskflow_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_auth_events_total",
			Help: "認証方式・結果別のログイン/登録試行数",
		}, []string{"method", "result"}),
		authRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_auth_rejections_total",
			Help: "認証ミドルウェアで拒否したリクエスト数",
		}, []string{"reason"}),
		taskOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_task_operations_total",
			Help: "操作種別ごとのタスク変更数",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.authEvents,
		c.authRejections,
		c.taskOperations,
	)

	return c
}

// ObserveHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターン（例: /api/tasks/{id}）を渡し、ラベルの爆発を防ぐ。
func (c *Collector) ObserveHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthEvent はログイン・登録の結果を記録する。
func (c *Collector) RecordAuthEvent(method, result string) {
	c.authEvents.WithLabelValues(method, result).Inc()
}

// RecordAuthRejection は認証ミドルウェアでの拒否理由を記録する。
func (c *Collector) RecordAuthRejection(reason string) {
	c.authRejections.WithLabelValues(reason).Inc()
}

// RecordTaskOperation はタスクの作成・更新・削除・共有を記録する。
func (c *Collector) RecordTaskOperation(operation string) {
	c.taskOperations.WithLabelValues(operation).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを注入しない構成やテストで使用する。
type NopCollector struct{}

func (NopCollector) ObserveHTTPRequest(string, string, int, time.Duration) {}
func (NopCollector) RecordAuthEvent(string, string)                       {}
func (NopCollector) RecordAuthRejection(string)                           {}
func (NopCollector) RecordTaskOperation(string)                           {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
