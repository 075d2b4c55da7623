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
// サービス層やワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(outcome string)
	RecordSessionIssued()
	RecordSessionRevoked(count int)
	RecordSessionVerifyFailure(reason string)
	RecordSessionsSwept(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          *prometheus.CounterVec
	sessionsIssued  prometheus.Counter
	sessionsRevoked prometheus.Counter
	verifyFailures  *prometheus.CounterVec
	sessionsSwept   prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_logins_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"outcome"}),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_sessions_issued_total",
			Help: "発行されたセッショントークンの合計数",
		}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_sessions_revoked_total",
			Help: "失効されたセッショントークンの合計数",
		}),
		verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_session_verify_failures_total",
			Help: "セッション検証失敗の理由別合計数",
		}, []string{"reason"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_sessions_swept_total",
			Help: "掃除ワーカーが取り除いた期限切れセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskman_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.sessionsIssued,
		c.sessionsRevoked,
		c.verifyFailures,
		c.sessionsSwept,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLogin はログイン試行の結果（success / failure）を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordSessionIssued はセッショントークンの発行を記録する。
func (c *Collector) RecordSessionIssued() {
	c.sessionsIssued.Inc()
}

// RecordSessionRevoked はセッショントークンの失効を記録する。
func (c *Collector) RecordSessionRevoked(count int) {
	c.sessionsRevoked.Add(float64(count))
}

// RecordSessionVerifyFailure はセッション検証失敗を理由別に記録する。
func (c *Collector) RecordSessionVerifyFailure(reason string) {
	c.verifyFailures.WithLabelValues(reason).Inc()
}

// RecordSessionsSwept は掃除ワーカーが取り除いたセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int) {
	c.sessionsSwept.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
