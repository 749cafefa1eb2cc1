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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordLoginAttempt(outcome string)
	RecordPostMutation(operation string)
	RecordGateBlock(kind string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginAttempts  *prometheus.CounterVec
	postMutations  *prometheus.CounterVec
	gateBlocks     *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_login_attempts_total",
			Help: "サインイン試行の結果別合計数",
		}, []string{"outcome"}),
		postMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_post_mutations_total",
			Help: "記事の変更操作別合計数",
		}, []string{"operation"}),
		gateBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_gate_blocks_total",
			Help: "エッジゲートでブロックしたリクエストの種別合計数",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfolio_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.postMutations,
		c.gateBlocks,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLoginAttempt はサインイン試行の結果を記録する。
// outcome: success, failure, rate_limited
func (c *Collector) RecordLoginAttempt(outcome string) {
	c.loginAttempts.WithLabelValues(outcome).Inc()
}

// RecordPostMutation は記事の変更操作を記録する。
// operation: create, update, publish_toggle, delete
func (c *Collector) RecordPostMutation(operation string) {
	c.postMutations.WithLabelValues(operation).Inc()
}

// RecordGateBlock はエッジゲートでのブロックを記録する。
// kind: sensitive_path, missing_token, invalid_token
func (c *Collector) RecordGateBlock(kind string) {
	c.gateBlocks.WithLabelValues(kind).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
