// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	linkAttempts     *prometheus.CounterVec
	unlinks          *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fiddo_provider_requests_total",
			Help: "プロバイダーAPI呼び出しの合計数（プロバイダー・操作・結果別）",
		}, []string{"provider", "operation", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fiddo_provider_latency_seconds",
			Help:    "プロバイダーAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		linkAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fiddo_link_attempts_total",
			Help: "アカウント連携試行の合計数（プロバイダー・結果別）",
		}, []string{"provider", "outcome"}),
		unlinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fiddo_unlinks_total",
			Help: "アカウント連携解除の合計数（プロバイダー別）",
		}, []string{"provider"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fiddo_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.providerRequests,
		c.providerLatency,
		c.linkAttempts,
		c.unlinks,
		c.httpStatus,
	)

	return c
}

// RecordProviderRequest はプロバイダーAPI呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordProviderRequest(provider, operation, outcome string, duration time.Duration) {
	c.providerRequests.WithLabelValues(provider, operation, outcome).Inc()
	c.providerLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordLinkAttempt は連携試行の結果を記録する。
// outcomeにはリダイレクトインジケータ（success、TokenRequestFailed等）を渡す。
func (c *Collector) RecordLinkAttempt(provider, outcome string) {
	c.linkAttempts.WithLabelValues(provider, outcome).Inc()
}

// RecordUnlink は連携解除を記録する。
func (c *Collector) RecordUnlink(provider string) {
	c.unlinks.WithLabelValues(provider).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
