// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector は駐車セッションAPIのPrometheusメトリクスを収集する。
// parking.MetricsCollectorを実装する。
type Collector struct {
	sessionsRegistered   prometheus.Counter
	paymentsConfirmed    prometheus.Counter
	departuresRegistered prometheus.Counter
	validationRejects    *prometheus.CounterVec
	httpStatus           *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkman_sessions_registered_total",
			Help: "入庫登録成功の合計数",
		}),
		paymentsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkman_payments_confirmed_total",
			Help: "支払い確定の合計数",
		}),
		departuresRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkman_departures_registered_total",
			Help: "出庫登録成功の合計数",
		}),
		validationRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parkman_validation_reject_total",
			Help: "バリデーションルール別の拒否数",
		}, []string{"rule"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parkman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.sessionsRegistered,
		c.paymentsConfirmed,
		c.departuresRegistered,
		c.validationRejects,
		c.httpStatus,
	)

	return c
}

// RecordSessionRegistered は入庫登録成功を記録する。
func (c *Collector) RecordSessionRegistered() {
	c.sessionsRegistered.Inc()
}

// RecordPaymentConfirmed は支払い確定を記録する。
func (c *Collector) RecordPaymentConfirmed() {
	c.paymentsConfirmed.Inc()
}

// RecordDepartureRegistered は出庫登録成功を記録する。
func (c *Collector) RecordDepartureRegistered() {
	c.departuresRegistered.Inc()
}

// RecordValidationReject はバリデーション拒否をルール別に記録する。
func (c *Collector) RecordValidationReject(rule string) {
	c.validationRejects.WithLabelValues(rule).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// APIとは別ポートで公開することを想定している。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
