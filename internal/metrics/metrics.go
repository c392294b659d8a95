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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordClassification(outcome string)
	RecordStageTransition(stage string)
	RecordSessionCompleted(duration time.Duration)
	RecordMutationResult(kind string, success bool)
	RecordScanCompleted(added, updated, removed int, duration time.Duration)
	RecordImportStatus(statusCode int)
	RecordThumbnailLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	classifications  *prometheus.CounterVec
	stageTransitions *prometheus.CounterVec
	sessionCompleted prometheus.Counter
	sessionDuration  prometheus.Histogram
	mutations        *prometheus.CounterVec
	scanChanges      *prometheus.CounterVec
	scanDuration     prometheus.Histogram
	importStatus     *prometheus.CounterVec
	thumbnailLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photozen_classification_total",
			Help: "仕分け結果別のスワイプ確定数",
		}, []string{"outcome"}),
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photozen_stage_transition_total",
			Help: "遷移先ステージ別のステージ遷移数",
		}, []string{"stage"}),
		sessionCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photozen_session_completed_total",
			Help: "完了したセッションの合計数",
		}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "photozen_session_duration_seconds",
			Help:    "セッション開始から完了までの所要時間（秒）",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photozen_mutation_total",
			Help: "種別・結果別のファイル操作実行数",
		}, []string{"kind", "result"}),
		scanChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photozen_scan_changes_total",
			Help: "スキャンで検出した変更の種別別合計数",
		}, []string{"change"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "photozen_scan_duration_seconds",
			Help:    "ライブラリスキャンの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		importStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photozen_import_status_total",
			Help: "リモート取り込みのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		thumbnailLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "photozen_thumbnail_latency_seconds",
			Help:    "サムネイル生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.classifications,
		c.stageTransitions,
		c.sessionCompleted,
		c.sessionDuration,
		c.mutations,
		c.scanChanges,
		c.scanDuration,
		c.importStatus,
		c.thumbnailLatency,
	)

	return c
}

// RecordClassification はスワイプ確定を仕分け結果別に記録する。
func (c *Collector) RecordClassification(outcome string) {
	c.classifications.WithLabelValues(outcome).Inc()
}

// RecordStageTransition はステージ遷移を遷移先別に記録する。
func (c *Collector) RecordStageTransition(stage string) {
	c.stageTransitions.WithLabelValues(stage).Inc()
}

// RecordSessionCompleted はセッション完了と所要時間を記録する。
func (c *Collector) RecordSessionCompleted(duration time.Duration) {
	c.sessionCompleted.Inc()
	c.sessionDuration.Observe(duration.Seconds())
}

// RecordMutationResult はファイル操作の実行結果を記録する。
func (c *Collector) RecordMutationResult(kind string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.mutations.WithLabelValues(kind, result).Inc()
}

// RecordScanCompleted はスキャン結果の変更数と所要時間を記録する。
func (c *Collector) RecordScanCompleted(added, updated, removed int, duration time.Duration) {
	c.scanChanges.WithLabelValues("added").Add(float64(added))
	c.scanChanges.WithLabelValues("updated").Add(float64(updated))
	c.scanChanges.WithLabelValues("removed").Add(float64(removed))
	c.scanDuration.Observe(duration.Seconds())
}

// RecordImportStatus はリモート取り込みのHTTPステータスコードを記録する。
func (c *Collector) RecordImportStatus(statusCode int) {
	c.importStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordThumbnailLatency はサムネイル生成のレイテンシを記録する。
func (c *Collector) RecordThumbnailLatency(duration time.Duration) {
	c.thumbnailLatency.Observe(duration.Seconds())
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
