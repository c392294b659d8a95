package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordClassification_IncrementsCounterWithLabel は仕分けカウンタがラベル付きで増加することを検証する。
func TestRecordClassification_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordClassification("keep")
	c.RecordClassification("keep")
	c.RecordClassification("trash")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "photozen_classification_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "keep":
					if val != 2 {
						t.Errorf("classification_total{outcome=keep} = %v, want 2", val)
					}
				case "trash":
					if val != 1 {
						t.Errorf("classification_total{outcome=trash} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("photozen_classification_total metric not found")
	}
}

// TestRecordStageTransition_IncrementsCounter はステージ遷移カウンタが増加することを検証する。
func TestRecordStageTransition_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStageTransition("compare")
	c.RecordStageTransition("compare")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "photozen_stage_transition_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 2 {
				t.Errorf("stage_transition_total = %v, want 2", val)
			}
		}
	}
	if !found {
		t.Error("photozen_stage_transition_total metric not found")
	}
}

// TestRecordSessionCompleted_IncrementsCounterAndHistogram はセッション完了でカウンタとヒストグラムが記録されることを検証する。
func TestRecordSessionCompleted_IncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionCompleted(90 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	foundCounter := false
	foundHistogram := false
	for _, mf := range metrics {
		switch mf.GetName() {
		case "photozen_session_completed_total":
			foundCounter = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 1 {
				t.Errorf("session_completed_total = %v, want 1", val)
			}
		case "photozen_session_duration_seconds":
			foundHistogram = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 1 {
				t.Errorf("sample_count = %d, want 1", h.GetSampleCount())
			}
			if h.GetSampleSum() < 89 || h.GetSampleSum() > 91 {
				t.Errorf("sample_sum = %v, want ~90", h.GetSampleSum())
			}
		}
	}
	if !foundCounter {
		t.Error("photozen_session_completed_total metric not found")
	}
	if !foundHistogram {
		t.Error("photozen_session_duration_seconds metric not found")
	}
}

// TestRecordMutationResult_LabelsKindAndResult はファイル操作カウンタが種別と結果のラベル付きで増加することを検証する。
func TestRecordMutationResult_LabelsKindAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMutationResult("album_move", true)
	c.RecordMutationResult("album_move", true)
	c.RecordMutationResult("trash_move", false)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "photozen_mutation_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("photozen_mutation_total metric not found")
	}
}

// TestRecordScanCompleted_AddsChangeCounts はスキャン結果の変更数が種別別に加算されることを検証する。
func TestRecordScanCompleted_AddsChangeCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScanCompleted(10, 2, 1, 3*time.Second)
	c.RecordScanCompleted(5, 0, 0, 1*time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		switch mf.GetName() {
		case "photozen_scan_changes_total":
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "added":
					if val != 15 {
						t.Errorf("scan_changes_total{change=added} = %v, want 15", val)
					}
				case "updated":
					if val != 2 {
						t.Errorf("scan_changes_total{change=updated} = %v, want 2", val)
					}
				case "removed":
					if val != 1 {
						t.Errorf("scan_changes_total{change=removed} = %v, want 1", val)
					}
				}
			}
		case "photozen_scan_duration_seconds":
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は3 + 1 = 4秒
			if h.GetSampleSum() < 3.9 || h.GetSampleSum() > 4.1 {
				t.Errorf("sample_sum = %v, want ~4", h.GetSampleSum())
			}
		}
	}
}

// TestRecordImportStatus_IncrementsCounterWithLabel は取り込みステータスカウンタがラベル付きで増加することを検証する。
func TestRecordImportStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordImportStatus(200)
	c.RecordImportStatus(200)
	c.RecordImportStatus(404)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "photozen_import_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("import_status_total{status_code=200} = %v, want 2", val)
					}
				case "404":
					if val != 1 {
						t.Errorf("import_status_total{status_code=404} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("photozen_import_status_total metric not found")
	}
}

// TestRecordThumbnailLatency_ObservesHistogram はサムネイル生成レイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordThumbnailLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordThumbnailLatency(100 * time.Millisecond)
	c.RecordThumbnailLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "photozen_thumbnail_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("photozen_thumbnail_latency_seconds metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordClassification("keep")
	c.RecordStageTransition("compare")
	c.RecordMutationResult("album_move", true)
	c.RecordImportStatus(200)
	c.RecordThumbnailLatency(500 * time.Millisecond)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"photozen_classification_total",
		"photozen_stage_transition_total",
		"photozen_mutation_total",
		"photozen_import_status_total",
		"photozen_thumbnail_latency_seconds",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordClassification("keep")
	c2.RecordClassification("keep")
	c2.RecordClassification("keep")

	metrics1, _ := reg1.Gather()
	metrics2, _ := reg2.Gather()

	var val1, val2 float64
	for _, mf := range metrics1 {
		if mf.GetName() == "photozen_classification_total" {
			val1 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	for _, mf := range metrics2 {
		if mf.GetName() == "photozen_classification_total" {
			val2 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if val1 != 1 {
		t.Errorf("reg1 classification = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 classification = %v, want 2", val2)
	}
}
