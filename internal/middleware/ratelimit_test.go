package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// okHandler はレート制限を通過したリクエストに200を返す。
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// doRequest は指定した接続元アドレスでミドルウェアにリクエストを送る。
func doRequest(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/photos", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// TestRateLimiter_AllowsRequestsWithinLimit はバースト内のリクエストがすべて通過することを検証する。
func TestRateLimiter_AllowsRequestsWithinLimit(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0),
		GeneralBurst:    5,
		HeavyRate:       rate.Limit(0.1),
		HeavyBurst:      6,
		CleanupInterval: time.Minute,
	})
	defer limiter.Stop()

	handler := limiter.GeneralMiddleware()(okHandler)

	for i := 0; i < 5; i++ {
		w := doRequest(handler, "10.0.0.1:50000")
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}
}

// TestRateLimiter_ExceedingLimit_Returns429 はバーストを超えたリクエストが429で拒否されることを検証する。
func TestRateLimiter_ExceedingLimit_Returns429(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    3,
		HeavyRate:       rate.Limit(0.1),
		HeavyBurst:      6,
		CleanupInterval: time.Minute,
	})
	defer limiter.Stop()

	handler := limiter.GeneralMiddleware()(okHandler)

	for i := 0; i < 3; i++ {
		w := doRequest(handler, "10.0.0.1:50000")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	w := doRequest(handler, "10.0.0.1:50000")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

// TestRateLimiter_RetryAfterHeader は429レスポンスにRetry-Afterヘッダーが含まれることを検証する。
func TestRateLimiter_RetryAfterHeader(t *testing.T) {
	// レート0.1 req/secなら次のトークンまで最大10秒
	limiter := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(4.0),
		GeneralBurst:    240,
		HeavyRate:       rate.Limit(0.1),
		HeavyBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer limiter.Stop()

	handler := limiter.HeavyMiddleware()(okHandler)

	doRequest(handler, "10.0.0.1:50000")
	w := doRequest(handler, "10.0.0.1:50000")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "10" {
		t.Errorf("Retry-After = %q, want %q", got, "10")
	}
}

// TestRateLimiter_IsolatesClients は別クライアントの制限が互いに影響しないことを検証する。
func TestRateLimiter_IsolatesClients(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    2,
		HeavyRate:       rate.Limit(0.1),
		HeavyBurst:      6,
		CleanupInterval: time.Minute,
	})
	defer limiter.Stop()

	handler := limiter.GeneralMiddleware()(okHandler)

	// クライアントAのバーストを使い切る
	doRequest(handler, "10.0.0.1:1111")
	doRequest(handler, "10.0.0.1:1111")
	if w := doRequest(handler, "10.0.0.1:1111"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("client A: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// クライアントBは影響を受けない
	if w := doRequest(handler, "10.0.0.2:2222"); w.Code != http.StatusOK {
		t.Errorf("client B: status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestRateLimiter_PortChangeDoesNotResetLimit は同一ホストからの接続がポートによらず同じ制限を共有することを検証する。
func TestRateLimiter_PortChangeDoesNotResetLimit(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    2,
		HeavyRate:       rate.Limit(0.1),
		HeavyBurst:      6,
		CleanupInterval: time.Minute,
	})
	defer limiter.Stop()

	handler := limiter.GeneralMiddleware()(okHandler)

	// 同じホストからポートを変えてリクエストしてもバーストは共有される
	doRequest(handler, "10.0.0.1:1111")
	doRequest(handler, "10.0.0.1:2222")
	if w := doRequest(handler, "10.0.0.1:3333"); w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

// TestRateLimiter_HeavyTierIsSeparate は重い操作の制限がAPI全般の制限と独立していることを検証する。
func TestRateLimiter_HeavyTierIsSeparate(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    5,
		HeavyRate:       rate.Limit(0.01),
		HeavyBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer limiter.Stop()

	general := limiter.GeneralMiddleware()(okHandler)
	heavy := limiter.HeavyMiddleware()(okHandler)

	// 重い操作のバーストを使い切る
	if w := doRequest(heavy, "10.0.0.1:50000"); w.Code != http.StatusOK {
		t.Fatalf("heavy request 1: status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := doRequest(heavy, "10.0.0.1:50000"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("heavy request 2: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// API全般のリクエストは引き続き通過する
	if w := doRequest(general, "10.0.0.1:50000"); w.Code != http.StatusOK {
		t.Errorf("general request: status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestRateLimiter_429ResponseIsJSON は429レスポンスが統一エラーフォーマットであることを検証する。
func TestRateLimiter_429ResponseIsJSON(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    1,
		HeavyRate:       rate.Limit(0.1),
		HeavyBurst:      6,
		CleanupInterval: time.Minute,
	})
	defer limiter.Stop()

	handler := limiter.GeneralMiddleware()(okHandler)

	doRequest(handler, "10.0.0.1:50000")
	w := doRequest(handler, "10.0.0.1:50000")

	resp := w.Result()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != "RATE_LIMITED" {
		t.Errorf("code = %q, want %q", body.Code, "RATE_LIMITED")
	}
	if body.Category != "system" {
		t.Errorf("category = %q, want %q", body.Category, "system")
	}
	if body.Action == "" {
		t.Error("action should not be empty")
	}
}

// TestRateLimiter_CleanupRemovesExpiredEntries は使われなくなったクライアントのエントリが削除されることを検証する。
func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0),
		GeneralBurst:    5,
		HeavyRate:       rate.Limit(0.1),
		HeavyBurst:      6,
		CleanupInterval: 20 * time.Millisecond,
	})
	defer limiter.Stop()

	handler := limiter.GeneralMiddleware()(okHandler)

	doRequest(handler, "10.0.0.1:50000")
	doRequest(handler, "10.0.0.2:50000")

	if count := limiter.GeneralLimiterCount(); count != 2 {
		t.Fatalf("limiter count = %d, want 2", count)
	}

	// TTL（クリーンアップ間隔の2倍）経過後に削除される
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if limiter.GeneralLimiterCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("limiter count = %d, want 0 after cleanup", limiter.GeneralLimiterCount())
}

// TestRateLimiter_ConcurrentRequests は並行リクエストでも安全に動作することを検証する。
func TestRateLimiter_ConcurrentRequests(t *testing.T) {
	limiter := NewRateLimiter(DefaultRateLimiterConfig())
	defer limiter.Stop()

	handler := limiter.GeneralMiddleware()(okHandler)

	var wg sync.WaitGroup
	addrs := []string{"10.0.0.1:1111", "10.0.0.2:2222", "10.0.0.3:3333", "10.0.0.4:4444"}
	for _, addr := range addrs {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(remoteAddr string) {
				defer wg.Done()
				doRequest(handler, remoteAddr)
			}(addr)
		}
	}
	wg.Wait()

	if count := limiter.GeneralLimiterCount(); count != len(addrs) {
		t.Errorf("limiter count = %d, want %d", count, len(addrs))
	}
}

// TestDefaultRateLimiterConfig は既定値を検証する。
func TestDefaultRateLimiterConfig(t *testing.T) {
	config := DefaultRateLimiterConfig()

	if got, want := float64(config.GeneralRate), 4.0; got != want {
		t.Errorf("GeneralRate = %v, want %v", got, want)
	}
	if config.GeneralBurst != 240 {
		t.Errorf("GeneralBurst = %d, want 240", config.GeneralBurst)
	}
	if got, want := float64(config.HeavyRate), 0.1; got != want {
		t.Errorf("HeavyRate = %v, want %v", got, want)
	}
	if config.HeavyBurst != 6 {
		t.Errorf("HeavyBurst = %d, want 6", config.HeavyBurst)
	}
	if config.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want %v", config.CleanupInterval, 5*time.Minute)
	}
}

// TestClientKey は接続元アドレスからホスト部分が取り出されることを検証する。
func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{"IPv4とポート", "192.168.1.10:54321", "192.168.1.10"},
		{"IPv6とポート", "[2001:db8::1]:54321", "2001:db8::1"},
		{"ポートなしはそのまま", "unix-socket", "unix-socket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr

			if got := clientKey(req); got != tt.want {
				t.Errorf("clientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
