package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// TestRouterIntegration_AuthAndRateLimitChain は
// 認証→レート制限のミドルウェアチェーンがchi.Routerで正しく動作することを検証する。
func TestRouterIntegration_AuthAndRateLimitChain(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    10,
		HeavyRate:       rate.Limit(0.01),
		HeavyBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer limiter.Stop()

	r := chi.NewRouter()

	// ヘルスチェックは認証不要
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// 認証が必要なルートグループ
	r.Group(func(r chi.Router) {
		r.Use(NewAuthMiddleware("router-test-token"))
		r.Use(limiter.GeneralMiddleware())

		r.Get("/api/photos", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"result": "photos"})
		})

		// 取り込みは追加で重い操作の制限がかかる
		r.With(limiter.HeavyMiddleware()).Post("/api/photos/import", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"result": "imported"})
		})
	})

	// テスト1: /health はトークンなしで通る
	t.Run("health_no_auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	// テスト2: GET /api/photos はトークンありで通る
	t.Run("GET_photos_with_token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/photos", nil)
		req.Header.Set("Authorization", "Bearer router-test-token")
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}

		var body map[string]string
		json.NewDecoder(w.Result().Body).Decode(&body)
		if body["result"] != "photos" {
			t.Errorf("result = %q, want %q", body["result"], "photos")
		}
	})

	// テスト3: GET /api/photos はトークンなしで401
	t.Run("GET_photos_no_token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/photos", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}

		var body ErrorResponseBody
		if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response body: %v", err)
		}
		if body.Code != "UNAUTHORIZED" {
			t.Errorf("code = %q, want %q", body.Code, "UNAUTHORIZED")
		}
	})

	// テスト4: POST /api/photos/import は重い操作のバーストを超えると429
	t.Run("POST_import_heavy_limit", func(t *testing.T) {
		send := func() *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/photos/import", nil)
			req.Header.Set("Authorization", "Bearer router-test-token")
			req.RemoteAddr = "10.0.0.9:40000"
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			return w
		}

		if w := send(); w.Code != http.StatusOK {
			t.Fatalf("request 1: status = %d, want %d", w.Code, http.StatusOK)
		}
		if w := send(); w.Code != http.StatusTooManyRequests {
			t.Errorf("request 2: status = %d, want %d", w.Code, http.StatusTooManyRequests)
		}
	})

	// テスト5: 重い操作の制限を受けてもAPI全般のルートは通る
	t.Run("GET_photos_after_heavy_limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/photos", nil)
		req.Header.Set("Authorization", "Bearer router-test-token")
		req.RemoteAddr = "10.0.0.9:40000"
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})
}
