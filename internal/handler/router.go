package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/photozen/internal/metrics"
	"github.com/hitoshi/photozen/internal/middleware"
)

// HealthPinger はヘルスチェックでのDB疎通確認のインターフェース。
// *sql.DBがそのまま満たす。
type HealthPinger interface {
	PingContext(ctx context.Context) error
}

// WebSocketHandler はWebSocket接続の受け入れ用インターフェース。
type WebSocketHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	APIToken          string
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// ヘルスチェック・メトリクス
	HealthPinger    HealthPinger
	MetricsGatherer prometheus.Gatherer

	// セッション
	WorkflowService WorkflowServiceInterface

	// 写真
	PhotoService     PhotoServiceInterface
	ThumbnailService ThumbnailRenderer
	MediaResolver    MediaResolver

	// アルバム
	AlbumService AlbumServiceInterface
	PhotoLister  AlbumPhotoLister

	// ライブラリ
	LibraryService LibraryStatusService
	ScanTrigger    ScanTrigger
	ImportService  ImportService

	// リアルタイム配信
	Realtime WebSocketHandler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → Auth → RateLimit(General)
//
// /health と /metrics は認証の外に配置する。
// 重い操作（スキャン起動・リモート取り込み）には追加でHeavyのレート制限がかかる。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())

	sessionHandler := NewSessionHandler(deps.WorkflowService)
	photoHandler := NewPhotoHandler(deps.PhotoService, deps.ThumbnailService, deps.MediaResolver)
	albumHandler := NewAlbumHandler(deps.AlbumService, deps.PhotoLister)
	libraryHandler := NewLibraryHandler(deps.LibraryService, deps.ScanTrigger, deps.ImportService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthPinger))
	r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.APIToken))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 片づけセッション
		r.Route("/api/session", func(r chi.Router) {
			r.Post("/", sessionHandler.Start)
			r.Get("/", sessionHandler.Get)
			r.Post("/swipes", sessionHandler.Swipe)
			r.Post("/compare", sessionHandler.Compare)
			r.Post("/classify", sessionHandler.Classify)
			r.Get("/classify/next", sessionHandler.ClassifyNext)
			r.Post("/trash/restore", sessionHandler.RestoreTrash)
			r.Post("/trash/purge", sessionHandler.PurgeTrash)
			r.Post("/skip", sessionHandler.RequestSkip)
			r.Post("/skip/confirm", sessionHandler.ConfirmSkip)
			r.Post("/skip/decline", sessionHandler.DeclineSkip)
			r.Post("/exit", sessionHandler.RequestExit)
			r.Post("/exit/confirm", sessionHandler.ConfirmExit)
			r.Post("/exit/decline", sessionHandler.DeclineExit)
			r.Post("/finish", sessionHandler.Finish)
		})

		// 写真カタログ
		r.Route("/api/photos", func(r chi.Router) {
			r.Get("/", photoHandler.ListPhotos)

			// POST /api/photos/import - リモート取り込み（重い操作のレート制限を追加）
			r.With(deps.RateLimiter.HeavyMiddleware()).Post("/import", libraryHandler.ImportPhoto)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", photoHandler.GetPhoto)
				r.Patch("/status", photoHandler.UpdateStatus)
				r.Get("/file", photoHandler.ServeFile)
				r.Get("/thumbnail", photoHandler.Thumbnail)
			})
		})

		// アルバム管理
		r.Route("/api/albums", func(r chi.Router) {
			r.Get("/", albumHandler.ListAlbums)
			r.Post("/", albumHandler.CreateAlbum)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", albumHandler.GetAlbum)
				r.Patch("/", albumHandler.UpdateAlbum)
				r.Delete("/", albumHandler.DeleteAlbum)
				r.Get("/photos", albumHandler.ListAlbumPhotos)
			})
		})

		// ライブラリ管理
		r.Route("/api/library", func(r chi.Router) {
			// POST /api/library/scan - 再スキャン起動（重い操作のレート制限を追加）
			r.With(deps.RateLimiter.HeavyMiddleware()).Post("/scan", libraryHandler.TriggerScan)
			r.Get("/status", libraryHandler.GetStatus)
		})

		// WebSocketイベント配信
		if deps.Realtime != nil {
			r.Get("/api/ws", deps.Realtime.ServeWS)
		}
	})

	return r
}

// healthResponse はヘルスチェックのAPIレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthHandler は死活確認のハンドラーを返す。
// DBへの疎通が取れない場合は503を返す。
func NewHealthHandler(pinger HealthPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pinger.PingContext(ctx); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			writeJSONResponse(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}

		writeJSONResponse(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// SetupSessionRoutes は片づけセッション関連のルーティングを設定したchi.Routerを返す。
func SetupSessionRoutes(service WorkflowServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewSessionHandler(service)

	r.Route("/api/session", func(r chi.Router) {
		r.Post("/", h.Start)
		r.Get("/", h.Get)
		r.Post("/swipes", h.Swipe)
		r.Post("/compare", h.Compare)
		r.Post("/classify", h.Classify)
		r.Get("/classify/next", h.ClassifyNext)
		r.Post("/trash/restore", h.RestoreTrash)
		r.Post("/trash/purge", h.PurgeTrash)
		r.Post("/skip", h.RequestSkip)
		r.Post("/skip/confirm", h.ConfirmSkip)
		r.Post("/skip/decline", h.DeclineSkip)
		r.Post("/exit", h.RequestExit)
		r.Post("/exit/confirm", h.ConfirmExit)
		r.Post("/exit/decline", h.DeclineExit)
		r.Post("/finish", h.Finish)
	})

	return r
}

// SetupPhotoRoutes は写真カタログ関連のルーティングを設定したchi.Routerを返す。
func SetupPhotoRoutes(service PhotoServiceInterface, thumbnails ThumbnailRenderer, media MediaResolver) http.Handler {
	r := chi.NewRouter()
	h := NewPhotoHandler(service, thumbnails, media)

	r.Route("/api/photos", func(r chi.Router) {
		r.Get("/", h.ListPhotos)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPhoto)
			r.Patch("/status", h.UpdateStatus)
			r.Get("/file", h.ServeFile)
			r.Get("/thumbnail", h.Thumbnail)
		})
	})

	return r
}

// SetupAlbumRoutes はアルバム管理関連のルーティングを設定したchi.Routerを返す。
func SetupAlbumRoutes(service AlbumServiceInterface, photos AlbumPhotoLister) http.Handler {
	r := chi.NewRouter()
	h := NewAlbumHandler(service, photos)

	r.Route("/api/albums", func(r chi.Router) {
		r.Get("/", h.ListAlbums)
		r.Post("/", h.CreateAlbum)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetAlbum)
			r.Patch("/", h.UpdateAlbum)
			r.Delete("/", h.DeleteAlbum)
			r.Get("/photos", h.ListAlbumPhotos)
		})
	})

	return r
}

// SetupLibraryRoutes はライブラリ管理関連のルーティングを設定したchi.Routerを返す。
func SetupLibraryRoutes(status LibraryStatusService, scans ScanTrigger, importer ImportService) http.Handler {
	r := chi.NewRouter()
	h := NewLibraryHandler(status, scans, importer)

	r.Post("/api/library/scan", h.TriggerScan)
	r.Get("/api/library/status", h.GetStatus)
	r.Post("/api/photos/import", h.ImportPhoto)

	return r
}
