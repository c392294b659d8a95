package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/photozen/internal/album"
	"github.com/hitoshi/photozen/internal/config"
	"github.com/hitoshi/photozen/internal/database"
	"github.com/hitoshi/photozen/internal/handler"
	"github.com/hitoshi/photozen/internal/ingest"
	"github.com/hitoshi/photozen/internal/logger"
	"github.com/hitoshi/photozen/internal/markdown"
	"github.com/hitoshi/photozen/internal/mediastore"
	"github.com/hitoshi/photozen/internal/metrics"
	"github.com/hitoshi/photozen/internal/middleware"
	"github.com/hitoshi/photozen/internal/photo"
	"github.com/hitoshi/photozen/internal/realtime"
	"github.com/hitoshi/photozen/internal/repository"
	"github.com/hitoshi/photozen/internal/scan"
	"github.com/hitoshi/photozen/internal/security"
	"github.com/hitoshi/photozen/internal/swipe"
	"github.com/hitoshi/photozen/internal/thumbnail"
	"github.com/hitoshi/photozen/internal/worker/cleanup"
	"github.com/hitoshi/photozen/internal/worker/mutate"
	"github.com/hitoshi/photozen/internal/workflow"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("library_root", cfg.LibraryRoot),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	albumRepo := repository.NewPostgresAlbumRepo(db)
	photoRepo := repository.NewPostgresPhotoRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)
	mutationRepo := repository.NewPostgresMutationRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. メディアストアとセキュリティサービスの初期化
	store := mediastore.NewStore(cfg.LibraryRoot)
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// バックグラウンド構成要素（ハブ・スケジューラ）の停止用コンテキスト
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. リアルタイム配信の初期化
	hub := realtime.NewHub(slog.Default())
	go hub.Run(ctx)
	sink := realtime.NewSink(hub, slog.Default())

	// 6. ドメインサービスの初期化
	workflowService := workflow.NewService(
		sessionRepo, photoRepo, eventRepo, mutationRepo, albumRepo,
		sink, collector,
		workflow.Config{
			Tuning: swipe.Tuning{
				CommitThreshold:  cfg.SwipeCommitThreshold,
				VisibleThreshold: cfg.SwipeVisibleThreshold,
			},
			ComboRule: swipe.ComboRule{
				LevelStep: cfg.ComboLevelStep,
				MaxLevel:  cfg.ComboMaxLevel,
			},
			CardSortingAlbumEnabled: cfg.CardSortingAlbumEnabled,
		},
	)
	photoService := photo.NewService(photoRepo, eventRepo, mutationRepo, cfg.TodayQuota)
	albumService := album.NewService(albumRepo, photoRepo, markdown.NewRenderer(sanitizer))
	thumbnailService := thumbnail.NewService(store, collector, slog.Default(), cfg.ThumbnailMaxEntries)
	importer := ingest.NewImporter(
		photoRepo, store, ssrfGuard, collector,
		slog.Default(), cfg.ImportTimeout, cfg.ImportMaxSize,
	)

	// 7. スキャンスケジューラの起動
	// POST /api/library/scan の起動要求を受けるため、serveモードでもスケジューラを動かす。
	scanner := scan.NewScanner(cfg.LibraryRoot, photoRepo, sink, collector, slog.Default())
	scheduler := scan.NewScheduler(scanner, slog.Default())
	go scheduler.Start(ctx, cfg.ScanInterval)

	// 8. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレート上限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.HeavyRate = rate.Limit(float64(cfg.RateLimitHeavy) / 60.0)
	rateLimiterCfg.HeavyBurst = cfg.RateLimitHeavy
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		APIToken:          cfg.APIToken,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		HealthPinger:    db,
		MetricsGatherer: registry,

		WorkflowService: workflowService,

		PhotoService:     photoService,
		ThumbnailService: thumbnailService,
		MediaResolver:    store,

		AlbumService: albumService,
		PhotoLister:  photoService,

		LibraryService: photoService,
		ScanTrigger:    scheduler,
		ImportService:  importer,

		Realtime: hub,
	}

	router := handler.NewRouter(deps)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// ライブラリスキャン・ファイル操作実行・保持期間クリーンアップを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	albumRepo := repository.NewPostgresAlbumRepo(db)
	photoRepo := repository.NewPostgresPhotoRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)
	mutationRepo := repository.NewPostgresMutationRepo(db)

	// 3. メトリクスとメディアストアの初期化
	collector := metrics.NewCollector(prometheus.NewRegistry())
	store := mediastore.NewStore(cfg.LibraryRoot)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// 4. イベント配信の初期化
	// workerプロセスにWS購読者はいないため、ハブは空配信になる。
	hub := realtime.NewHub(slog.Default())
	go hub.Run(ctx)
	sink := realtime.NewSink(hub, slog.Default())

	// 5. スキャナーとライブラリ監視の初期化
	scanner := scan.NewScanner(cfg.LibraryRoot, photoRepo, sink, collector, slog.Default())
	scheduler := scan.NewScheduler(scanner, slog.Default())

	watcher := scan.NewWatcher(cfg.LibraryRoot, 0, scheduler.Trigger, slog.Default())
	if err := watcher.Start(ctx); err != nil {
		// 監視が使えなくても定期スキャンは動くため、起動自体は継続する
		slog.Warn("library watcher unavailable", slog.String("error", err.Error()))
	} else {
		defer watcher.Stop()
	}

	// 6. ファイル操作エグゼキュータの起動
	executor := mutate.NewExecutor(
		mutationRepo, photoRepo, albumRepo, store,
		sink, collector, slog.Default(), cfg.MutationMaxConcurrent,
	)
	go executor.Start(ctx, cfg.MutationInterval)

	// 7. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(photoRepo, sessionRepo, eventRepo, mutationRepo, store, slog.Default())
	cleanupJob.TrashRetentionDays = cfg.TrashRetentionDays
	cleanupJob.EventRetentionDays = cfg.EventRetentionDays

	slog.Info("worker starting",
		slog.Duration("scan_interval", cfg.ScanInterval),
		slog.Duration("mutation_interval", cfg.MutationInterval),
		slog.Int("mutation_max_concurrent", cfg.MutationMaxConcurrent),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// スキャンスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.ScanInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
