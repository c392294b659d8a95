package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/photozen/internal/mediastore"
	"github.com/hitoshi/photozen/internal/metrics"
	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/repository"
	"github.com/hitoshi/photozen/internal/scan"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Importer はリモートURLからの写真取り込みサービス。
// SSRF検証付きHTTPクライアントで画像を取得し、importsディレクトリへ
// 保存してカタログへ登録する。
type Importer struct {
	photos    repository.PhotoRepository
	store     *mediastore.Store
	ssrfGuard SSRFValidator
	collector metrics.MetricsCollector
	logger    *slog.Logger
	timeout   time.Duration
	maxSize   int64
}

// NewImporter はImporterの新しいインスタンスを生成する。collectorはnil可。
func NewImporter(
	photos repository.PhotoRepository,
	store *mediastore.Store,
	ssrfGuard SSRFValidator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	timeout time.Duration,
	maxSize int64,
) *Importer {
	return &Importer{
		photos:    photos,
		store:     store,
		ssrfGuard: ssrfGuard,
		collector: collector,
		logger:    logger,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// Import はリモートURLから画像を取り込み、カタログへ登録した写真を返す。
// 1. SSRF検証を実行
// 2. URLにHTTPリクエストを送信
// 3. 画像への直接URLの場合はそのまま保存
// 4. HTMLページの場合はog:image等のメタタグから画像URLを検出して取得
// 5. 画像を検出できない場合はエラー（原因カテゴリ + 対処方法）を返す
func (i *Importer) Import(ctx context.Context, rawURL string) (*model.Photo, error) {
	start := time.Now()

	if rawURL == "" {
		return nil, model.NewInvalidURLError("URLが入力されていません")
	}

	// SSRF検証
	if err := i.ssrfGuard.ValidateURL(rawURL); err != nil {
		i.logger.Warn("SSRF検証に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSSRFBlockedError()
	}

	resp, err := i.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	// 画像への直接URL
	if IsImageContent(resp.contentType, resp.body) {
		return i.saveAndCatalog(ctx, resp, rawURL, start)
	}

	if !IsHTMLContent(resp.contentType) {
		return nil, model.NewNotAnImageError(resp.contentType)
	}

	// HTMLページ: headタグのメタタグから画像URLを検出
	candidates := ParseImageLinksFromHTML(resp.body, rawURL)
	best := SelectBestImage(candidates)
	if best == nil {
		return nil, model.NewNotAnImageError(resp.contentType)
	}

	// 検出した画像URLも改めてSSRF検証する
	if err := i.ssrfGuard.ValidateURL(best.URL); err != nil {
		i.logger.Warn("検出された画像URLのSSRF検証に失敗しました",
			slog.String("url", best.URL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSSRFBlockedError()
	}

	imageResp, err := i.fetch(ctx, best.URL)
	if err != nil {
		return nil, err
	}
	if !IsImageContent(imageResp.contentType, imageResp.body) {
		return nil, model.NewNotAnImageError(imageResp.contentType)
	}

	return i.saveAndCatalog(ctx, imageResp, best.URL, start)
}

// fetchResult は取得したレスポンスの内容。
type fetchResult struct {
	body        []byte
	contentType string
	statusCode  int
}

// fetch はSSRF防止付きクライアントでURLを取得する。
// サイズ上限を超えるレスポンスは読み取りを打ち切ってエラーにする。
func (i *Importer) fetch(ctx context.Context, rawURL string) (*fetchResult, error) {
	client := i.ssrfGuard.NewSafeClient(i.timeout, i.maxSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}

	req.Header.Set("User-Agent", "PhotoZen/1.0 Photo Importer")
	req.Header.Set("Accept", "image/*, text/html;q=0.8, */*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		i.logger.Warn("HTTPリクエストに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewImportFailedError(err.Error())
	}
	defer resp.Body.Close()

	if i.collector != nil {
		i.collector.RecordImportStatus(resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewImportFailedError(
			fmt.Sprintf("リモートサーバーがステータス %d を返しました", resp.StatusCode))
	}

	if resp.ContentLength > i.maxSize {
		return nil, model.NewImportTooLargeError(i.maxSize)
	}

	// 上限+1バイトまで読んで超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, i.maxSize+1))
	if err != nil {
		return nil, model.NewImportFailedError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}
	if int64(len(body)) > i.maxSize {
		return nil, model.NewImportTooLargeError(i.maxSize)
	}

	return &fetchResult{
		body:        body,
		contentType: resp.Header.Get("Content-Type"),
		statusCode:  resp.StatusCode,
	}, nil
}

// saveAndCatalog は取得した画像をimportsディレクトリへ保存し、カタログへ登録する。
func (i *Importer) saveAndCatalog(ctx context.Context, resp *fetchResult, sourceURL string, start time.Time) (*model.Photo, error) {
	fileName := importFileName(sourceURL, resp.contentType)

	relPath, err := i.store.SaveNew(mediastore.ImportDirName, fileName, resp.body)
	if err != nil {
		i.logger.Error("取り込みファイルの保存に失敗しました",
			slog.String("url", sourceURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewImportFailedError("ファイルの保存に失敗しました")
	}

	absPath, err := i.store.Resolve(relPath)
	if err != nil {
		return nil, model.NewImportFailedError("保存先パスの解決に失敗しました")
	}

	scanned, err := scan.Extract(absPath, relPath)
	if err != nil {
		return nil, model.NewImportFailedError("画像メタデータの読み取りに失敗しました")
	}

	now := time.Now()
	photo := &model.Photo{
		ID:          uuid.New().String(),
		RelPath:     scanned.RelPath,
		DisplayName: scanned.DisplayName,
		Width:       scanned.Width,
		Height:      scanned.Height,
		SizeBytes:   scanned.SizeBytes,
		ContentHash: scanned.ContentHash,
		TakenAt:     scanned.TakenAt,
		Latitude:    scanned.Latitude,
		Longitude:   scanned.Longitude,
		Status:      model.PhotoStatusUnsorted,
		AddedAt:     now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := i.photos.Create(ctx, photo); err != nil {
		return nil, fmt.Errorf("写真レコードの作成に失敗: %w", err)
	}

	duration := time.Since(start)
	i.logger.Info("リモート画像の取り込みが完了しました",
		slog.String("photo_id", photo.ID),
		slog.String("url", sourceURL),
		slog.String("rel_path", photo.RelPath),
		slog.Int64("size_bytes", photo.SizeBytes),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return photo, nil
}

// imageExtByType はContent-Typeから補う拡張子。
var imageExtByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/heif": ".heif",
}

// importFileName は取り込み保存用のファイル名を導出する。
// URLパスの末尾要素を使い、画像拡張子が無い場合はContent-Typeから補う。
// パスからファイル名を導出できない場合は取り込み日時から生成する。
func importFileName(sourceURL, contentType string) string {
	name := ""
	if u, err := url.Parse(sourceURL); err == nil {
		base := path.Base(u.Path)
		if base != "." && base != "/" {
			name = base
		}
	}
	if name == "" {
		name = "import-" + time.Now().UTC().Format("20060102-150405")
	}
	if scan.IsImageFile(name) {
		return name
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	if ext, ok := imageExtByType[strings.ToLower(mediaType)]; ok {
		return name + ext
	}
	return name + ".jpg"
}
