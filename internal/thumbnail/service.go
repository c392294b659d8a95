// Package thumbnail は写真サムネイルの生成とメモリ内キャッシュを提供する。
package thumbnail

import (
	"bytes"
	"container/list"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "image/gif" // GIFデコーダーの登録
	_ "image/png" // PNGデコーダーの登録

	"github.com/nfnt/resize"

	"github.com/hitoshi/photozen/internal/mediastore"
	"github.com/hitoshi/photozen/internal/metrics"
	"github.com/hitoshi/photozen/internal/model"
)

const (
	// defaultWidth は幅未指定時のサムネイル幅（ピクセル）。
	defaultWidth = 320
	// maxWidth は要求可能なサムネイル幅の上限（ピクセル）。
	maxWidth = 1600
	// jpegQuality はサムネイルJPEGのエンコード品質。
	jpegQuality = 85
	// defaultMaxEntries はキャッシュエントリ数のデフォルト上限。
	defaultMaxEntries = 256
)

// ErrUnsupportedFormat はデコーダー未対応の画像形式を示すエラー。
// RAW形式などGoのimageパッケージで読めないファイルで返される。
var ErrUnsupportedFormat = errors.New("サムネイル非対応の画像形式")

// Service は写真のサムネイルを生成し、LRUキャッシュに保持する。
// キャッシュキーにコンテンツハッシュを含むため、スキャンで
// ファイルの変更が検出されると古いエントリは自然に無効化される。
type Service struct {
	store      *mediastore.Store
	collector  metrics.MetricsCollector
	logger     *slog.Logger
	maxEntries int

	mu    sync.Mutex
	cache map[string]*list.Element
	order *list.List // 先頭が最近使用、末尾が破棄候補
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewService は新しいServiceを生成する。
// maxEntriesが0以下の場合はデフォルト値（256）を使用する。collectorはnil可。
func NewService(store *mediastore.Store, collector metrics.MetricsCollector, logger *slog.Logger, maxEntries int) *Service {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Service{
		store:      store,
		collector:  collector,
		logger:     logger,
		maxEntries: maxEntries,
		cache:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Render は写真のサムネイルをJPEGバイト列で返す。
// widthが0以下の場合はデフォルト幅、上限超過の場合は上限幅に丸める。
// 元画像が要求幅より小さい場合は拡大せずそのままの寸法で返す。
// 生成結果はキャッシュされ、同一写真・同一幅の再要求はファイルを読まない。
func (s *Service) Render(photo *model.Photo, width int) ([]byte, error) {
	width = clampWidth(width)
	key := cacheKey(photo, width)

	if data, ok := s.lookup(key); ok {
		return data, nil
	}

	start := time.Now()
	data, err := s.generate(photo, width)
	if err != nil {
		return nil, err
	}

	if s.collector != nil {
		s.collector.RecordThumbnailLatency(time.Since(start))
	}

	s.insert(key, data)
	return data, nil
}

// generate は写真ファイルを読み込み、縮小してJPEGにエンコードする。
func (s *Service) generate(photo *model.Photo, width int) ([]byte, error) {
	absPath, err := s.store.Resolve(photo.RelPath)
	if err != nil {
		return nil, fmt.Errorf("写真パスの解決に失敗: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("写真ファイルの読み込みに失敗: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("サムネイル生成に失敗しました",
			slog.String("photo_id", photo.ID),
			slog.String("rel_path", photo.RelPath),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, photo.RelPath)
	}

	// 元画像が要求幅以下なら拡大しない
	if img.Bounds().Dx() > width {
		img = resize.Resize(uint(width), 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("サムネイルのエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}

// lookup はキャッシュからエントリを取得し、LRU順を更新する。
func (s *Service) lookup(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.cache[key]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).data, true
}

// insert はエントリをキャッシュに追加し、上限超過時は最も使われて
// いないエントリを破棄する。
func (s *Service) insert(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.cache[key]; ok {
		s.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).data = data
		return
	}

	elem := s.order.PushFront(&cacheEntry{key: key, data: data})
	s.cache[key] = elem

	if s.order.Len() > s.maxEntries {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// cacheKey は写真ID・幅・コンテンツハッシュからキャッシュキーを作る。
func cacheKey(photo *model.Photo, width int) string {
	return fmt.Sprintf("%s:%d:%s", photo.ID, width, photo.ContentHash)
}

// clampWidth は要求幅を有効範囲に丸める。
func clampWidth(width int) int {
	if width <= 0 {
		return defaultWidth
	}
	if width > maxWidth {
		return maxWidth
	}
	return width
}
