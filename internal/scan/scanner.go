// Package scan はライブラリルートを走査して写真カタログを同期する。
// ファイルの同一性は相対パスを最優先とし、パスが変わった場合は
// content_hashの一致で移動・リネームを検出する。ゴミ箱退避先などの
// 隠しディレクトリは走査対象に含めない。
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/photozen/internal/metrics"
	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/repository"
	"github.com/hitoshi/photozen/internal/workflow"
)

// missingFileMessage はファイルがライブラリから消えた写真に記録するエラーメッセージ。
// ファイルが再び見つかったときはスキャナーがこのメッセージだけを解除する。
const missingFileMessage = "ファイルがライブラリ内に見つかりません"

// Summary は1回のスキャンの結果集計。
type Summary struct {
	Scanned  int // 走査した画像ファイル数
	Added    int // 新規登録した写真数
	Updated  int // 内容の変化を反映した写真数
	Moved    int // 移動・リネームを検出した写真数
	Removed  int // ファイル消失によりカタログから削除した写真数
	Flagged  int // ファイル消失を記録した仕分け済み写真数
	Duration time.Duration
}

// Scanner はライブラリルートと写真カタログを同期する。
// Scanは並行実行を想定しない。Schedulerが直列に呼び出す。
type Scanner struct {
	root      string
	photos    repository.PhotoRepository
	sink      workflow.EventSink
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewScanner はスキャナーを生成する。rootはライブラリルートの絶対パス。
func NewScanner(
	root string,
	photos repository.PhotoRepository,
	sink workflow.EventSink,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		root:      root,
		photos:    photos,
		sink:      sink,
		collector: collector,
		logger:    logger,
	}
}

// Scan はライブラリを1回走査し、カタログとの差分を反映する。
// 個々のファイルの読み取り失敗やDB更新失敗はログに記録してスキャンを継続し、
// 走査自体やカタログ読み込みの失敗のみエラーとして返す。
func (s *Scanner) Scan(ctx context.Context) (*Summary, error) {
	start := time.Now()

	// 1. ファイルシステムの走査
	entries, err := s.walk()
	if err != nil {
		return nil, err
	}
	fileSet := make(map[string]bool, len(entries))
	for _, e := range entries {
		fileSet[e.relPath] = true
	}

	// 2. カタログの読み込み
	catalog, err := s.photos.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("カタログの読み込みに失敗しました: %w", err)
	}
	byRelPath := make(map[string]*model.Photo, len(catalog))
	for _, p := range catalog {
		byRelPath[p.RelPath] = p
	}

	summary := &Summary{Scanned: len(entries)}
	accounted := make(map[string]bool, len(entries))

	// 3. ファイルとカタログの突き合わせ
	for _, entry := range entries {
		accounted[entry.relPath] = true

		if existing := byRelPath[entry.relPath]; existing != nil {
			s.clearMissingMark(ctx, existing)
			// サイズが一致すれば未変更とみなし、読み取りを省略する
			if existing.SizeBytes == entry.size {
				continue
			}
			if err := s.refresh(ctx, existing, entry); err != nil {
				s.logger.Error("写真メタデータの更新に失敗しました",
					slog.String("rel_path", entry.relPath),
					slog.String("error", err.Error()),
				)
				continue
			}
			summary.Updated++
			continue
		}

		scanned, err := Extract(entry.absPath, entry.relPath)
		if err != nil {
			s.logger.Warn("ファイルの読み取りに失敗しました",
				slog.String("rel_path", entry.relPath),
				slog.String("error", err.Error()),
			)
			continue
		}

		// content_hashの一致で移動・リネームを検出する。
		// 一致した写真の旧パスがまだディスク上に存在する場合は複製なので新規扱いにする。
		moved, err := s.photos.FindByContentHash(ctx, scanned.ContentHash)
		if err != nil {
			s.logger.Error("content_hashでの検索に失敗しました",
				slog.String("rel_path", entry.relPath),
				slog.String("error", err.Error()),
			)
			continue
		}
		if moved != nil && !fileSet[moved.RelPath] {
			accounted[moved.RelPath] = true
			applyScan(moved, scanned)
			if err := s.photos.UpdateMetadata(ctx, moved); err != nil {
				s.logger.Error("移動した写真の更新に失敗しました",
					slog.String("rel_path", entry.relPath),
					slog.String("error", err.Error()),
				)
				continue
			}
			s.clearMissingMark(ctx, moved)
			summary.Moved++
			continue
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
			Status:      model.PhotoStatusUnsorted,
			TakenAt:     scanned.TakenAt,
			Latitude:    scanned.Latitude,
			Longitude:   scanned.Longitude,
			AddedAt:     now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.photos.Create(ctx, photo); err != nil {
			s.logger.Error("写真の登録に失敗しました",
				slog.String("rel_path", entry.relPath),
				slog.String("error", err.Error()),
			)
			continue
		}
		summary.Added++
	}

	// 4. 消えたファイルの整理。未仕分け・保留はカタログから削除し、
	// 仕分け済み（keep・trash）は手動復旧の余地を残すため行を残して記録する。
	for _, p := range catalog {
		if accounted[p.RelPath] || p.PurgedAt != nil {
			continue
		}
		switch p.Status {
		case model.PhotoStatusUnsorted, model.PhotoStatusMaybe:
			if err := s.photos.DeleteByID(ctx, p.ID); err != nil {
				s.logger.Error("消えた写真の削除に失敗しました",
					slog.String("photo_id", p.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			summary.Removed++
		default:
			if p.LastError == missingFileMessage {
				continue
			}
			if err := s.photos.UpdateLastError(ctx, p.ID, missingFileMessage); err != nil {
				s.logger.Error("ファイル消失の記録に失敗しました",
					slog.String("photo_id", p.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			summary.Flagged++
		}
	}

	summary.Duration = time.Since(start)

	// 5. 記録と通知。変化がないスキャンはイベントを配信しない。
	if s.collector != nil {
		s.collector.RecordScanCompleted(summary.Added, summary.Updated+summary.Moved, summary.Removed, summary.Duration)
	}
	if summary.Added+summary.Updated+summary.Moved+summary.Removed+summary.Flagged > 0 {
		s.sink.Publish(workflow.ScanCompleted{
			Added:    summary.Added,
			Updated:  summary.Updated + summary.Moved,
			Removed:  summary.Removed,
			Duration: summary.Duration,
		})
	}

	s.logger.Info("ライブラリスキャンが完了しました",
		slog.Int("scanned", summary.Scanned),
		slog.Int("added", summary.Added),
		slog.Int("updated", summary.Updated),
		slog.Int("moved", summary.Moved),
		slog.Int("removed", summary.Removed),
		slog.Int("flagged", summary.Flagged),
		slog.Float64("duration_ms", float64(summary.Duration.Milliseconds())),
	)

	return summary, nil
}

// fileEntry は走査中に見つけた画像ファイル1件を表す。
type fileEntry struct {
	absPath string
	relPath string
	size    int64
}

// walk はライブラリルート配下の画像ファイルを列挙する。
// 隠しディレクトリ（ゴミ箱退避先 .photozen-trash を含む）は走査しない。
// 個々のパスへのアクセス失敗は警告ログに記録して走査を継続する。
func (s *Scanner) walk() ([]fileEntry, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("ライブラリルートが存在しません: %s", s.root)
		}
		return nil, fmt.Errorf("ライブラリルートへアクセスできません: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ライブラリルートがディレクトリではありません: %s", s.root)
	}

	var entries []fileEntry
	err = filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			s.logger.Warn("スキャン中にパスへアクセスできませんでした",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if info.IsDir() {
			if path != s.root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsImageFile(path) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			s.logger.Warn("相対パスの算出に失敗しました",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		}
		entries = append(entries, fileEntry{
			absPath: path,
			relPath: filepath.ToSlash(rel),
			size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ライブラリの走査に失敗しました: %w", err)
	}
	return entries, nil
}

// refresh は内容が変わったファイルを読み取り直してカタログへ反映する。
func (s *Scanner) refresh(ctx context.Context, photo *model.Photo, entry fileEntry) error {
	scanned, err := Extract(entry.absPath, entry.relPath)
	if err != nil {
		return err
	}
	applyScan(photo, scanned)
	return s.photos.UpdateMetadata(ctx, photo)
}

// clearMissingMark はファイル消失の記録が残っている写真の記録を解除する。
// 他の操作エラーの記録は対象外とし、スキャナー自身が付けた記録だけを消す。
func (s *Scanner) clearMissingMark(ctx context.Context, photo *model.Photo) {
	if photo.LastError != missingFileMessage {
		return
	}
	if err := s.photos.UpdateLastError(ctx, photo.ID, ""); err != nil {
		s.logger.Warn("ファイル消失記録の解除に失敗しました",
			slog.String("photo_id", photo.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	photo.LastError = ""
}

// applyScan は読み取ったファイル属性を写真モデルへ反映する。
func applyScan(photo *model.Photo, scanned *model.ScannedPhoto) {
	photo.RelPath = scanned.RelPath
	photo.DisplayName = scanned.DisplayName
	photo.Width = scanned.Width
	photo.Height = scanned.Height
	photo.SizeBytes = scanned.SizeBytes
	photo.ContentHash = scanned.ContentHash
	photo.TakenAt = scanned.TakenAt
	photo.Latitude = scanned.Latitude
	photo.Longitude = scanned.Longitude
}
