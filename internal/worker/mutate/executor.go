// Package mutate は仕分け結果に伴うファイル操作の非同期実行を提供する。
// エグゼキュータとリトライ/バックオフ戦略を含む。仕分けステータスは
// 先に確定しているため、ここでの失敗がワークフローを巻き戻すことはない。
package mutate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/photozen/internal/mediastore"
	"github.com/hitoshi/photozen/internal/metrics"
	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/repository"
	"github.com/hitoshi/photozen/internal/workflow"
)

// listBatchSize は1サイクルで取得する操作の最大件数。
const listBatchSize = 100

// Executor はキューに積まれたファイル操作のスケジューリングと並列制御を行う。
// ティッカーで実行対象の操作を取得し、semaphoreパターンで
// 最大並列数を制御しながら実行する。
type Executor struct {
	mutations      repository.MediaMutationRepository
	photos         repository.PhotoRepository
	albums         repository.AlbumRepository
	store          *mediastore.Store
	sink           workflow.EventSink
	collector      metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
}

// NewExecutor はExecutorの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。collectorはnil可。
func NewExecutor(
	mutations repository.MediaMutationRepository,
	photos repository.PhotoRepository,
	albums repository.AlbumRepository,
	store *mediastore.Store,
	sink workflow.EventSink,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Executor {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Executor{
		mutations:      mutations,
		photos:         photos,
		albums:         albums,
		store:          store,
		sink:           sink,
		collector:      collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでエグゼキュータを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (e *Executor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("ファイル操作エグゼキュータを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", e.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := e.RunOnce(ctx); err != nil {
		e.logger.Error("ファイル操作サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("ファイル操作エグゼキュータを停止しました")
			return
		case <-ticker.C:
			if err := e.RunOnce(ctx); err != nil {
				e.logger.Error("ファイル操作サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は実行対象の操作を1回取得し、並列で実行する。
// semaphoreパターンで最大並列数を制御する。
func (e *Executor) RunOnce(ctx context.Context) error {
	start := time.Now()

	// 実行対象の操作を取得（FOR UPDATE SKIP LOCKED）
	mutations, err := e.mutations.ListDue(ctx, listBatchSize)
	if err != nil {
		return err
	}

	if len(mutations) == 0 {
		return nil
	}

	e.logger.Info("ファイル操作サイクルを開始します",
		slog.Int("mutation_count", len(mutations)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, e.maxConcurrency)
	var wg sync.WaitGroup

	for _, mutation := range mutations {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(m *model.MediaMutation) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			e.execute(ctx, m)
		}(mutation)
	}

	wg.Wait()

	duration := time.Since(start)
	e.logger.Info("ファイル操作サイクルが完了しました",
		slog.Int("mutation_count", len(mutations)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// execute は1件のファイル操作を実行し、結果を操作と写真に反映する。
func (e *Executor) execute(ctx context.Context, mutation *model.MediaMutation) {
	newRelPath, err := e.perform(ctx, mutation)
	if errors.Is(err, errMutationObsolete) {
		ApplySuccess(mutation)
		if updateErr := e.mutations.Update(ctx, mutation); updateErr != nil {
			e.logger.Error("操作状態の更新に失敗しました",
				slog.String("mutation_id", mutation.ID),
				slog.String("error", updateErr.Error()),
			)
		}
		e.logger.Info("写真の状態が変わったためファイル操作を取り消しました",
			slog.String("mutation_id", mutation.ID),
			slog.String("photo_id", mutation.PhotoID),
			slog.String("kind", string(mutation.Kind)),
		)
		return
	}
	if err == nil {
		err = e.recordSuccess(ctx, mutation, newRelPath)
	}

	result := ClassifyMutationError(err)
	switch result {
	case MutationResultOK:
		ApplySuccess(mutation)
	case MutationResultPermanent:
		ApplyPermanentFailure(mutation, err.Error())
	case MutationResultTransient:
		ApplyTransientFailure(mutation, err.Error())
	}

	if updateErr := e.mutations.Update(ctx, mutation); updateErr != nil {
		e.logger.Error("操作状態の更新に失敗しました",
			slog.String("mutation_id", mutation.ID),
			slog.String("error", updateErr.Error()),
		)
	}

	if e.collector != nil {
		e.collector.RecordMutationResult(string(mutation.Kind), result == MutationResultOK)
	}

	if result == MutationResultOK {
		e.logger.Info("ファイル操作が完了しました",
			slog.String("mutation_id", mutation.ID),
			slog.String("photo_id", mutation.PhotoID),
			slog.String("kind", string(mutation.Kind)),
			slog.String("rel_path", newRelPath),
		)
		return
	}

	// 失敗を写真にも記録してUIへ通知する
	willRetry := WillRetry(mutation)
	if recordErr := e.photos.UpdateLastError(ctx, mutation.PhotoID, mutation.LastError); recordErr != nil {
		e.logger.Warn("写真への失敗記録に失敗しました",
			slog.String("photo_id", mutation.PhotoID),
			slog.String("error", recordErr.Error()),
		)
	}
	e.sink.Publish(workflow.MutationFailed{
		PhotoID:   mutation.PhotoID,
		Kind:      mutation.Kind,
		Message:   mutation.LastError,
		WillRetry: willRetry,
	})

	if willRetry {
		e.logger.Warn("ファイル操作に失敗しました。再試行します",
			slog.String("mutation_id", mutation.ID),
			slog.String("photo_id", mutation.PhotoID),
			slog.String("kind", string(mutation.Kind)),
			slog.String("error", mutation.LastError),
			slog.Time("next_attempt_at", mutation.NextAttemptAt),
		)
	} else {
		e.logger.Error("ファイル操作を中止しました",
			slog.String("mutation_id", mutation.ID),
			slog.String("photo_id", mutation.PhotoID),
			slog.String("kind", string(mutation.Kind)),
			slog.String("error", mutation.LastError),
		)
	}
}

// perform は操作種別に応じてファイルを移動し、移動後の相対パスを返す。
func (e *Executor) perform(ctx context.Context, mutation *model.MediaMutation) (string, error) {
	photo, err := e.photos.FindByID(ctx, mutation.PhotoID)
	if err != nil {
		return "", err
	}
	if photo == nil {
		return "", errPhotoMissing
	}

	switch mutation.Kind {
	case model.MutationKindAlbumMove:
		album, err := e.albums.FindByID(ctx, mutation.DestAlbumID)
		if err != nil {
			return "", err
		}
		if album == nil {
			return "", errAlbumMissing
		}
		// album_idは仕分け時に設定済みのため、件数がこの写真の序数になる
		count, err := e.photos.CountByAlbum(ctx, album.ID)
		if err != nil {
			return "", err
		}
		return e.store.MoveToAlbum(photo, album, count)
	case model.MutationKindTrashMove:
		// キュー登録後に復元された写真と、退避済みの重複登録は移動しない
		if photo.Status != model.PhotoStatusTrash || photo.PurgedAt != nil {
			return "", errMutationObsolete
		}
		return e.store.MoveToTrash(photo)
	default:
		return "", fmt.Errorf("%w: %s", errUnknownKind, mutation.Kind)
	}
}

// recordSuccess は移動後の相対パスを写真に反映し、過去の失敗記録を解除する。
func (e *Executor) recordSuccess(ctx context.Context, mutation *model.MediaMutation, newRelPath string) error {
	switch mutation.Kind {
	case model.MutationKindAlbumMove:
		if err := e.photos.UpdateRelPath(ctx, mutation.PhotoID, newRelPath); err != nil {
			return err
		}
	case model.MutationKindTrashMove:
		if err := e.photos.MarkPurged(ctx, mutation.PhotoID, newRelPath, time.Now()); err != nil {
			return err
		}
	}
	return e.photos.UpdateLastError(ctx, mutation.PhotoID, "")
}
