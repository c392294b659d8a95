// Package cleanup は保持期限切れデータの自動削除ジョブを提供する。
// ゴミ箱へ退避済みの写真（デフォルト30日）を実体ファイルごと完全削除し、
// 終了済みセッション・仕分けイベント・完了済みファイル操作の記録
// （デフォルト180日）を日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/photozen/internal/mediastore"
	"github.com/hitoshi/photozen/internal/repository"
)

// CleanupJob は保持期限を超過したデータの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	photos    repository.PhotoRepository
	sessions  repository.WorkflowSessionRepository
	events    repository.ClassificationEventRepository
	mutations repository.MediaMutationRepository
	store     *mediastore.Store
	logger    *slog.Logger

	TrashRetentionDays int // 退避済み写真の保持日数（デフォルト: 30）
	EventRetentionDays int // セッション・イベント・操作記録の保持日数（デフォルト: 180）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数はゴミ箱30日、記録180日。
func NewCleanupJob(
	photos repository.PhotoRepository,
	sessions repository.WorkflowSessionRepository,
	events repository.ClassificationEventRepository,
	mutations repository.MediaMutationRepository,
	store *mediastore.Store,
	logger *slog.Logger,
) *CleanupJob {
	return &CleanupJob{
		photos:             photos,
		sessions:           sessions,
		events:             events,
		mutations:          mutations,
		store:              store,
		logger:             logger,
		TrashRetentionDays: 30,
		EventRetentionDays: 180,
	}
}

// Run は保持期限を超過したデータを削除する。
// ゴミ箱の退避ファイルを完全削除した後、終了済みセッション・
// 仕分けイベント・完了済みファイル操作の記録を削除する。
// セッション削除に伴うイベントはCASCADE削除される。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	purged, err := j.purgeTrash(ctx)
	if err != nil {
		j.logger.Error("ゴミ箱クリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.TrashRetentionDays),
		)
		return fmt.Errorf("ゴミ箱クリーンアップの実行に失敗: %w", err)
	}

	recordCutoff := time.Now().AddDate(0, 0, -j.EventRetentionDays)

	deletedEvents, err := j.events.DeleteOlderThan(ctx, recordCutoff)
	if err != nil {
		j.logger.Error("仕分けイベントの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.EventRetentionDays),
		)
		return fmt.Errorf("仕分けイベントの削除に失敗: %w", err)
	}

	deletedSessions, err := j.sessions.DeleteEndedBefore(ctx, recordCutoff)
	if err != nil {
		j.logger.Error("終了済みセッションの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.EventRetentionDays),
		)
		return fmt.Errorf("終了済みセッションの削除に失敗: %w", err)
	}

	deletedMutations, err := j.mutations.DeleteFinishedBefore(ctx, recordCutoff)
	if err != nil {
		j.logger.Error("完了済みファイル操作の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.EventRetentionDays),
		)
		return fmt.Errorf("完了済みファイル操作の削除に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int("purged_photos", purged),
		slog.Int64("deleted_events", deletedEvents),
		slog.Int64("deleted_sessions", deletedSessions),
		slog.Int64("deleted_mutations", deletedMutations),
		slog.Int("trash_retention_days", j.TrashRetentionDays),
		slog.Int("event_retention_days", j.EventRetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// purgeTrash は保持期限を過ぎた退避済み写真を実体ファイルごと完全削除する。
// 個別のファイル削除失敗は警告して行を残し、次回実行時に再試行する。
// 実体が既に存在しない行はレコードだけを削除する。
func (j *CleanupJob) purgeTrash(ctx context.Context) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -j.TrashRetentionDays)

	photos, err := j.photos.ListPurgedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, photo := range photos {
		if err := j.store.Remove(photo.RelPath); err != nil {
			j.logger.Warn("退避ファイルの削除に失敗しました",
				slog.String("photo_id", photo.ID),
				slog.String("rel_path", photo.RelPath),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := j.photos.DeleteByID(ctx, photo.ID); err != nil {
			j.logger.Warn("写真レコードの削除に失敗しました",
				slog.String("photo_id", photo.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		purged++
	}
	return purged, nil
}
