package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/photozen/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したワークフローセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// FindActive はアクティブなセッションを取得する。存在しない場合はnilを返す。
func (r *PostgresSessionRepo) FindActive(ctx context.Context) (*model.WorkflowSession, error) {
	session := &model.WorkflowSession{}
	var endedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, stage, card_sorting_album_enabled,
		        unsorted_remaining, maybe_remaining, keep_count, classify_index,
		        trash_remaining, sorted_count,
		        kept_count, trashed_count, maybe_count, classified_count,
		        combo_streak, best_streak, pending_skip, pending_exit,
		        started_at, ended_at, created_at, updated_at
		 FROM workflow_sessions WHERE status = 'active'`,
	).Scan(
		&session.ID, &session.Status, &session.Stage, &session.CardSortingAlbumEnabled,
		&session.UnsortedRemaining, &session.MaybeRemaining, &session.KeepCount, &session.ClassifyIndex,
		&session.TrashRemaining, &session.SortedCount,
		&session.KeptCount, &session.TrashedCount, &session.MaybeCount, &session.ClassifiedCount,
		&session.ComboStreak, &session.BestStreak, &session.PendingSkip, &session.PendingExit,
		&session.StartedAt, &endedAt, &session.CreatedAt, &session.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アクティブセッションの取得に失敗しました: %w", err)
	}

	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}

	return session, nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.WorkflowSession, error) {
	session := &model.WorkflowSession{}
	var endedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, stage, card_sorting_album_enabled,
		        unsorted_remaining, maybe_remaining, keep_count, classify_index,
		        trash_remaining, sorted_count,
		        kept_count, trashed_count, maybe_count, classified_count,
		        combo_streak, best_streak, pending_skip, pending_exit,
		        started_at, ended_at, created_at, updated_at
		 FROM workflow_sessions WHERE id = $1`,
		id,
	).Scan(
		&session.ID, &session.Status, &session.Stage, &session.CardSortingAlbumEnabled,
		&session.UnsortedRemaining, &session.MaybeRemaining, &session.KeepCount, &session.ClassifyIndex,
		&session.TrashRemaining, &session.SortedCount,
		&session.KeptCount, &session.TrashedCount, &session.MaybeCount, &session.ClassifiedCount,
		&session.ComboStreak, &session.BestStreak, &session.PendingSkip, &session.PendingExit,
		&session.StartedAt, &endedAt, &session.CreatedAt, &session.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}

	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}

	return session, nil
}

// Create はセッションを作成する。
// アクティブセッションが既に存在する場合は部分ユニーク制約違反となる。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.WorkflowSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workflow_sessions (
		    id, status, stage, card_sorting_album_enabled,
		    unsorted_remaining, maybe_remaining, keep_count, classify_index,
		    trash_remaining, sorted_count,
		    kept_count, trashed_count, maybe_count, classified_count,
		    combo_streak, best_streak, pending_skip, pending_exit,
		    started_at, ended_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		         $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		session.ID, session.Status, session.Stage, session.CardSortingAlbumEnabled,
		session.UnsortedRemaining, session.MaybeRemaining, session.KeepCount, session.ClassifyIndex,
		session.TrashRemaining, session.SortedCount,
		session.KeptCount, session.TrashedCount, session.MaybeCount, session.ClassifiedCount,
		session.ComboStreak, session.BestStreak, session.PendingSkip, session.PendingExit,
		session.StartedAt, session.EndedAt, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はセッションの全状態（ステージ・カウンタ・コンボ・フラグ）を更新する。
func (r *PostgresSessionRepo) Update(ctx context.Context, session *model.WorkflowSession) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE workflow_sessions SET
		    status = $2, stage = $3,
		    unsorted_remaining = $4, maybe_remaining = $5, keep_count = $6,
		    classify_index = $7, trash_remaining = $8, sorted_count = $9,
		    kept_count = $10, trashed_count = $11, maybe_count = $12, classified_count = $13,
		    combo_streak = $14, best_streak = $15,
		    pending_skip = $16, pending_exit = $17,
		    ended_at = $18, updated_at = now()
		 WHERE id = $1`,
		session.ID, session.Status, session.Stage,
		session.UnsortedRemaining, session.MaybeRemaining, session.KeepCount,
		session.ClassifyIndex, session.TrashRemaining, session.SortedCount,
		session.KeptCount, session.TrashedCount, session.MaybeCount, session.ClassifiedCount,
		session.ComboStreak, session.BestStreak,
		session.PendingSkip, session.PendingExit,
		session.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteEndedBefore は指定日時より前に終了したセッションを削除する。削除件数を返す。
func (r *PostgresSessionRepo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM workflow_sessions
		 WHERE status <> 'active' AND ended_at IS NOT NULL AND ended_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("終了済みセッションの削除に失敗しました: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return count, nil
}

// compile-time interface check
var _ WorkflowSessionRepository = (*PostgresSessionRepo)(nil)
