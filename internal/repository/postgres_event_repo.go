package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/photozen/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用した仕分けイベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// Create は仕分けイベントを記録する。
func (r *PostgresEventRepo) Create(ctx context.Context, event *model.ClassificationEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO classification_events (id, session_id, photo_id, outcome, combo_streak, combo_level, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.SessionID, event.PhotoID, event.Outcome,
		event.ComboStreak, event.ComboLevel, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("仕分けイベントの記録に失敗しました: %w", err)
	}
	return nil
}

// CountSince は指定日時以降のイベント数を返す。本日のクォータ進捗算出用。
func (r *PostgresEventRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM classification_events WHERE created_at >= $1`,
		since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("仕分けイベント数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// DeleteOlderThan は指定日時より前のイベントを削除する。削除件数を返す。
func (r *PostgresEventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM classification_events WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("仕分けイベントの削除に失敗しました: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return count, nil
}

// compile-time interface check
var _ ClassificationEventRepository = (*PostgresEventRepo)(nil)
