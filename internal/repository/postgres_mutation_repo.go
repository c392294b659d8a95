package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/photozen/internal/model"
)

// PostgresMutationRepo はPostgreSQLを使用したメディア操作キューリポジトリ。
type PostgresMutationRepo struct {
	db *sql.DB
}

// NewPostgresMutationRepo はPostgresMutationRepoを生成する。
func NewPostgresMutationRepo(db *sql.DB) *PostgresMutationRepo {
	return &PostgresMutationRepo{db: db}
}

// FindByID は指定IDの操作を取得する。見つからない場合はnilを返す。
func (r *PostgresMutationRepo) FindByID(ctx context.Context, id string) (*model.MediaMutation, error) {
	mutation := &model.MediaMutation{}
	var destAlbumID, lastError sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, photo_id, kind, dest_album_id, status,
		        consecutive_errors, last_error, next_attempt_at, created_at, updated_at
		 FROM media_mutations WHERE id = $1`,
		id,
	).Scan(
		&mutation.ID, &mutation.PhotoID, &mutation.Kind, &destAlbumID, &mutation.Status,
		&mutation.ConsecutiveErrors, &lastError, &mutation.NextAttemptAt,
		&mutation.CreatedAt, &mutation.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メディア操作の取得に失敗しました: %w", err)
	}

	mutation.DestAlbumID = nullStringValue(destAlbumID)
	mutation.LastError = nullStringValue(lastError)

	return mutation, nil
}

// Create はファイル操作をキューに登録する。
func (r *PostgresMutationRepo) Create(ctx context.Context, mutation *model.MediaMutation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO media_mutations (id, photo_id, kind, dest_album_id, status,
		                              consecutive_errors, last_error, next_attempt_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		mutation.ID, mutation.PhotoID, mutation.Kind, nullString(mutation.DestAlbumID),
		mutation.Status, mutation.ConsecutiveErrors, nullString(mutation.LastError),
		mutation.NextAttemptAt, mutation.CreatedAt, mutation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("メディア操作の登録に失敗しました: %w", err)
	}
	return nil
}

// ListDue は実行対象の操作を取得する。
// next_attempt_at <= now() かつ status = 'pending' の操作を
// FOR UPDATE SKIP LOCKEDで排他的に取得する。
func (r *PostgresMutationRepo) ListDue(ctx context.Context, limit int) ([]*model.MediaMutation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, photo_id, kind, dest_album_id, status,
		        consecutive_errors, last_error, next_attempt_at, created_at, updated_at
		 FROM media_mutations
		 WHERE status = 'pending' AND next_attempt_at <= now()
		 ORDER BY next_attempt_at ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("実行対象メディア操作の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var mutations []*model.MediaMutation
	for rows.Next() {
		mutation := &model.MediaMutation{}
		var destAlbumID, lastError sql.NullString

		if err := rows.Scan(
			&mutation.ID, &mutation.PhotoID, &mutation.Kind, &destAlbumID, &mutation.Status,
			&mutation.ConsecutiveErrors, &lastError, &mutation.NextAttemptAt,
			&mutation.CreatedAt, &mutation.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("実行対象メディア操作の読み取りに失敗しました: %w", err)
		}

		mutation.DestAlbumID = nullStringValue(destAlbumID)
		mutation.LastError = nullStringValue(lastError)

		mutations = append(mutations, mutation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("実行対象メディア操作の走査に失敗しました: %w", err)
	}

	return mutations, nil
}

// Update は操作の実行状態を更新する。
func (r *PostgresMutationRepo) Update(ctx context.Context, mutation *model.MediaMutation) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE media_mutations SET
		    status = $2,
		    consecutive_errors = $3,
		    last_error = $4,
		    next_attempt_at = $5,
		    updated_at = now()
		 WHERE id = $1`,
		mutation.ID,
		mutation.Status,
		mutation.ConsecutiveErrors,
		nullString(mutation.LastError),
		mutation.NextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("メディア操作の更新に失敗しました: %w", err)
	}
	return nil
}

// CountPending は実行待ちの操作数を返す。
func (r *PostgresMutationRepo) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM media_mutations WHERE status = 'pending'`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("実行待ち操作数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// DeleteFinishedBefore は指定日時より前に完了・失敗した操作を削除する。削除件数を返す。
func (r *PostgresMutationRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM media_mutations
		 WHERE status <> 'pending' AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("完了済みメディア操作の削除に失敗しました: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return count, nil
}

// compile-time interface check
var _ MediaMutationRepository = (*PostgresMutationRepo)(nil)
