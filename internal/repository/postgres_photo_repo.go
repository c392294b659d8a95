package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/photozen/internal/model"
)

// PostgresPhotoRepo はPostgreSQLを使用した写真リポジトリ。
type PostgresPhotoRepo struct {
	db *sql.DB
}

// NewPostgresPhotoRepo はPostgresPhotoRepoを生成する。
func NewPostgresPhotoRepo(db *sql.DB) *PostgresPhotoRepo {
	return &PostgresPhotoRepo{db: db}
}

// photoColumns は写真取得クエリで共通して使うカラムリスト。
const photoColumns = `id, rel_path, display_name, width, height, size_bytes, content_hash,
       status, album_id, taken_at, latitude, longitude, added_at,
       last_error, purged_at, created_at, updated_at`

// scanPhoto は1行分の写真データを読み取る。
func scanPhoto(scan func(dest ...interface{}) error) (*model.Photo, error) {
	photo := &model.Photo{}
	var albumID, lastError sql.NullString
	var takenAt, purgedAt sql.NullTime
	var latitude, longitude sql.NullFloat64

	err := scan(
		&photo.ID, &photo.RelPath, &photo.DisplayName, &photo.Width, &photo.Height,
		&photo.SizeBytes, &photo.ContentHash, &photo.Status, &albumID,
		&takenAt, &latitude, &longitude, &photo.AddedAt,
		&lastError, &purgedAt, &photo.CreatedAt, &photo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	photo.AlbumID = nullStringValue(albumID)
	photo.LastError = nullStringValue(lastError)
	if takenAt.Valid {
		photo.TakenAt = &takenAt.Time
	}
	if purgedAt.Valid {
		photo.PurgedAt = &purgedAt.Time
	}
	if latitude.Valid {
		photo.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		photo.Longitude = &longitude.Float64
	}

	return photo, nil
}

// FindByID は指定IDの写真を取得する。見つからない場合はnilを返す。
func (r *PostgresPhotoRepo) FindByID(ctx context.Context, id string) (*model.Photo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = $1`,
		id,
	)

	photo, err := scanPhoto(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("写真の取得に失敗しました: %w", err)
	}

	return photo, nil
}

// FindByRelPath はライブラリ相対パスで写真を検索する。見つからない場合はnilを返す。
func (r *PostgresPhotoRepo) FindByRelPath(ctx context.Context, relPath string) (*model.Photo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE rel_path = $1`,
		relPath,
	)

	photo, err := scanPhoto(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rel_path による写真の検索に失敗しました: %w", err)
	}

	return photo, nil
}

// FindByContentHash はcontent_hashで写真を検索する。退避済みの写真は対象外。
// 見つからない場合はnilを返す。
func (r *PostgresPhotoRepo) FindByContentHash(ctx context.Context, contentHash string) (*model.Photo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos
		 WHERE content_hash = $1 AND purged_at IS NULL
		 ORDER BY added_at ASC LIMIT 1`,
		contentHash,
	)

	photo, err := scanPhoto(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("content_hash による写真の検索に失敗しました: %w", err)
	}

	return photo, nil
}

// List は写真一覧をadded_at降順で取得する。
// statusが空の場合は全ステータスを対象とする。退避済みの写真は含まない。
// cursorがゼロ値の場合は先頭から取得する。
func (r *PostgresPhotoRepo) List(
	ctx context.Context,
	status model.PhotoStatus,
	cursor time.Time,
	limit int,
) ([]*model.Photo, error) {
	baseQuery := `SELECT ` + photoColumns + ` FROM photos WHERE purged_at IS NULL`

	args := []interface{}{}
	argIndex := 1

	if status != "" {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	// カーソルベースページネーション
	if !cursor.IsZero() {
		baseQuery += fmt.Sprintf(" AND added_at < $%d", argIndex)
		args = append(args, cursor)
		argIndex++
	}

	baseQuery += fmt.Sprintf(" ORDER BY added_at DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("写真一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var photos []*model.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("写真行の読み取りに失敗しました: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("写真一覧の走査に失敗しました: %w", err)
	}

	return photos, nil
}

// ListByAlbum はアルバム内の写真一覧をadded_at降順で取得する。
func (r *PostgresPhotoRepo) ListByAlbum(
	ctx context.Context,
	albumID string,
	cursor time.Time,
	limit int,
) ([]*model.Photo, error) {
	baseQuery := `SELECT ` + photoColumns + ` FROM photos
		 WHERE album_id = $1 AND purged_at IS NULL`

	args := []interface{}{albumID}
	argIndex := 2

	if !cursor.IsZero() {
		baseQuery += fmt.Sprintf(" AND added_at < $%d", argIndex)
		args = append(args, cursor)
		argIndex++
	}

	baseQuery += fmt.Sprintf(" ORDER BY added_at DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("アルバム内写真一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var photos []*model.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("写真行の読み取りに失敗しました: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アルバム内写真一覧の走査に失敗しました: %w", err)
	}

	return photos, nil
}

// ListAll は退避済みを含む全写真を取得する。スキャナーのカタログ同期用。
func (r *PostgresPhotoRepo) ListAll(ctx context.Context) ([]*model.Photo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+photoColumns+` FROM photos ORDER BY rel_path ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("全写真の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var photos []*model.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("写真行の読み取りに失敗しました: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("全写真の走査に失敗しました: %w", err)
	}

	return photos, nil
}

// ListPurgedBefore は指定日時より前に退避された写真を取得する。保持期限切れ削除用。
func (r *PostgresPhotoRepo) ListPurgedBefore(ctx context.Context, cutoff time.Time) ([]*model.Photo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+photoColumns+` FROM photos
		 WHERE purged_at IS NOT NULL AND purged_at < $1
		 ORDER BY purged_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("保持期限切れ写真の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var photos []*model.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("写真行の読み取りに失敗しました: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("保持期限切れ写真の走査に失敗しました: %w", err)
	}

	return photos, nil
}

// CountByStatus はステータスごとの写真枚数を返す。退避済みの写真は含まない。
func (r *PostgresPhotoRepo) CountByStatus(ctx context.Context) (model.StatusCounts, error) {
	var counts model.StatusCounts

	rows, err := r.db.QueryContext(ctx,
		`SELECT status, count(*) FROM photos
		 WHERE purged_at IS NULL
		 GROUP BY status`,
	)
	if err != nil {
		return counts, fmt.Errorf("ステータス別枚数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status model.PhotoStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return counts, fmt.Errorf("ステータス別枚数の読み取りに失敗しました: %w", err)
		}
		switch status {
		case model.PhotoStatusUnsorted:
			counts.Unsorted = count
		case model.PhotoStatusKeep:
			counts.Keep = count
		case model.PhotoStatusMaybe:
			counts.Maybe = count
		case model.PhotoStatusTrash:
			counts.Trash = count
		}
	}
	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("ステータス別枚数の走査に失敗しました: %w", err)
	}

	return counts, nil
}

// CountByAlbum はアルバム内の写真枚数を返す。
func (r *PostgresPhotoRepo) CountByAlbum(ctx context.Context, albumID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM photos WHERE album_id = $1 AND purged_at IS NULL`,
		albumID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("アルバム内枚数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// KeptAtIndex はKeep写真をadded_at昇順に並べたときのindex番目を取得する。
// 範囲外の場合はnilを返す。
func (r *PostgresPhotoRepo) KeptAtIndex(ctx context.Context, index int) (*model.Photo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos
		 WHERE status = 'keep' AND purged_at IS NULL
		 ORDER BY added_at ASC, id ASC
		 OFFSET $1 LIMIT 1`,
		index,
	)

	photo, err := scanPhoto(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Keep写真の取得に失敗しました: %w", err)
	}

	return photo, nil
}

// Create は新規写真を作成する。
func (r *PostgresPhotoRepo) Create(ctx context.Context, photo *model.Photo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO photos (id, rel_path, display_name, width, height, size_bytes, content_hash,
		                     status, album_id, taken_at, latitude, longitude, added_at,
		                     last_error, purged_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		photo.ID, photo.RelPath, photo.DisplayName, photo.Width, photo.Height,
		photo.SizeBytes, photo.ContentHash, photo.Status, nullString(photo.AlbumID),
		photo.TakenAt, photo.Latitude, photo.Longitude, photo.AddedAt,
		nullString(photo.LastError), photo.PurgedAt, photo.CreatedAt, photo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("写真の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateMetadata はスキャナーが読み取ったファイル由来の属性を上書き更新する。
func (r *PostgresPhotoRepo) UpdateMetadata(ctx context.Context, photo *model.Photo) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE photos SET
		    rel_path = $2, display_name = $3, width = $4, height = $5,
		    size_bytes = $6, content_hash = $7, taken_at = $8,
		    latitude = $9, longitude = $10, updated_at = now()
		 WHERE id = $1`,
		photo.ID, photo.RelPath, photo.DisplayName, photo.Width, photo.Height,
		photo.SizeBytes, photo.ContentHash, photo.TakenAt,
		photo.Latitude, photo.Longitude,
	)
	if err != nil {
		return fmt.Errorf("写真メタデータの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus は写真の仕分けステータスを更新する。
func (r *PostgresPhotoRepo) UpdateStatus(ctx context.Context, id string, status model.PhotoStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE photos SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("写真ステータスの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateAlbum は写真の振り分け先アルバムを更新する。albumIDが空の場合はNULLにする。
func (r *PostgresPhotoRepo) UpdateAlbum(ctx context.Context, id string, albumID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE photos SET album_id = $2, updated_at = now() WHERE id = $1`,
		id, nullString(albumID),
	)
	if err != nil {
		return fmt.Errorf("写真のアルバム更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateRelPath はファイル移動成功後の相対パスを更新する。
func (r *PostgresPhotoRepo) UpdateRelPath(ctx context.Context, id string, relPath string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE photos SET rel_path = $2, updated_at = now() WHERE id = $1`,
		id, relPath,
	)
	if err != nil {
		return fmt.Errorf("写真パスの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateLastError は直近のメディア操作エラーを記録する。空文字列でクリアする。
func (r *PostgresPhotoRepo) UpdateLastError(ctx context.Context, id string, message string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE photos SET last_error = $2, updated_at = now() WHERE id = $1`,
		id, nullString(message),
	)
	if err != nil {
		return fmt.Errorf("写真エラー情報の更新に失敗しました: %w", err)
	}
	return nil
}

// MarkPurged は写真をゴミ箱ディレクトリへ退避済みとして記録する。
func (r *PostgresPhotoRepo) MarkPurged(ctx context.Context, id string, relPath string, purgedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE photos SET rel_path = $2, purged_at = $3, updated_at = now() WHERE id = $1`,
		id, relPath, purgedAt,
	)
	if err != nil {
		return fmt.Errorf("写真の退避記録に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの写真を削除する。
func (r *PostgresPhotoRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM photos WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("写真の削除に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ PhotoRepository = (*PostgresPhotoRepo)(nil)
