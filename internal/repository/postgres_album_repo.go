package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/photozen/internal/model"
)

// PostgresAlbumRepo はPostgreSQLを使用したアルバムリポジトリ。
type PostgresAlbumRepo struct {
	db *sql.DB
}

// NewPostgresAlbumRepo はPostgresAlbumRepoを生成する。
func NewPostgresAlbumRepo(db *sql.DB) *PostgresAlbumRepo {
	return &PostgresAlbumRepo{db: db}
}

// FindByID は指定IDのアルバムを取得する。見つからない場合はnilを返す。
func (r *PostgresAlbumRepo) FindByID(ctx context.Context, id string) (*model.Album, error) {
	album := &model.Album{}

	err := r.db.QueryRowContext(ctx,
		`SELECT a.id, a.name, a.description, a.rename_template,
		        (SELECT count(*) FROM photos p WHERE p.album_id = a.id AND p.purged_at IS NULL),
		        a.created_at, a.updated_at
		 FROM albums a WHERE a.id = $1`,
		id,
	).Scan(
		&album.ID, &album.Name, &album.Description, &album.RenameTemplate,
		&album.PhotoCount, &album.CreatedAt, &album.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アルバムの取得に失敗しました: %w", err)
	}

	return album, nil
}

// FindByName はアルバム名でアルバムを検索する。見つからない場合はnilを返す。
func (r *PostgresAlbumRepo) FindByName(ctx context.Context, name string) (*model.Album, error) {
	album := &model.Album{}

	err := r.db.QueryRowContext(ctx,
		`SELECT a.id, a.name, a.description, a.rename_template,
		        (SELECT count(*) FROM photos p WHERE p.album_id = a.id AND p.purged_at IS NULL),
		        a.created_at, a.updated_at
		 FROM albums a WHERE a.name = $1`,
		name,
	).Scan(
		&album.ID, &album.Name, &album.Description, &album.RenameTemplate,
		&album.PhotoCount, &album.CreatedAt, &album.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アルバム名によるアルバムの検索に失敗しました: %w", err)
	}

	return album, nil
}

// List は全アルバムを写真枚数付きで名前昇順に取得する。
func (r *PostgresAlbumRepo) List(ctx context.Context) ([]*model.Album, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.name, a.description, a.rename_template,
		        COALESCE(p.cnt, 0),
		        a.created_at, a.updated_at
		 FROM albums a
		 LEFT JOIN (
		     SELECT album_id, count(*) AS cnt FROM photos
		     WHERE album_id IS NOT NULL AND purged_at IS NULL
		     GROUP BY album_id
		 ) p ON p.album_id = a.id
		 ORDER BY a.name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("アルバム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var albums []*model.Album
	for rows.Next() {
		album := &model.Album{}
		if err := rows.Scan(
			&album.ID, &album.Name, &album.Description, &album.RenameTemplate,
			&album.PhotoCount, &album.CreatedAt, &album.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("アルバム行の読み取りに失敗しました: %w", err)
		}
		albums = append(albums, album)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アルバム一覧の走査に失敗しました: %w", err)
	}

	return albums, nil
}

// Create はアルバムを作成する。
func (r *PostgresAlbumRepo) Create(ctx context.Context, album *model.Album) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO albums (id, name, description, rename_template, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		album.ID, album.Name, album.Description, album.RenameTemplate,
		album.CreatedAt, album.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アルバムの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はアルバム情報を更新する。
func (r *PostgresAlbumRepo) Update(ctx context.Context, album *model.Album) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE albums SET
		    name = $2, description = $3, rename_template = $4, updated_at = $5
		 WHERE id = $1`,
		album.ID, album.Name, album.Description, album.RenameTemplate, album.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アルバムの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのアルバムを削除する。
func (r *PostgresAlbumRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM albums WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("アルバムの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AlbumRepository = (*PostgresAlbumRepo)(nil)
