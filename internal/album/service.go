// Package album はアルバムの管理機能を提供する。
package album

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/photozen/internal/markdown"
	"github.com/hitoshi/photozen/internal/mediastore"
	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/repository"
)

// Service はアルバム管理のビジネスロジックを提供する。
// 説明文はMarkdown原文で保存し、応答時にレンダリング済みHTMLを付与する。
type Service struct {
	albums   repository.AlbumRepository
	photos   repository.PhotoRepository
	renderer markdown.RendererService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	albums repository.AlbumRepository,
	photos repository.PhotoRepository,
	renderer markdown.RendererService,
) *Service {
	return &Service{
		albums:   albums,
		photos:   photos,
		renderer: renderer,
	}
}

// ListAlbums は全アルバムを写真枚数付きで名前昇順に取得する。
func (s *Service) ListAlbums(ctx context.Context) ([]*model.Album, error) {
	albums, err := s.albums.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("アルバム一覧の取得に失敗しました: %w", err)
	}
	for _, album := range albums {
		album.DescriptionHTML = s.renderer.Render(album.Description)
	}
	return albums, nil
}

// GetAlbum はアルバム詳細を取得する。
func (s *Service) GetAlbum(ctx context.Context, albumID string) (*model.Album, error) {
	album, err := s.albums.FindByID(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("アルバムの取得に失敗しました: %w", err)
	}
	if album == nil {
		return nil, model.NewAlbumNotFoundError(albumID)
	}
	album.DescriptionHTML = s.renderer.Render(album.Description)
	return album, nil
}

// CreateAlbum は新しいアルバムを作成する。
// フロー: 名前検証 → テンプレート検証 → 重複チェック → 保存
func (s *Service) CreateAlbum(ctx context.Context, name, description, renameTemplate string) (*model.Album, error) {
	// 1. 名前の検証
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewInvalidRequestError("アルバム名が空です")
	}

	// 2. リネームテンプレートの検証
	if err := mediastore.ValidateRenameTemplate(renameTemplate); err != nil {
		return nil, model.NewInvalidRequestError(err.Error())
	}

	// 3. 同名アルバムの重複チェック
	existing, err := s.albums.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("アルバムの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateAlbumError(name)
	}

	// 4. 保存
	now := time.Now()
	album := &model.Album{
		ID:             uuid.New().String(),
		Name:           name,
		Description:    description,
		RenameTemplate: renameTemplate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.albums.Create(ctx, album); err != nil {
		return nil, fmt.Errorf("アルバムの保存に失敗しました: %w", err)
	}

	album.DescriptionHTML = s.renderer.Render(album.Description)
	return album, nil
}

// UpdateAlbum はアルバム情報を部分更新する。
// nilのフィールドは変更しない。
func (s *Service) UpdateAlbum(ctx context.Context, albumID string, name, description, renameTemplate *string) (*model.Album, error) {
	album, err := s.albums.FindByID(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("アルバムの取得に失敗しました: %w", err)
	}
	if album == nil {
		return nil, model.NewAlbumNotFoundError(albumID)
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, model.NewInvalidRequestError("アルバム名が空です")
		}
		if trimmed != album.Name {
			existing, err := s.albums.FindByName(ctx, trimmed)
			if err != nil {
				return nil, fmt.Errorf("アルバムの検索に失敗しました: %w", err)
			}
			if existing != nil && existing.ID != album.ID {
				return nil, model.NewDuplicateAlbumError(trimmed)
			}
			album.Name = trimmed
		}
	}

	if description != nil {
		album.Description = *description
	}

	if renameTemplate != nil {
		if err := mediastore.ValidateRenameTemplate(*renameTemplate); err != nil {
			return nil, model.NewInvalidRequestError(err.Error())
		}
		album.RenameTemplate = *renameTemplate
	}

	album.UpdatedAt = time.Now()
	if err := s.albums.Update(ctx, album); err != nil {
		return nil, fmt.Errorf("アルバムの更新に失敗しました: %w", err)
	}

	album.DescriptionHTML = s.renderer.Render(album.Description)
	return album, nil
}

// DeleteAlbum はアルバムを削除する。
// 写真が振り分けられているアルバムは削除できない。
func (s *Service) DeleteAlbum(ctx context.Context, albumID string) error {
	album, err := s.albums.FindByID(ctx, albumID)
	if err != nil {
		return fmt.Errorf("アルバムの取得に失敗しました: %w", err)
	}
	if album == nil {
		return model.NewAlbumNotFoundError(albumID)
	}

	count, err := s.photos.CountByAlbum(ctx, albumID)
	if err != nil {
		return fmt.Errorf("アルバム内の写真数の確認に失敗しました: %w", err)
	}
	if count > 0 {
		return model.NewAlbumInUseError(count)
	}

	if err := s.albums.DeleteByID(ctx, albumID); err != nil {
		return fmt.Errorf("アルバムの削除に失敗しました: %w", err)
	}
	return nil
}
