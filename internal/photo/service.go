// Package photo は写真カタログの参照とセッション外の直接仕分けを提供する。
package photo

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/repository"
)

// defaultListLimit は一覧取得のデフォルト件数。
const defaultListLimit = 50

// maxListLimit は一覧取得の上限件数。
const maxListLimit = 200

// Service は写真カタログのサービス層。
// 一覧・詳細の参照と、セッションを介さないステータス変更を提供する。
// ここでのステータス変更はカタログのみを更新し、コンボやステージには影響しない。
type Service struct {
	photos     repository.PhotoRepository
	events     repository.ClassificationEventRepository
	mutations  repository.MediaMutationRepository
	todayQuota int
}

// NewService はServiceの新しいインスタンスを生成する。
// todayQuotaは本日の目標仕分け枚数。0で無効。
func NewService(
	photos repository.PhotoRepository,
	events repository.ClassificationEventRepository,
	mutations repository.MediaMutationRepository,
	todayQuota int,
) *Service {
	return &Service{
		photos:     photos,
		events:     events,
		mutations:  mutations,
		todayQuota: todayQuota,
	}
}

// ListResult はListの戻り値。
type ListResult struct {
	Photos     []*model.Photo
	NextCursor string
	HasMore    bool
}

// LibraryStatus はライブラリ全体の状況を表す。
type LibraryStatus struct {
	Counts           model.StatusCounts
	TodayCount       int
	TodayQuota       int
	PendingMutations int
}

// List は写真一覧をステータスフィルタ・ページネーション付きで返す。
// カーソルベースページネーションを使用し、added_at降順でソートする。
// limit+1件を取得してHasMoreを判定する。
func (s *Service) List(ctx context.Context, statusStr, cursorStr string, limit int) (*ListResult, error) {
	var status model.PhotoStatus
	if statusStr != "" {
		parsed, ok := model.ParsePhotoStatus(statusStr)
		if !ok {
			return nil, model.NewInvalidStatusError(statusStr)
		}
		status = parsed
	}

	cursor, err := parseCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	limit = clampLimit(limit)
	photos, err := s.photos.List(ctx, status, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("写真一覧の取得に失敗しました: %w", err)
	}

	return buildListResult(photos, limit), nil
}

// ListByAlbum はアルバム内の写真一覧をページネーション付きで返す。
func (s *Service) ListByAlbum(ctx context.Context, albumID, cursorStr string, limit int) (*ListResult, error) {
	cursor, err := parseCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	limit = clampLimit(limit)
	photos, err := s.photos.ListByAlbum(ctx, albumID, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("アルバム内写真の取得に失敗しました: %w", err)
	}

	return buildListResult(photos, limit), nil
}

// Get は写真詳細を返す。見つからない場合はエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Photo, error) {
	photo, err := s.photos.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("写真の取得に失敗しました: %w", err)
	}
	if photo == nil {
		return nil, model.NewPhotoNotFoundError(id)
	}
	return photo, nil
}

// UpdateStatus はセッションを介さず写真のステータスを直接変更する。
// 実ファイルは動かさない。コンボやステージ進行にも影響しない。
func (s *Service) UpdateStatus(ctx context.Context, id, statusStr string) (*model.Photo, error) {
	status, ok := model.ParsePhotoStatus(statusStr)
	if !ok {
		return nil, model.NewInvalidStatusError(statusStr)
	}

	photo, err := s.photos.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("写真の取得に失敗しました: %w", err)
	}
	if photo == nil {
		return nil, model.NewPhotoNotFoundError(id)
	}

	if photo.Status == status {
		return photo, nil
	}

	if err := s.photos.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("写真ステータスの更新に失敗しました: %w", err)
	}
	photo.Status = status
	return photo, nil
}

// Status はライブラリの状況（ステータス集計・本日の進捗・実行待ちファイル操作数）を返す。
func (s *Service) Status(ctx context.Context) (*LibraryStatus, error) {
	counts, err := s.photos.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("写真の集計に失敗しました: %w", err)
	}

	today, err := s.events.CountSince(ctx, startOfToday())
	if err != nil {
		return nil, fmt.Errorf("本日の仕分け数の取得に失敗しました: %w", err)
	}

	pending, err := s.mutations.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("実行待ちファイル操作数の取得に失敗しました: %w", err)
	}

	return &LibraryStatus{
		Counts:           counts,
		TodayCount:       today,
		TodayQuota:       s.todayQuota,
		PendingMutations: pending,
	}, nil
}

// parseCursor はカーソル文字列をパースする。空文字列はゼロ値を返す。
func parseCursor(cursorStr string) (time.Time, error) {
	if cursorStr == "" {
		return time.Time{}, nil
	}
	cursor, err := time.Parse(time.RFC3339Nano, cursorStr)
	if err != nil {
		// RFC3339でもパースを試みる
		cursor, err = time.Parse(time.RFC3339, cursorStr)
		if err != nil {
			return time.Time{}, model.NewInvalidRequestError("無効なカーソル値: " + cursorStr)
		}
	}
	return cursor, nil
}

// clampLimit は件数指定をデフォルト・上限に収める。
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// buildListResult はlimit+1件の取得結果からページネーション情報を組み立てる。
func buildListResult(photos []*model.Photo, limit int) *ListResult {
	hasMore := len(photos) > limit
	if hasMore {
		photos = photos[:limit] // 余分な1件を除外
	}

	var nextCursor string
	if hasMore && len(photos) > 0 {
		nextCursor = photos[len(photos)-1].AddedAt.Format(time.RFC3339Nano)
	}

	return &ListResult{
		Photos:     photos,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}
}

// startOfToday は本日0時（ローカル時刻）を返す。
func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
