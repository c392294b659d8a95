// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/photozen/internal/model"
)

// PhotoRepository は写真カタログの永続化インターフェース。
// 写真の同一性判定（rel_path優先、content_hashでリネーム検出）とCRUD操作を提供する。
type PhotoRepository interface {
	// FindByID は指定IDの写真を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Photo, error)

	// FindByRelPath はライブラリ相対パスで写真を検索する。
	// 同一性判定の最優先手段。見つからない場合はnilを返す。
	FindByRelPath(ctx context.Context, relPath string) (*model.Photo, error)

	// FindByContentHash はcontent_hashで写真を検索する。
	// 同一性判定の第2優先手段（リネーム・移動の検出）。退避済みの写真は対象外。
	// 見つからない場合はnilを返す。
	FindByContentHash(ctx context.Context, contentHash string) (*model.Photo, error)

	// List は写真一覧をadded_at降順で取得する。
	// statusが空の場合は全ステータスを対象とする。退避済みの写真は含まない。
	// cursorがゼロ値の場合は先頭から取得する。
	List(ctx context.Context, status model.PhotoStatus, cursor time.Time, limit int) ([]*model.Photo, error)

	// ListByAlbum はアルバム内の写真一覧をadded_at降順で取得する。
	ListByAlbum(ctx context.Context, albumID string, cursor time.Time, limit int) ([]*model.Photo, error)

	// ListAll は退避済みを含む全写真を取得する。スキャナーのカタログ同期用。
	ListAll(ctx context.Context) ([]*model.Photo, error)

	// ListPurgedBefore は指定日時より前に退避された写真を取得する。保持期限切れ削除用。
	ListPurgedBefore(ctx context.Context, cutoff time.Time) ([]*model.Photo, error)

	// CountByStatus はステータスごとの写真枚数を返す。退避済みの写真は含まない。
	CountByStatus(ctx context.Context) (model.StatusCounts, error)

	// CountByAlbum はアルバム内の写真枚数を返す。
	CountByAlbum(ctx context.Context, albumID string) (int, error)

	// KeptAtIndex はKeep写真をadded_at昇順に並べたときのindex番目を取得する。
	// CLASSIFYステージのカード提示に使う。範囲外の場合はnilを返す。
	KeptAtIndex(ctx context.Context, index int) (*model.Photo, error)

	// Create は新規写真を作成する。
	Create(ctx context.Context, photo *model.Photo) error

	// UpdateMetadata はスキャナーが読み取ったファイル由来の属性を上書き更新する。
	UpdateMetadata(ctx context.Context, photo *model.Photo) error

	// UpdateStatus は写真の仕分けステータスを更新する。
	UpdateStatus(ctx context.Context, id string, status model.PhotoStatus) error

	// UpdateAlbum は写真の振り分け先アルバムを更新する。albumIDが空の場合はNULLにする。
	UpdateAlbum(ctx context.Context, id string, albumID string) error

	// UpdateRelPath はファイル移動成功後の相対パスを更新する。
	UpdateRelPath(ctx context.Context, id string, relPath string) error

	// UpdateLastError は直近のメディア操作エラーを記録する。空文字列でクリアする。
	UpdateLastError(ctx context.Context, id string, message string) error

	// MarkPurged は写真をゴミ箱ディレクトリへ退避済みとして記録する。
	MarkPurged(ctx context.Context, id string, relPath string, purgedAt time.Time) error

	// DeleteByID は指定IDの写真を削除する。
	// 関連するclassification_events、media_mutationsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// AlbumRepository はアルバムデータの永続化インターフェース。
type AlbumRepository interface {
	// FindByID は指定IDのアルバムを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Album, error)

	// FindByName はアルバム名でアルバムを検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Album, error)

	// List は全アルバムを写真枚数付きで名前昇順に取得する。
	List(ctx context.Context) ([]*model.Album, error)

	// Create はアルバムを作成する。
	Create(ctx context.Context, album *model.Album) error

	// Update はアルバム情報を更新する。
	Update(ctx context.Context, album *model.Album) error

	// DeleteByID は指定IDのアルバムを削除する。
	// 所属写真のalbum_idはSET NULLされる。
	DeleteByID(ctx context.Context, id string) error
}

// WorkflowSessionRepository はワークフローセッションの永続化インターフェース。
type WorkflowSessionRepository interface {
	// FindActive はアクティブなセッションを取得する。存在しない場合はnilを返す。
	FindActive(ctx context.Context) (*model.WorkflowSession, error)

	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.WorkflowSession, error)

	// Create はセッションを作成する。
	// アクティブセッションが既に存在する場合は部分ユニーク制約違反となる。
	Create(ctx context.Context, session *model.WorkflowSession) error

	// Update はセッションの全状態（ステージ・カウンタ・コンボ・フラグ）を更新する。
	Update(ctx context.Context, session *model.WorkflowSession) error

	// DeleteEndedBefore は指定日時より前に終了したセッションを削除する。
	// 関連するclassification_eventsはCASCADE削除される。削除件数を返す。
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ClassificationEventRepository はスワイプ確定記録の永続化インターフェース。
type ClassificationEventRepository interface {
	// Create は仕分けイベントを記録する。
	Create(ctx context.Context, event *model.ClassificationEvent) error

	// CountSince は指定日時以降のイベント数を返す。本日のクォータ進捗算出用。
	CountSince(ctx context.Context, since time.Time) (int, error)

	// DeleteOlderThan は指定日時より前のイベントを削除する。削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MediaMutationRepository は非同期ファイル操作キューの永続化インターフェース。
type MediaMutationRepository interface {
	// FindByID は指定IDの操作を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.MediaMutation, error)

	// Create はファイル操作をキューに登録する。
	Create(ctx context.Context, mutation *model.MediaMutation) error

	// ListDue は実行対象の操作を取得する。
	// next_attempt_at <= now() かつ status = 'pending' の操作を
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDue(ctx context.Context, limit int) ([]*model.MediaMutation, error)

	// Update は操作の実行状態（status、consecutive_errors、last_error、next_attempt_at）を更新する。
	Update(ctx context.Context, mutation *model.MediaMutation) error

	// CountPending は実行待ちの操作数を返す。
	CountPending(ctx context.Context) (int, error)

	// DeleteFinishedBefore は指定日時より前に完了・失敗した操作を削除する。削除件数を返す。
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
