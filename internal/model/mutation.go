// Package model はドメインモデルを定義する。
package model

import "time"

// MediaMutation は非同期に実行するファイル操作を表す。
// 仕分け操作はステータスを先に確定させ、実ファイルの移動はワーカーが
// このキューを介して行う。失敗してもステージとコンボは巻き戻さない。
type MediaMutation struct {
	ID                string
	PhotoID           string
	Kind              MutationKind
	DestAlbumID       string // album_moveのときのみ
	Status            MutationStatus
	ConsecutiveErrors int
	LastError         string
	NextAttemptAt     time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MutationKind はファイル操作の種別を表す。
type MutationKind string

const (
	// MutationKindAlbumMove はアルバムディレクトリへの移動。
	MutationKindAlbumMove MutationKind = "album_move"
	// MutationKindTrashMove はゴミ箱ディレクトリへの退避。
	MutationKindTrashMove MutationKind = "trash_move"
)

// MutationStatus はファイル操作の実行状態を表す。
type MutationStatus string

const (
	// MutationStatusPending は実行待ちの状態。
	MutationStatusPending MutationStatus = "pending"
	// MutationStatusDone は実行完了の状態。
	MutationStatusDone MutationStatus = "done"
	// MutationStatusFailed は恒久エラーで中止された状態。
	MutationStatusFailed MutationStatus = "failed"
)
