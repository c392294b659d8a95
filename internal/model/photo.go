// Package model はドメインモデルを定義する。
package model

import "time"

// Photo はライブラリ内の写真1枚を表す。
// スキャナーがファイルシステムから登録し、仕分け操作がステータスを更新する。
type Photo struct {
	ID          string
	RelPath     string // ライブラリルートからの相対パス
	DisplayName string
	Width       int
	Height      int
	SizeBytes   int64
	ContentHash string // ファイル内容のSHA-256
	Status      PhotoStatus
	AlbumID     string     // 振り分け先アルバム（未振り分けなら空）
	TakenAt     *time.Time // EXIF撮影日時
	Latitude    *float64
	Longitude   *float64
	AddedAt     time.Time
	LastError   string     // 直近のメディア操作エラー（成功で消える）
	PurgedAt    *time.Time // ゴミ箱ディレクトリへ退避した日時
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PhotoStatus は写真の仕分け状態を表す。
type PhotoStatus string

const (
	// PhotoStatusUnsorted は未仕分けの状態。
	PhotoStatusUnsorted PhotoStatus = "unsorted"
	// PhotoStatusKeep は残すと判定された状態。
	PhotoStatusKeep PhotoStatus = "keep"
	// PhotoStatusMaybe は判断保留の状態。
	PhotoStatusMaybe PhotoStatus = "maybe"
	// PhotoStatusTrash は削除候補の状態。
	PhotoStatusTrash PhotoStatus = "trash"
)

// ParsePhotoStatus は文字列をPhotoStatusに変換する。
// 未知の値は空文字列とfalseを返す。
func ParsePhotoStatus(s string) (PhotoStatus, bool) {
	switch PhotoStatus(s) {
	case PhotoStatusUnsorted, PhotoStatusKeep, PhotoStatusMaybe, PhotoStatusTrash:
		return PhotoStatus(s), true
	}
	return "", false
}

// StatusCounts はステータスごとの写真枚数を表す。
// ライブラリ状況表示とセッション開始時のカウンタ初期化に使う。
type StatusCounts struct {
	Unsorted int
	Keep     int
	Maybe    int
	Trash    int
}

// Total は全ステータスの合計枚数を返す。
func (c StatusCounts) Total() int {
	return c.Unsorted + c.Keep + c.Maybe + c.Trash
}

// ScannedPhoto はスキャナーがファイルシステムから読み取った未保存の写真データを表す。
// カタログ同期時にリポジトリのアップサートへ渡される。
type ScannedPhoto struct {
	RelPath     string
	DisplayName string
	Width       int
	Height      int
	SizeBytes   int64
	ContentHash string
	TakenAt     *time.Time
	Latitude    *float64
	Longitude   *float64
}
