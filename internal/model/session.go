// Package model はドメインモデルを定義する。
package model

import "time"

// WorkflowSession は片づけワークフローのセッション状態を表す。
// カウンタとコンボはセッション開始時に初期化され、仕分け操作のたびに更新される。
// ステージ進行は前進のみで、後退はセッション破棄以外に存在しない。
type WorkflowSession struct {
	ID                      string
	Status                  SessionStatus
	Stage                   Stage
	CardSortingAlbumEnabled bool // trueならCLASSIFYステージを飛ばす4段構成

	// ステージ進行を制御するカウンタ
	UnsortedRemaining int
	MaybeRemaining    int
	KeepCount         int
	ClassifyIndex     int
	TrashRemaining    int
	SortedCount       int // このセッションでスワイプ確定した枚数

	// 完了画面に表示する集計値
	KeptCount       int
	TrashedCount    int
	MaybeCount      int
	ClassifiedCount int

	// コンボ状態
	ComboStreak int
	BestStreak  int

	// 確認ダイアログ待ちフラグ
	PendingSkip bool
	PendingExit bool

	StartedAt time.Time
	EndedAt   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionStatus はセッションのライフサイクル状態を表す。
type SessionStatus string

const (
	// SessionStatusActive は進行中のセッション。
	SessionStatusActive SessionStatus = "active"
	// SessionStatusCompleted はVICTORYまで到達して完了したセッション。
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusAbandoned は途中離脱で破棄されたセッション。
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// Stage はワークフローのステージを表す。
type Stage string

const (
	// StageSwipe は全未仕分け写真をスワイプで振り分けるステージ。
	StageSwipe Stage = "swipe"
	// StageCompare は保留写真を再判定するステージ。
	StageCompare Stage = "compare"
	// StageClassify はKeep写真をアルバムへ振り分けるステージ。
	StageClassify Stage = "classify"
	// StageTrash は削除候補を最終確認するステージ。
	StageTrash Stage = "trash"
	// StageVictory は完了画面。終端ステージで遷移先はない。
	StageVictory Stage = "victory"
)

// SessionStats はセッション完了時の集計値を表す。
type SessionStats struct {
	SortedCount     int
	KeptCount       int
	TrashedCount    int
	MaybeCount      int
	ClassifiedCount int
	BestStreak      int
	Duration        time.Duration
}
