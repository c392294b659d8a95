package workflow

import (
	"time"

	"github.com/hitoshi/photozen/internal/model"
)

// Event はワークフロー進行中にUIへ通知するイベントを表す。
// WebSocket配信用の種別名をEventTypeで返す。
type Event interface {
	EventType() string
}

// EventSink はイベントの配信先を表す。
// 配信は通知目的であり、失敗してもワークフローの進行には影響しない。
type EventSink interface {
	Publish(event Event)
}

// SessionStarted はセッション開始イベント。
type SessionStarted struct {
	SessionID string
	Stage     model.Stage
}

// EventType はイベント種別名を返す。
func (SessionStarted) EventType() string { return "session_started" }

// ClassificationRecorded はスワイプ確定イベント。コンボ演出の駆動に使う。
type ClassificationRecorded struct {
	SessionID   string
	PhotoID     string
	Outcome     model.PhotoStatus
	ComboStreak int
	ComboLevel  int
}

// EventType はイベント種別名を返す。
func (ClassificationRecorded) EventType() string { return "classification_recorded" }

// StageTransitioned はステージ遷移イベント。
// 自動進行による遷移はAutoがtrueになる。
type StageTransitioned struct {
	SessionID string
	From      model.Stage
	To        model.Stage
	Auto      bool
}

// EventType はイベント種別名を返す。
func (StageTransitioned) EventType() string { return "stage_transitioned" }

// ConfirmationRequested は確認ダイアログ要求イベント。
// Kindはskipまたはexit。Remainingは現在ステージの残作業数。
type ConfirmationRequested struct {
	SessionID string
	Kind      string
	Stage     model.Stage
	Remaining int
}

// EventType はイベント種別名を返す。
func (ConfirmationRequested) EventType() string { return "confirmation_requested" }

// SessionCompleted はセッション完了イベント。完了画面の集計値を含む。
type SessionCompleted struct {
	SessionID string
	Stats     model.SessionStats
}

// EventType はイベント種別名を返す。
func (SessionCompleted) EventType() string { return "session_completed" }

// SessionAbandoned はセッション途中離脱イベント。
type SessionAbandoned struct {
	SessionID string
}

// EventType はイベント種別名を返す。
func (SessionAbandoned) EventType() string { return "session_abandoned" }

// MutationFailed はファイル操作の失敗イベント。
// 再試行が予定されている場合はWillRetryがtrueになる。
type MutationFailed struct {
	PhotoID   string
	Kind      model.MutationKind
	Message   string
	WillRetry bool
}

// EventType はイベント種別名を返す。
func (MutationFailed) EventType() string { return "mutation_failed" }

// ScanCompleted はライブラリスキャン完了イベント。
type ScanCompleted struct {
	Added    int
	Updated  int
	Removed  int
	Duration time.Duration
}

// EventType はイベント種別名を返す。
func (ScanCompleted) EventType() string { return "scan_completed" }
