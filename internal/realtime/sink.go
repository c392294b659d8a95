package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hitoshi/photozen/internal/workflow"
)

// Message はWebSocketで配信するイベントの外形。
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Sink はワークフローイベントをWebSocketハブへ配信するEventSink実装。
// 配信は通知目的であり、シリアライズに失敗したイベントは警告ログを
// 残して破棄する。
type Sink struct {
	hub    *Hub
	logger *slog.Logger
}

// NewSink は新しいSinkを生成する。
func NewSink(hub *Hub, logger *slog.Logger) *Sink {
	return &Sink{
		hub:    hub,
		logger: logger,
	}
}

// Publish はイベントをJSONメッセージに変換してハブへ渡す。
func (s *Sink) Publish(event workflow.Event) {
	msg := Message{
		Type:      event.EventType(),
		Payload:   eventPayload(event),
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("イベントのシリアライズに失敗しました",
			slog.String("event_type", event.EventType()),
			slog.String("error", err.Error()),
		)
		return
	}

	s.hub.Broadcast(data)
}

// sessionStartedPayload はsession_startedイベントの配信形。
type sessionStartedPayload struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage"`
}

// classificationPayload はclassification_recordedイベントの配信形。
type classificationPayload struct {
	SessionID   string `json:"session_id"`
	PhotoID     string `json:"photo_id"`
	Outcome     string `json:"outcome"`
	ComboStreak int    `json:"combo_streak"`
	ComboLevel  int    `json:"combo_level"`
}

// stageTransitionPayload はstage_transitionedイベントの配信形。
type stageTransitionPayload struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Auto      bool   `json:"auto"`
}

// confirmationPayload はconfirmation_requestedイベントの配信形。
type confirmationPayload struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Stage     string `json:"stage"`
	Remaining int    `json:"remaining"`
}

// sessionCompletedPayload はsession_completedイベントの配信形。
type sessionCompletedPayload struct {
	SessionID       string `json:"session_id"`
	SortedCount     int    `json:"sorted_count"`
	KeptCount       int    `json:"kept_count"`
	TrashedCount    int    `json:"trashed_count"`
	MaybeCount      int    `json:"maybe_count"`
	ClassifiedCount int    `json:"classified_count"`
	BestStreak      int    `json:"best_streak"`
	DurationSeconds int    `json:"duration_seconds"`
}

// sessionAbandonedPayload はsession_abandonedイベントの配信形。
type sessionAbandonedPayload struct {
	SessionID string `json:"session_id"`
}

// mutationFailedPayload はmutation_failedイベントの配信形。
type mutationFailedPayload struct {
	PhotoID   string `json:"photo_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	WillRetry bool   `json:"will_retry"`
}

// scanCompletedPayload はscan_completedイベントの配信形。
type scanCompletedPayload struct {
	Added      int   `json:"added"`
	Updated    int   `json:"updated"`
	Removed    int   `json:"removed"`
	DurationMS int64 `json:"duration_ms"`
}

// eventPayload はワークフローイベントを配信用DTOに変換する。
// 未知のイベント型はペイロードなしで配信される。
func eventPayload(event workflow.Event) interface{} {
	switch e := event.(type) {
	case workflow.SessionStarted:
		return sessionStartedPayload{
			SessionID: e.SessionID,
			Stage:     string(e.Stage),
		}
	case workflow.ClassificationRecorded:
		return classificationPayload{
			SessionID:   e.SessionID,
			PhotoID:     e.PhotoID,
			Outcome:     string(e.Outcome),
			ComboStreak: e.ComboStreak,
			ComboLevel:  e.ComboLevel,
		}
	case workflow.StageTransitioned:
		return stageTransitionPayload{
			SessionID: e.SessionID,
			From:      string(e.From),
			To:        string(e.To),
			Auto:      e.Auto,
		}
	case workflow.ConfirmationRequested:
		return confirmationPayload{
			SessionID: e.SessionID,
			Kind:      e.Kind,
			Stage:     string(e.Stage),
			Remaining: e.Remaining,
		}
	case workflow.SessionCompleted:
		return sessionCompletedPayload{
			SessionID:       e.SessionID,
			SortedCount:     e.Stats.SortedCount,
			KeptCount:       e.Stats.KeptCount,
			TrashedCount:    e.Stats.TrashedCount,
			MaybeCount:      e.Stats.MaybeCount,
			ClassifiedCount: e.Stats.ClassifiedCount,
			BestStreak:      e.Stats.BestStreak,
			DurationSeconds: int(e.Stats.Duration.Seconds()),
		}
	case workflow.SessionAbandoned:
		return sessionAbandonedPayload{
			SessionID: e.SessionID,
		}
	case workflow.MutationFailed:
		return mutationFailedPayload{
			PhotoID:   e.PhotoID,
			Kind:      string(e.Kind),
			Message:   e.Message,
			WillRetry: e.WillRetry,
		}
	case workflow.ScanCompleted:
		return scanCompletedPayload{
			Added:      e.Added,
			Updated:    e.Updated,
			Removed:    e.Removed,
			DurationMS: e.Duration.Milliseconds(),
		}
	default:
		return nil
	}
}
