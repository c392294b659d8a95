// Package model はドメインモデルを定義する。
package model

import "time"

// ClassificationEvent はスワイプ確定1回の記録を表す。
// 本日の処理枚数（クォータ進捗）と統計の算出に使う。
type ClassificationEvent struct {
	ID          string
	SessionID   string
	PhotoID     string
	Outcome     PhotoStatus
	ComboStreak int
	ComboLevel  int
	CreatedAt   time.Time
}
