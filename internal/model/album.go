// Package model はドメインモデルを定義する。
package model

import "time"

// Album はKeep写真の振り分け先アルバムを表す。
type Album struct {
	ID              string
	Name            string
	Description     string // Markdown原文
	DescriptionHTML string // サービス層でレンダリングされる。永続化されない
	RenameTemplate  string // 空ならリネームしない
	PhotoCount      int    // photosテーブルから導出
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
