package swipe

import "github.com/hitoshi/photozen/internal/model"

const (
	// DefaultComboLevelStep はコンボレベルが1上がるのに必要な連続回数の既定値。
	DefaultComboLevelStep = 5
	// DefaultComboMaxLevel はコンボレベル上限の既定値。
	DefaultComboMaxLevel = 4
)

// ComboRule はコンボ計算の設定。
type ComboRule struct {
	LevelStep int
	MaxLevel  int
}

// DefaultComboRule は既定のコンボ設定を返す。
func DefaultComboRule() ComboRule {
	return ComboRule{
		LevelStep: DefaultComboLevelStep,
		MaxLevel:  DefaultComboMaxLevel,
	}
}

// ComboState は連続仕分けのコンボ状態。セッション内でのみ有効。
type ComboState struct {
	Streak int
	Level  int
}

// Record は仕分け結果を反映した新しいコンボ状態を返す。
// KeepとMaybeはストリークをちょうど1増やし、Trashはちょうど0にリセットする。
// ストリークが負になることはない。
func Record(state ComboState, outcome model.PhotoStatus, rule ComboRule) ComboState {
	switch outcome {
	case model.PhotoStatusKeep, model.PhotoStatusMaybe:
		state.Streak++
	case model.PhotoStatusTrash:
		state.Streak = 0
	}

	state.Level = LevelFor(state.Streak, rule)
	return state
}

// LevelFor はストリークからコンボレベルを計算する。
// レベルはstreak/LevelStepで、MaxLevelで頭打ちになる。
func LevelFor(streak int, rule ComboRule) int {
	if rule.LevelStep <= 0 {
		return 0
	}
	level := streak / rule.LevelStep
	if level > rule.MaxLevel {
		return rule.MaxLevel
	}
	return level
}
