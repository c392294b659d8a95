// Package workflow は片づけセッションのステージ進行とドメインロジックを提供する。
//
// ステージはSWIPE→COMPARE→CLASSIFY→TRASH→VICTORYの順に一方向へ進む。
// CardSortingAlbumEnabledフラグが有効な場合はCLASSIFYを省いた4段構成になる。
// 進行判定（クリア条件・残数）は純粋関数として切り出し、
// セッションの読み書きはServiceが担当する。
package workflow

import "github.com/hitoshi/photozen/internal/model"

// Stages はワークフローのステージ列を先頭から順に返す。
// cardSortingAlbumEnabledがtrueの場合、CLASSIFYを省いた4段構成を返す。
func Stages(cardSortingAlbumEnabled bool) []model.Stage {
	if cardSortingAlbumEnabled {
		return []model.Stage{
			model.StageSwipe,
			model.StageCompare,
			model.StageTrash,
			model.StageVictory,
		}
	}
	return []model.Stage{
		model.StageSwipe,
		model.StageCompare,
		model.StageClassify,
		model.StageTrash,
		model.StageVictory,
	}
}

// StageIndex はステージ列内での位置を返す。
// ステージが構成に含まれない場合は-1を返す。
func StageIndex(stage model.Stage, cardSortingAlbumEnabled bool) int {
	for i, s := range Stages(cardSortingAlbumEnabled) {
		if s == stage {
			return i
		}
	}
	return -1
}

// NextStage は次のステージを返す。
// VICTORYは終端のため、次がない場合はfalseを返す。
func NextStage(stage model.Stage, cardSortingAlbumEnabled bool) (model.Stage, bool) {
	stages := Stages(cardSortingAlbumEnabled)
	idx := StageIndex(stage, cardSortingAlbumEnabled)
	if idx < 0 || idx >= len(stages)-1 {
		return "", false
	}
	return stages[idx+1], true
}
