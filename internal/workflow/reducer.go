package workflow

import (
	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/swipe"
)

// Transition はステージ遷移を表す。
type Transition struct {
	From model.Stage
	To   model.Stage
}

// StageCleared は現在のステージのクリア条件を満たしているかを判定する。
//
// 進行ルール:
//   - SWIPE: 未仕分けが0枚、かつこのセッションで1枚以上仕分けた
//   - COMPARE: 保留が0枚
//   - CLASSIFY: 全Keep写真の振り分け判断が終わった
//   - TRASH: 削除候補が0枚
//   - VICTORY: 終端のためクリア判定なし
//
// SWIPEで仕分け実績を要求するのは、ライブラリが空のまま開始した
// セッションが即座に完了へ流れるのを防ぐため。その場合はスキップ操作で
// 明示的に先へ進む。
func StageCleared(s *model.WorkflowSession) bool {
	switch s.Stage {
	case model.StageSwipe:
		return s.UnsortedRemaining == 0 && s.SortedCount > 0
	case model.StageCompare:
		return s.MaybeRemaining == 0
	case model.StageClassify:
		return s.ClassifyIndex >= s.KeepCount
	case model.StageTrash:
		return s.TrashRemaining == 0
	default:
		return false
	}
}

// RemainingInStage は現在のステージの残作業数を返す。
// スキップ確認ダイアログの「残りN枚」表示に使う。
func RemainingInStage(s *model.WorkflowSession) int {
	switch s.Stage {
	case model.StageSwipe:
		return s.UnsortedRemaining
	case model.StageCompare:
		return s.MaybeRemaining
	case model.StageClassify:
		remaining := s.KeepCount - s.ClassifyIndex
		if remaining < 0 {
			return 0
		}
		return remaining
	case model.StageTrash:
		return s.TrashRemaining
	default:
		return 0
	}
}

// ApplyClassification はSWIPEステージでのスワイプ確定をセッションへ反映する。
// カウンタ更新とコンボ計算を行い、確定後のコンボ状態を返す。
// outcomeはkeep、maybe、trashのいずれかであること。
func ApplyClassification(s *model.WorkflowSession, outcome model.PhotoStatus, rule swipe.ComboRule) swipe.ComboState {
	if s.UnsortedRemaining > 0 {
		s.UnsortedRemaining--
	}
	s.SortedCount++

	switch outcome {
	case model.PhotoStatusKeep:
		s.KeepCount++
		s.KeptCount++
	case model.PhotoStatusMaybe:
		s.MaybeRemaining++
		s.MaybeCount++
	case model.PhotoStatusTrash:
		s.TrashRemaining++
		s.TrashedCount++
	}

	combo := swipe.Record(swipe.ComboState{Streak: s.ComboStreak}, outcome, rule)
	s.ComboStreak = combo.Streak
	if combo.Streak > s.BestStreak {
		s.BestStreak = combo.Streak
	}
	return combo
}

// ApplyCompareResolution はCOMPAREステージでの保留写真の再判定をセッションへ反映する。
// outcomeはkeepまたはtrashのいずれかであること。コンボには影響しない。
func ApplyCompareResolution(s *model.WorkflowSession, outcome model.PhotoStatus) {
	if s.MaybeRemaining > 0 {
		s.MaybeRemaining--
	}

	switch outcome {
	case model.PhotoStatusKeep:
		s.KeepCount++
		s.KeptCount++
	case model.PhotoStatusTrash:
		s.TrashRemaining++
		s.TrashedCount++
	}
}

// ApplyClassifyStep はCLASSIFYステージで1枚分の判断を終えたことをセッションへ反映する。
// アルバムへ振り分けた場合はassignedをtrueにする。振り分けずに送った場合もカードは進む。
func ApplyClassifyStep(s *model.WorkflowSession, assigned bool) {
	s.ClassifyIndex++
	if assigned {
		s.ClassifiedCount++
	}
}

// ApplyTrashResolution はTRASHステージでの最終確認1枚分をセッションへ反映する。
// 復元した場合はrestoredをtrueにする。復元された写真は未仕分けに戻るが、
// ステージは後退しないため次回セッションの対象になる。
func ApplyTrashResolution(s *model.WorkflowSession, restored bool) {
	if s.TrashRemaining > 0 {
		s.TrashRemaining--
	}
	if restored && s.TrashedCount > 0 {
		s.TrashedCount--
	}
}

// AdvanceIfCleared はクリア条件を満たしている限りステージを自動で進める。
// 複数ステージを連鎖して飛ばすことがあり、そのままVICTORYへ到達する場合もある。
// 発生した遷移を順に返す。遷移がなければnilを返す。
func AdvanceIfCleared(s *model.WorkflowSession) []Transition {
	var transitions []Transition
	for StageCleared(s) {
		next, ok := NextStage(s.Stage, s.CardSortingAlbumEnabled)
		if !ok {
			break
		}
		transitions = append(transitions, Transition{From: s.Stage, To: next})
		s.Stage = next
	}
	return transitions
}

// ForceAdvance はクリア条件に関係なくステージを1つ進める。
// スキップ確定時に使う。VICTORYからは進めないためfalseを返す。
func ForceAdvance(s *model.WorkflowSession) (Transition, bool) {
	next, ok := NextStage(s.Stage, s.CardSortingAlbumEnabled)
	if !ok {
		return Transition{}, false
	}
	t := Transition{From: s.Stage, To: next}
	s.Stage = next
	return t, true
}
