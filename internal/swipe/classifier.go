// Package swipe はスワイプジェスチャーの判定とコンボ計算を提供する。
// どちらもセッション状態を持たない純粋関数として実装し、
// 永続化と通知はワークフローサービス側の責務とする。
package swipe

import (
	"math"

	"github.com/hitoshi/photozen/internal/model"
)

// Direction はスワイプの方向を表す。
type Direction int

const (
	// DirectionNone は方向が定まらない状態（移動なし、または両軸が拮抗）。
	DirectionNone Direction = iota
	// DirectionLeft は左方向。
	DirectionLeft
	// DirectionRight は右方向。
	DirectionRight
	// DirectionUp は上方向。
	DirectionUp
	// DirectionDown は下方向。
	DirectionDown
)

// String は方向のAPI表現を返す。
func (d Direction) String() string {
	switch d {
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "none"
	}
}

const (
	// DefaultCommitThreshold は仕分けを確定する移動量の既定値（カード寸法比）。
	DefaultCommitThreshold = 0.55
	// DefaultVisibleThreshold は方向ラベルを表示し始める移動量の既定値。
	DefaultVisibleThreshold = 0.1
)

// Tuning はジェスチャー判定の閾値設定。
type Tuning struct {
	// CommitThreshold はリリース時に仕分けを確定する支配軸移動量。
	CommitThreshold float64
	// VisibleThreshold は方向ラベルを表示する支配軸移動量。
	VisibleThreshold float64
}

// DefaultTuning は既定の閾値設定を返す。
func DefaultTuning() Tuning {
	return Tuning{
		CommitThreshold:  DefaultCommitThreshold,
		VisibleThreshold: DefaultVisibleThreshold,
	}
}

// Gesture は1回のドラッグ量から導出した判定結果。
// リリース時にReachedThresholdがtrueなら写真1枚の仕分けが確定する。
type Gesture struct {
	Direction        Direction
	Outcome          model.PhotoStatus // DirectionNoneの場合は空
	Magnitude        float64           // 支配軸の移動量（絶対値）
	LabelVisible     bool
	ReachedThreshold bool
}

// Classify はカード寸法で正規化されたドラッグ量（dx: 右が正、dy: 下が正）から
// 判定結果を導出する。移動量の絶対値が大きい軸が方向を決め、
// 両軸が同値の場合（双方ゼロを含む）は方向なしとする。
func Classify(dx, dy float64, t Tuning) Gesture {
	absX := math.Abs(dx)
	absY := math.Abs(dy)

	var direction Direction
	var magnitude float64

	switch {
	case absX > absY && dx < 0:
		direction, magnitude = DirectionLeft, absX
	case absX > absY:
		direction, magnitude = DirectionRight, absX
	case absY > absX && dy < 0:
		direction, magnitude = DirectionUp, absY
	case absY > absX:
		direction, magnitude = DirectionDown, absY
	default:
		// 両軸拮抗。移動していても判定しない。
		return Gesture{Direction: DirectionNone, Magnitude: absX}
	}

	return Gesture{
		Direction:        direction,
		Outcome:          OutcomeForDirection(direction),
		Magnitude:        magnitude,
		LabelVisible:     magnitude >= t.VisibleThreshold,
		ReachedThreshold: magnitude >= t.CommitThreshold,
	}
}

// OutcomeForDirection はスワイプ方向を仕分けステータスに対応付ける。
// 左右はどちらもKeep、上はTrash、下はMaybe。DirectionNoneは空を返す。
func OutcomeForDirection(d Direction) model.PhotoStatus {
	switch d {
	case DirectionLeft, DirectionRight:
		return model.PhotoStatusKeep
	case DirectionUp:
		return model.PhotoStatusTrash
	case DirectionDown:
		return model.PhotoStatusMaybe
	default:
		return ""
	}
}
