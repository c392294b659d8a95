package mutate

import (
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/photozen/internal/mediastore"
	"github.com/hitoshi/photozen/internal/model"
)

// MutationResult はファイル操作1回の実行結果の分類。
type MutationResult int

const (
	// MutationResultOK は実行成功。
	MutationResultOK MutationResult = iota
	// MutationResultTransient は一時エラー（バックオフ後に再試行）。
	MutationResultTransient
	// MutationResultPermanent は恒久エラー（再試行しない）。
	MutationResultPermanent
)

const (
	// initialBackoff は指数バックオフの初回遅延（30秒）。
	initialBackoff = 30 * time.Second
	// maxBackoff は指数バックオフの最大遅延（30分）。
	maxBackoff = 30 * time.Minute
	// failureThreshold は一時エラーの連続による中止の閾値。
	failureThreshold = 10
)

var (
	// errPhotoMissing は対象写真がカタログから消えている場合の恒久エラー。
	errPhotoMissing = errors.New("対象の写真がカタログに存在しません")
	// errAlbumMissing は移動先アルバムが存在しない場合の恒久エラー。
	errAlbumMissing = errors.New("移動先のアルバムが存在しません")
	// errUnknownKind は未知の操作種別の恒久エラー。
	errUnknownKind = errors.New("未知の操作種別です")
	// errMutationObsolete は実行時点で写真側の前提が変わっていた場合のシグナル。
	// 失敗ではなく取り消しとして扱う。
	errMutationObsolete = errors.New("写真の状態が変わったため操作は不要です")
)

// ClassifyMutationError はファイル操作のエラーを実行結果に分類する。
// 移動元ファイルの消失、写真・アルバムの不在は再試行しても解決しないため
// 恒久エラーとする。それ以外のI/OエラーとDBエラーは一時エラーとして扱う。
func ClassifyMutationError(err error) MutationResult {
	switch {
	case err == nil:
		return MutationResultOK
	case errors.Is(err, mediastore.ErrSourceMissing),
		errors.Is(err, errPhotoMissing),
		errors.Is(err, errAlbumMissing),
		errors.Is(err, errUnknownKind):
		return MutationResultPermanent
	default:
		return MutationResultTransient
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30秒、2倍ずつ増加、最大30分。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ApplySuccess は実行成功を操作へ反映する。
func ApplySuccess(mutation *model.MediaMutation) {
	mutation.Status = model.MutationStatusDone
	mutation.ConsecutiveErrors = 0
	mutation.LastError = ""
	mutation.UpdatedAt = time.Now()
}

// ApplyTransientFailure は一時エラーを操作へ反映する。
// 連続エラー回数をインクリメントし、指数バックオフでnext_attempt_atを設定する。
// 閾値に達した場合は操作を中止する。
func ApplyTransientFailure(mutation *model.MediaMutation, reason string) {
	mutation.ConsecutiveErrors++
	mutation.LastError = reason
	mutation.NextAttemptAt = time.Now().Add(CalculateBackoff(mutation.ConsecutiveErrors - 1))
	mutation.UpdatedAt = time.Now()

	if mutation.ConsecutiveErrors >= failureThreshold {
		mutation.Status = model.MutationStatusFailed
		mutation.LastError = fmt.Sprintf("%d回連続で失敗したため中止しました: %s", mutation.ConsecutiveErrors, reason)
	}
}

// ApplyPermanentFailure は恒久エラーを操作へ反映する。再試行は行わない。
func ApplyPermanentFailure(mutation *model.MediaMutation, reason string) {
	mutation.Status = model.MutationStatusFailed
	mutation.LastError = reason
	mutation.UpdatedAt = time.Now()
}

// WillRetry は操作が再試行される予定かどうかを返す。
func WillRetry(mutation *model.MediaMutation) bool {
	return mutation.Status == model.MutationStatusPending
}
