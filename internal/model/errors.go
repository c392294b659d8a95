// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, session, photo, album, library, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePhotoNotFound     = "PHOTO_NOT_FOUND"
	ErrCodeAlbumNotFound     = "ALBUM_NOT_FOUND"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeSessionActive     = "SESSION_ACTIVE"
	ErrCodeStageMismatch     = "STAGE_MISMATCH"
	ErrCodePhotoNotInStatus  = "PHOTO_NOT_IN_STATUS"
	ErrCodeInvalidStatus     = "INVALID_STATUS"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidDuel       = "INVALID_DUEL"
	ErrCodeNoPendingConfirm  = "NO_PENDING_CONFIRMATION"
	ErrCodeAlbumInUse        = "ALBUM_IN_USE"
	ErrCodeDuplicateAlbum    = "DUPLICATE_ALBUM"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
	ErrCodeImportFailed      = "IMPORT_FAILED"
	ErrCodeNotAnImage        = "NOT_AN_IMAGE"
	ErrCodeImportTooLarge    = "IMPORT_TOO_LARGE"
)

// NewPhotoNotFoundError は写真未検出エラーを生成する。
func NewPhotoNotFoundError(photoID string) *APIError {
	return &APIError{
		Code:     ErrCodePhotoNotFound,
		Message:  fmt.Sprintf("指定された写真が見つかりません: %s", photoID),
		Category: "photo",
		Action:   "写真IDを確認してください。ライブラリのスキャン後に削除された可能性があります。",
	}
}

// NewAlbumNotFoundError はアルバム未検出エラーを生成する。
func NewAlbumNotFoundError(albumID string) *APIError {
	return &APIError{
		Code:     ErrCodeAlbumNotFound,
		Message:  fmt.Sprintf("指定されたアルバムが見つかりません: %s", albumID),
		Category: "album",
		Action:   "アルバムIDを確認してください。",
	}
}

// NewSessionNotFoundError はアクティブセッションが存在しない場合のエラーを生成する。
func NewSessionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  "進行中のセッションがありません。",
		Category: "session",
		Action:   "セッションを開始してから操作してください。",
	}
}

// NewSessionActiveError は既にセッションが進行中の場合のエラーを生成する。
func NewSessionActiveError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionActive,
		Message:  "別のセッションが進行中です。",
		Category: "session",
		Action:   "進行中のセッションを再開するか、終了してから新しく開始してください。",
	}
}

// NewStageMismatchError は現在のステージで許可されない操作のエラーを生成する。
func NewStageMismatchError(current Stage, operation string) *APIError {
	return &APIError{
		Code:     ErrCodeStageMismatch,
		Message:  fmt.Sprintf("現在のステージ（%s）では %s は実行できません。", current, operation),
		Category: "session",
		Action:   "セッション状態を取得し直して、現在のステージに対応する操作を行ってください。",
	}
}

// NewPhotoNotInStatusError は写真が期待するステータスにない場合のエラーを生成する。
func NewPhotoNotInStatusError(photoID string, want PhotoStatus) *APIError {
	return &APIError{
		Code:     ErrCodePhotoNotInStatus,
		Message:  fmt.Sprintf("写真 %s はステータス %s ではありません。", photoID, want),
		Category: "photo",
		Action:   "最新のセッション状態を取得し直してください。",
	}
}

// NewInvalidStatusError は無効なステータス文字列のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには unsorted、keep、maybe、trash のいずれかを指定してください。",
	}
}

// NewInvalidRequestError はリクエスト形式不正のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの形式とパラメータを確認してください。",
	}
}

// NewInvalidDuelError は同一写真同士の比較を要求された場合のエラーを生成する。
func NewInvalidDuelError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDuel,
		Message:  "同じ写真同士は比較できません。",
		Category: "validation",
		Action:   "異なる2枚の写真を指定してください。",
	}
}

// NewNoPendingConfirmationError は確認待ち状態がない場合のエラーを生成する。
func NewNoPendingConfirmationError() *APIError {
	return &APIError{
		Code:     ErrCodeNoPendingConfirm,
		Message:  "確認待ちの操作がありません。",
		Category: "session",
		Action:   "スキップまたは終了を要求してから確定してください。",
	}
}

// NewAlbumInUseError は写真が残っているアルバムを削除しようとした場合のエラーを生成する。
func NewAlbumInUseError(count int) *APIError {
	return &APIError{
		Code:     ErrCodeAlbumInUse,
		Message:  fmt.Sprintf("アルバムには写真が %d 枚残っています。", count),
		Category: "album",
		Action:   "写真を別のアルバムへ移すか、ステータスを変更してから削除してください。",
	}
}

// NewDuplicateAlbumError は同名アルバムが既に存在する場合のエラーを生成する。
func NewDuplicateAlbumError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateAlbum,
		Message:  fmt.Sprintf("同じ名前のアルバムが既に存在します: %s", name),
		Category: "album",
		Action:   "別の名前を指定してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewImportFailedError はリモート取り込み失敗エラーを生成する。
func NewImportFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFailed,
		Message:  fmt.Sprintf("画像の取り込みに失敗しました: %s", reason),
		Category: "library",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewNotAnImageError は取得したコンテンツが画像でない場合のエラーを生成する。
func NewNotAnImageError(contentType string) *APIError {
	return &APIError{
		Code:     ErrCodeNotAnImage,
		Message:  fmt.Sprintf("取得したコンテンツは画像ではありません: %s", contentType),
		Category: "library",
		Action:   "画像ファイルへの直接URLか、画像を含むページのURLを指定してください。",
	}
}

// NewImportTooLargeError は取り込みサイズ上限超過エラーを生成する。
func NewImportTooLargeError(limitBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeImportTooLarge,
		Message:  fmt.Sprintf("画像サイズが上限（%dバイト）を超えています。", limitBytes),
		Category: "library",
		Action:   "より小さい画像を指定してください。",
	}
}
