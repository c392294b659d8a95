// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/swipe"
	"github.com/hitoshi/photozen/internal/workflow"
)

// WorkflowServiceInterface は片づけセッションハンドラーが必要とするサービスインターフェース。
type WorkflowServiceInterface interface {
	// Start は新しい片づけセッションを開始する。
	Start(ctx context.Context) (*model.WorkflowSession, error)
	// Current はアクティブなセッションを返す。存在しない場合はnilを返す。
	Current(ctx context.Context) (*model.WorkflowSession, error)
	// Swipe はSWIPEステージでのスワイプジェスチャーを処理する。
	Swipe(ctx context.Context, photoID string, dx, dy float64) (*workflow.SwipeResult, error)
	// ResolveCompare はCOMPAREステージで保留写真1枚を再判定する。
	ResolveCompare(ctx context.Context, photoID string, outcome model.PhotoStatus) (*workflow.StageResult, error)
	// Duel はCOMPAREステージで保留写真2枚を比較する。
	Duel(ctx context.Context, winnerID, loserID string) (*workflow.StageResult, error)
	// NextClassify はCLASSIFYステージで次に振り分ける写真を返す。
	NextClassify(ctx context.Context) (*model.Photo, error)
	// AssignAlbum はCLASSIFYステージで写真をアルバムへ振り分ける。
	AssignAlbum(ctx context.Context, photoID, albumID string) (*workflow.StageResult, error)
	// SkipClassify はCLASSIFYステージで現在の写真を振り分けずに次へ送る。
	SkipClassify(ctx context.Context) (*workflow.StageResult, error)
	// RestoreTrash はTRASHステージで削除候補を未仕分けに戻す。
	RestoreTrash(ctx context.Context, photoID string) (*workflow.StageResult, error)
	// PurgeTrash はTRASHステージで削除候補をゴミ箱ディレクトリへ退避する。
	PurgeTrash(ctx context.Context, photoIDs []string) (*workflow.StageResult, error)
	// RequestSkip は現在のステージのスキップを要求する。
	RequestSkip(ctx context.Context) (*workflow.SkipResult, error)
	// ConfirmSkip は確認待ちのスキップを確定する。
	ConfirmSkip(ctx context.Context) (*workflow.StageResult, error)
	// DeclineSkip は確認待ちのスキップを取り消す。
	DeclineSkip(ctx context.Context) (*model.WorkflowSession, error)
	// RequestExit はセッションの途中終了を要求する。
	RequestExit(ctx context.Context) (*model.WorkflowSession, error)
	// ConfirmExit は確認待ちの途中終了を確定する。
	ConfirmExit(ctx context.Context) (*model.WorkflowSession, error)
	// DeclineExit は確認待ちの途中終了を取り消す。
	DeclineExit(ctx context.Context) (*model.WorkflowSession, error)
	// Finish はVICTORYステージでセッションを完了する。
	Finish(ctx context.Context) (*model.SessionStats, error)
}

// SessionHandler は片づけセッションのHTTPハンドラー。
type SessionHandler struct {
	service WorkflowServiceInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service WorkflowServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

// --- リクエスト型 ---

// swipeRequest はスワイプ確定リクエストのボディ。
// dx/dyはカード寸法で正規化されたドラッグ量（右・下が正）。
type swipeRequest struct {
	PhotoID string  `json:"photo_id"`
	DX      float64 `json:"dx"`
	DY      float64 `json:"dy"`
}

// compareRequest は保留再判定リクエストのボディ。
// photo_id+outcomeの単独形式か、winner_id+loser_idの比較形式のいずれかを指定する。
type compareRequest struct {
	PhotoID  string `json:"photo_id,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	WinnerID string `json:"winner_id,omitempty"`
	LoserID  string `json:"loser_id,omitempty"`
}

// classifyRequest はアルバム振り分けリクエストのボディ。
type classifyRequest struct {
	PhotoID string `json:"photo_id,omitempty"`
	AlbumID string `json:"album_id,omitempty"`
	Skip    bool   `json:"skip,omitempty"`
}

// trashRestoreRequest は削除候補復元リクエストのボディ。
type trashRestoreRequest struct {
	PhotoID string `json:"photo_id"`
}

// trashPurgeRequest は削除候補退避リクエストのボディ。
// photo_idsで対象を指定するか、all=trueで削除候補全体を対象にする。
type trashPurgeRequest struct {
	PhotoIDs []string `json:"photo_ids,omitempty"`
	All      bool     `json:"all,omitempty"`
}

// --- レスポンス型 ---

// sessionResponse はセッション状態のAPIレスポンス。
type sessionResponse struct {
	ID                      string     `json:"id"`
	Status                  string     `json:"status"`
	Stage                   string     `json:"stage"`
	CardSortingAlbumEnabled bool       `json:"card_sorting_album_enabled"`
	UnsortedRemaining       int        `json:"unsorted_remaining"`
	MaybeRemaining          int        `json:"maybe_remaining"`
	KeepCount               int        `json:"keep_count"`
	ClassifyIndex           int        `json:"classify_index"`
	TrashRemaining          int        `json:"trash_remaining"`
	SortedCount             int        `json:"sorted_count"`
	KeptCount               int        `json:"kept_count"`
	TrashedCount            int        `json:"trashed_count"`
	MaybeCount              int        `json:"maybe_count"`
	ClassifiedCount         int        `json:"classified_count"`
	ComboStreak             int        `json:"combo_streak"`
	BestStreak              int        `json:"best_streak"`
	PendingSkip             bool       `json:"pending_skip"`
	PendingExit             bool       `json:"pending_exit"`
	StartedAt               time.Time  `json:"started_at"`
	EndedAt                 *time.Time `json:"ended_at,omitempty"`
}

// transitionResponse はステージ遷移のAPIレスポンス。
type transitionResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// gestureResponse はスワイプ判定結果のAPIレスポンス。
type gestureResponse struct {
	Direction        string  `json:"direction"`
	Outcome          string  `json:"outcome,omitempty"`
	Magnitude        float64 `json:"magnitude"`
	LabelVisible     bool    `json:"label_visible"`
	ReachedThreshold bool    `json:"reached_threshold"`
}

// swipeResponse はスワイプ確定のAPIレスポンス。
type swipeResponse struct {
	Session     sessionResponse      `json:"session"`
	Gesture     gestureResponse      `json:"gesture"`
	Committed   bool                 `json:"committed"`
	ComboLevel  int                  `json:"combo_level"`
	Transitions []transitionResponse `json:"transitions,omitempty"`
}

// stageResultResponse はステージ内操作のAPIレスポンス。
type stageResultResponse struct {
	Session     sessionResponse      `json:"session"`
	Transitions []transitionResponse `json:"transitions,omitempty"`
}

// skipResultResponse はスキップ要求のAPIレスポンス。
type skipResultResponse struct {
	Session              sessionResponse      `json:"session"`
	ConfirmationRequired bool                 `json:"confirmation_required"`
	Remaining            int                  `json:"remaining"`
	Transitions          []transitionResponse `json:"transitions,omitempty"`
}

// sessionStatsResponse はセッション完了時の集計値のAPIレスポンス。
type sessionStatsResponse struct {
	SortedCount     int `json:"sorted_count"`
	KeptCount       int `json:"kept_count"`
	TrashedCount    int `json:"trashed_count"`
	MaybeCount      int `json:"maybe_count"`
	ClassifiedCount int `json:"classified_count"`
	BestStreak      int `json:"best_streak"`
	DurationSeconds int `json:"duration_seconds"`
}

// classifyNextResponse は次の振り分け対象のAPIレスポンス。
// 全Keep写真の判断が終わっている場合、photoはnullになる。
type classifyNextResponse struct {
	Photo *photoResponse `json:"photo"`
}

// Start は新しい片づけセッションを開始する。
// POST /api/session
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Start(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toSessionResponse(session))
}

// Get はアクティブなセッション状態を返す。
// GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Current(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if session == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSessionNotFoundError())
		return
	}

	writeJSONResponse(w, http.StatusOK, toSessionResponse(session))
}

// Swipe はスワイプリリースを処理する。
// POST /api/session/swipes
func (h *SessionHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	var req swipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if req.PhotoID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("photo_idが空です"))
		return
	}

	result, err := h.service.Swipe(r.Context(), req.PhotoID, req.DX, req.DY)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, swipeResponse{
		Session:     toSessionResponse(result.Session),
		Gesture:     toGestureResponse(result.Gesture),
		Committed:   result.Committed,
		ComboLevel:  result.ComboLevel,
		Transitions: toTransitionResponses(result.Transitions),
	})
}

// Compare は保留写真の再判定を処理する。
// POST /api/session/compare
func (h *SessionHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	var result *workflow.StageResult
	var err error
	switch {
	case req.WinnerID != "" || req.LoserID != "":
		if req.WinnerID == "" || req.LoserID == "" {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("winner_idとloser_idの両方を指定してください"))
			return
		}
		result, err = h.service.Duel(r.Context(), req.WinnerID, req.LoserID)
	case req.PhotoID != "":
		result, err = h.service.ResolveCompare(r.Context(), req.PhotoID, model.PhotoStatus(req.Outcome))
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("photo_idまたはwinner_id/loser_idを指定してください"))
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeStageResult(w, result)
}

// Classify はアルバム振り分けまたは見送りを処理する。
// POST /api/session/classify
func (h *SessionHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	var result *workflow.StageResult
	var err error
	if req.Skip {
		result, err = h.service.SkipClassify(r.Context())
	} else {
		if req.PhotoID == "" || req.AlbumID == "" {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("photo_idとalbum_idを指定するか、skipをtrueにしてください"))
			return
		}
		result, err = h.service.AssignAlbum(r.Context(), req.PhotoID, req.AlbumID)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeStageResult(w, result)
}

// ClassifyNext は次に振り分ける写真を返す。
// GET /api/session/classify/next
func (h *SessionHandler) ClassifyNext(w http.ResponseWriter, r *http.Request) {
	photo, err := h.service.NextClassify(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var resp classifyNextResponse
	if photo != nil {
		p := toPhotoResponse(photo)
		resp.Photo = &p
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// RestoreTrash は削除候補を未仕分けに戻す。
// POST /api/session/trash/restore
func (h *SessionHandler) RestoreTrash(w http.ResponseWriter, r *http.Request) {
	var req trashRestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if req.PhotoID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("photo_idが空です"))
		return
	}

	result, err := h.service.RestoreTrash(r.Context(), req.PhotoID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeStageResult(w, result)
}

// PurgeTrash は削除候補をゴミ箱ディレクトリへ退避する。
// POST /api/session/trash/purge
func (h *SessionHandler) PurgeTrash(w http.ResponseWriter, r *http.Request) {
	var req trashPurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	// 空ボディでの全退避事故を防ぐため、対象は明示させる
	if len(req.PhotoIDs) == 0 && !req.All {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("photo_idsを指定するか、allをtrueにしてください"))
		return
	}

	var targets []string
	if !req.All {
		targets = req.PhotoIDs
	}

	result, err := h.service.PurgeTrash(r.Context(), targets)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeStageResult(w, result)
}

// RequestSkip は現在のステージのスキップを要求する。
// POST /api/session/skip
func (h *SessionHandler) RequestSkip(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RequestSkip(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, skipResultResponse{
		Session:              toSessionResponse(result.Session),
		ConfirmationRequired: result.ConfirmationRequired,
		Remaining:            result.Remaining,
		Transitions:          toTransitionResponses(result.Transitions),
	})
}

// ConfirmSkip は確認待ちのスキップを確定する。
// POST /api/session/skip/confirm
func (h *SessionHandler) ConfirmSkip(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ConfirmSkip(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeStageResult(w, result)
}

// DeclineSkip は確認待ちのスキップを取り消す。
// POST /api/session/skip/decline
func (h *SessionHandler) DeclineSkip(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.DeclineSkip(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toSessionResponse(session))
}

// RequestExit はセッションの途中終了を要求する。
// POST /api/session/exit
func (h *SessionHandler) RequestExit(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.RequestExit(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toSessionResponse(session))
}

// ConfirmExit は確認待ちの途中終了を確定し、セッションを破棄する。
// POST /api/session/exit/confirm
func (h *SessionHandler) ConfirmExit(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.ConfirmExit(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toSessionResponse(session))
}

// DeclineExit は確認待ちの途中終了を取り消す。
// POST /api/session/exit/decline
func (h *SessionHandler) DeclineExit(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.DeclineExit(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toSessionResponse(session))
}

// Finish はVICTORYステージでセッションを完了し、集計値を返す。
// POST /api/session/finish
func (h *SessionHandler) Finish(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Finish(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, sessionStatsResponse{
		SortedCount:     stats.SortedCount,
		KeptCount:       stats.KeptCount,
		TrashedCount:    stats.TrashedCount,
		MaybeCount:      stats.MaybeCount,
		ClassifiedCount: stats.ClassifiedCount,
		BestStreak:      stats.BestStreak,
		DurationSeconds: int(stats.Duration.Seconds()),
	})
}

// --- ヘルパー関数 ---

// toSessionResponse はmodel.WorkflowSessionからAPIレスポンスに変換する。
func toSessionResponse(session *model.WorkflowSession) sessionResponse {
	return sessionResponse{
		ID:                      session.ID,
		Status:                  string(session.Status),
		Stage:                   string(session.Stage),
		CardSortingAlbumEnabled: session.CardSortingAlbumEnabled,
		UnsortedRemaining:       session.UnsortedRemaining,
		MaybeRemaining:          session.MaybeRemaining,
		KeepCount:               session.KeepCount,
		ClassifyIndex:           session.ClassifyIndex,
		TrashRemaining:          session.TrashRemaining,
		SortedCount:             session.SortedCount,
		KeptCount:               session.KeptCount,
		TrashedCount:            session.TrashedCount,
		MaybeCount:              session.MaybeCount,
		ClassifiedCount:         session.ClassifiedCount,
		ComboStreak:             session.ComboStreak,
		BestStreak:              session.BestStreak,
		PendingSkip:             session.PendingSkip,
		PendingExit:             session.PendingExit,
		StartedAt:               session.StartedAt,
		EndedAt:                 session.EndedAt,
	}
}

// toGestureResponse はswipe.GestureからAPIレスポンスに変換する。
func toGestureResponse(g swipe.Gesture) gestureResponse {
	return gestureResponse{
		Direction:        g.Direction.String(),
		Outcome:          string(g.Outcome),
		Magnitude:        g.Magnitude,
		LabelVisible:     g.LabelVisible,
		ReachedThreshold: g.ReachedThreshold,
	}
}

// toTransitionResponses はステージ遷移列をAPIレスポンスに変換する。
func toTransitionResponses(transitions []workflow.Transition) []transitionResponse {
	if len(transitions) == 0 {
		return nil
	}
	out := make([]transitionResponse, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, transitionResponse{From: string(t.From), To: string(t.To)})
	}
	return out
}

// writeStageResult はステージ内操作の結果を書き込む。
func writeStageResult(w http.ResponseWriter, result *workflow.StageResult) {
	writeJSONResponse(w, http.StatusOK, stageResultResponse{
		Session:     toSessionResponse(result.Session),
		Transitions: toTransitionResponses(result.Transitions),
	})
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeInvalidBodyResponse はリクエストボディ解析失敗のエラーレスポンスを書き込む。
func writeInvalidBodyResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodePhotoNotFound, model.ErrCodeAlbumNotFound, model.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case model.ErrCodeSessionActive, model.ErrCodeAlbumInUse, model.ErrCodeDuplicateAlbum:
		return http.StatusConflict
	case model.ErrCodeStageMismatch, model.ErrCodePhotoNotInStatus, model.ErrCodeNoPendingConfirm:
		return http.StatusConflict
	case model.ErrCodeInvalidStatus, model.ErrCodeInvalidRequest, model.ErrCodeInvalidURL, model.ErrCodeInvalidDuel:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeImportFailed:
		return http.StatusBadGateway
	case model.ErrCodeNotAnImage:
		return http.StatusUnprocessableEntity
	case model.ErrCodeImportTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
