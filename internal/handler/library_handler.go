package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/photo"
)

// LibraryStatusService はライブラリ状況取得のインターフェース。
type LibraryStatusService interface {
	// Status はステータス集計・本日の進捗・実行待ちファイル操作数を返す。
	Status(ctx context.Context) (*photo.LibraryStatus, error)
}

// ScanTrigger はライブラリスキャンの起動要求のインターフェース。
// スキャン本体はワーカーのスケジューラが直列に実行する。
type ScanTrigger interface {
	Trigger()
}

// ImportService はリモートURLからの写真取り込みのインターフェース。
type ImportService interface {
	// Import はURLから画像を取得してライブラリへ登録する。
	Import(ctx context.Context, rawURL string) (*model.Photo, error)
}

// LibraryHandler はライブラリ管理のHTTPハンドラー。
type LibraryHandler struct {
	status   LibraryStatusService
	scans    ScanTrigger
	importer ImportService
}

// NewLibraryHandler はLibraryHandlerを生成する。
func NewLibraryHandler(status LibraryStatusService, scans ScanTrigger, importer ImportService) *LibraryHandler {
	return &LibraryHandler{
		status:   status,
		scans:    scans,
		importer: importer,
	}
}

// --- リクエスト・レスポンス型 ---

// importPhotoRequest は写真取り込みリクエストのボディ。
type importPhotoRequest struct {
	URL string `json:"url"`
}

// statusCountsResponse はステータスごとの写真枚数のAPIレスポンス。
type statusCountsResponse struct {
	Unsorted int `json:"unsorted"`
	Keep     int `json:"keep"`
	Maybe    int `json:"maybe"`
	Trash    int `json:"trash"`
	Total    int `json:"total"`
}

// libraryStatusResponse はライブラリ状況のAPIレスポンス。
type libraryStatusResponse struct {
	Counts           statusCountsResponse `json:"counts"`
	TodayCount       int                  `json:"today_count"`
	TodayQuota       int                  `json:"today_quota"`
	PendingMutations int                  `json:"pending_mutations"`
}

// scanTriggerResponse はスキャン起動要求のAPIレスポンス。
type scanTriggerResponse struct {
	Status string `json:"status"`
}

// TriggerScan はライブラリの再スキャンを起動する。
// スキャンは非同期で実行されるため202を返す。
// POST /api/library/scan
func (h *LibraryHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	h.scans.Trigger()
	writeJSONResponse(w, http.StatusAccepted, scanTriggerResponse{Status: "scheduled"})
}

// GetStatus はライブラリの状況を取得する。
// GET /api/library/status
func (h *LibraryHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.status.Status(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, libraryStatusResponse{
		Counts: statusCountsResponse{
			Unsorted: status.Counts.Unsorted,
			Keep:     status.Counts.Keep,
			Maybe:    status.Counts.Maybe,
			Trash:    status.Counts.Trash,
			Total:    status.Counts.Total(),
		},
		TodayCount:       status.TodayCount,
		TodayQuota:       status.TodayQuota,
		PendingMutations: status.PendingMutations,
	})
}

// ImportPhoto はリモートURLから写真を取り込む。
// POST /api/photos/import
func (h *LibraryHandler) ImportPhoto(w http.ResponseWriter, r *http.Request) {
	var req importPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	p, err := h.importer.Import(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toPhotoResponse(p))
}
