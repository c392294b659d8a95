package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/photo"
	"github.com/hitoshi/photozen/internal/thumbnail"
)

// PhotoServiceInterface は写真ハンドラーが必要とするサービスインターフェース。
type PhotoServiceInterface interface {
	// List は写真一覧をステータスフィルタ・ページネーション付きで返す。
	List(ctx context.Context, status, cursor string, limit int) (*photo.ListResult, error)
	// Get は写真詳細を返す。
	Get(ctx context.Context, id string) (*model.Photo, error)
	// UpdateStatus はセッションを介さず写真のステータスを直接変更する。
	UpdateStatus(ctx context.Context, id, status string) (*model.Photo, error)
}

// ThumbnailRenderer はサムネイル生成のインターフェース。
type ThumbnailRenderer interface {
	// Render は写真のサムネイルJPEGを生成する。
	Render(photo *model.Photo, width int) ([]byte, error)
}

// MediaResolver はカタログの相対パスを配信可能な絶対パスへ解決するインターフェース。
type MediaResolver interface {
	Resolve(relPath string) (string, error)
}

// PhotoHandler は写真カタログのHTTPハンドラー。
type PhotoHandler struct {
	service    PhotoServiceInterface
	thumbnails ThumbnailRenderer
	media      MediaResolver
}

// NewPhotoHandler はPhotoHandlerを生成する。
func NewPhotoHandler(service PhotoServiceInterface, thumbnails ThumbnailRenderer, media MediaResolver) *PhotoHandler {
	return &PhotoHandler{
		service:    service,
		thumbnails: thumbnails,
		media:      media,
	}
}

// --- リクエスト・レスポンス型 ---

// updatePhotoStatusRequest はステータス直接変更リクエストのボディ。
type updatePhotoStatusRequest struct {
	Status string `json:"status"`
}

// photoResponse は写真情報のAPIレスポンス。
type photoResponse struct {
	ID          string     `json:"id"`
	RelPath     string     `json:"rel_path"`
	DisplayName string     `json:"display_name"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	SizeBytes   int64      `json:"size_bytes"`
	ContentHash string     `json:"content_hash"`
	Status      string     `json:"status"`
	AlbumID     string     `json:"album_id,omitempty"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	AddedAt     time.Time  `json:"added_at"`
	LastError   string     `json:"last_error,omitempty"`
}

// photoListResponse は写真一覧のAPIレスポンス。
type photoListResponse struct {
	Photos     []photoResponse `json:"photos"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

// ListPhotos は写真一覧を取得する。
// GET /api/photos?status=&cursor=&limit=
func (h *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimitParam(w, r)
	if !ok {
		return
	}

	result, err := h.service.List(r.Context(), r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPhotoListResponse(result))
}

// GetPhoto は写真詳細を取得する。
// GET /api/photos/:id
func (h *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPhotoResponse(p))
}

// UpdateStatus はセッションを介さず写真のステータスを直接変更する。
// PATCH /api/photos/:id/status
func (h *PhotoHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updatePhotoStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if req.Status == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("statusが空です"))
		return
	}

	p, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPhotoResponse(p))
}

// ServeFile は写真のオリジナルファイルを配信する。
// GET /api/photos/:id/file
func (h *PhotoHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	absPath, err := h.media.Resolve(p.RelPath)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if _, err := os.Stat(absPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeFileMissingResponse(w, p.RelPath)
			return
		}
		handleServiceError(w, err)
		return
	}

	http.ServeFile(w, r, absPath)
}

// Thumbnail は写真のサムネイルを配信する。
// GET /api/photos/:id/thumbnail?w=
func (h *PhotoHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	width := 0
	if raw := r.URL.Query().Get("w"); raw != "" {
		width, err = strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("無効な幅指定: "+raw))
			return
		}
	}

	// 内容ハッシュをキャッシュ検証子に使う。再スキャンで内容が変わればETagも変わる
	etag := `"` + p.ContentHash + `"`
	if p.ContentHash != "" && r.Header.Get("If-None-Match") == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := h.thumbnails.Render(p, width)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			writeFileMissingResponse(w, p.RelPath)
		case errors.Is(err, thumbnail.ErrUnsupportedFormat):
			writeAPIErrorResponse(w, http.StatusUnsupportedMediaType, &model.APIError{
				Code:     model.ErrCodeNotAnImage,
				Message:  "サムネイルを生成できない画像形式です。",
				Category: "photo",
				Action:   "オリジナルファイルの配信をご利用ください。",
			})
		default:
			handleServiceError(w, err)
		}
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

// --- ヘルパー関数 ---

// toPhotoResponse はmodel.PhotoからAPIレスポンスに変換する。
func toPhotoResponse(p *model.Photo) photoResponse {
	return photoResponse{
		ID:          p.ID,
		RelPath:     p.RelPath,
		DisplayName: p.DisplayName,
		Width:       p.Width,
		Height:      p.Height,
		SizeBytes:   p.SizeBytes,
		ContentHash: p.ContentHash,
		Status:      string(p.Status),
		AlbumID:     p.AlbumID,
		TakenAt:     p.TakenAt,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		AddedAt:     p.AddedAt,
		LastError:   p.LastError,
	}
}

// toPhotoListResponse はページネーション結果をAPIレスポンスに変換する。
func toPhotoListResponse(result *photo.ListResult) photoListResponse {
	photos := make([]photoResponse, 0, len(result.Photos))
	for _, p := range result.Photos {
		photos = append(photos, toPhotoResponse(p))
	}
	return photoListResponse{
		Photos:     photos,
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	}
}

// parseLimitParam はlimitクエリパラメータをパースする。
// 未指定は0を返し、サービス層のデフォルト値に委ねる。
func parseLimitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("無効な件数指定: "+raw))
		return 0, false
	}
	return limit, true
}

// writeFileMissingResponse はカタログにあるがファイルが見つからない場合のエラーレスポンスを書き込む。
func writeFileMissingResponse(w http.ResponseWriter, relPath string) {
	writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
		Code:     "FILE_MISSING",
		Message:  "写真ファイルがライブラリ内に見つかりません: " + relPath,
		Category: "photo",
		Action:   "ライブラリの再スキャンを実行してください。",
	})
}
