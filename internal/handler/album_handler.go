package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/photo"
)

// AlbumServiceInterface はアルバムハンドラーが必要とするサービスインターフェース。
type AlbumServiceInterface interface {
	// ListAlbums は全アルバムを写真枚数付きで返す。
	ListAlbums(ctx context.Context) ([]*model.Album, error)
	// GetAlbum はアルバム詳細を返す。
	GetAlbum(ctx context.Context, albumID string) (*model.Album, error)
	// CreateAlbum は新しいアルバムを作成する。
	CreateAlbum(ctx context.Context, name, description, renameTemplate string) (*model.Album, error)
	// UpdateAlbum はアルバム情報を部分更新する。nilのフィールドは変更しない。
	UpdateAlbum(ctx context.Context, albumID string, name, description, renameTemplate *string) (*model.Album, error)
	// DeleteAlbum はアルバムを削除する。
	DeleteAlbum(ctx context.Context, albumID string) error
}

// AlbumPhotoLister はアルバム内の写真一覧取得のインターフェース。
type AlbumPhotoLister interface {
	// ListByAlbum はアルバム内の写真一覧をページネーション付きで返す。
	ListByAlbum(ctx context.Context, albumID, cursor string, limit int) (*photo.ListResult, error)
}

// AlbumHandler はアルバム管理のHTTPハンドラー。
type AlbumHandler struct {
	service AlbumServiceInterface
	photos  AlbumPhotoLister
}

// NewAlbumHandler はAlbumHandlerを生成する。
func NewAlbumHandler(service AlbumServiceInterface, photos AlbumPhotoLister) *AlbumHandler {
	return &AlbumHandler{
		service: service,
		photos:  photos,
	}
}

// --- リクエスト・レスポンス型 ---

// createAlbumRequest はアルバム作成リクエストのボディ。
type createAlbumRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	RenameTemplate string `json:"rename_template"`
}

// updateAlbumRequest はアルバム更新リクエストのボディ。
// nilのフィールドは変更しない部分更新を行う。
type updateAlbumRequest struct {
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	RenameTemplate *string `json:"rename_template,omitempty"`
}

// albumResponse はアルバム情報のAPIレスポンス。
// 説明文はMarkdown原文とサニタイズ済みHTMLの両方を返す。
type albumResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DescriptionHTML string    `json:"description_html"`
	RenameTemplate  string    `json:"rename_template,omitempty"`
	PhotoCount      int       `json:"photo_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// albumListResponse はアルバム一覧のAPIレスポンス。
type albumListResponse struct {
	Albums []albumResponse `json:"albums"`
}

// ListAlbums はアルバム一覧を取得する。
// GET /api/albums
func (h *AlbumHandler) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.service.ListAlbums(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := albumListResponse{Albums: make([]albumResponse, 0, len(albums))}
	for _, album := range albums {
		resp.Albums = append(resp.Albums, toAlbumResponse(album))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// GetAlbum はアルバム詳細を取得する。
// GET /api/albums/:id
func (h *AlbumHandler) GetAlbum(w http.ResponseWriter, r *http.Request) {
	album, err := h.service.GetAlbum(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toAlbumResponse(album))
}

// CreateAlbum は新しいアルバムを作成する。
// POST /api/albums
func (h *AlbumHandler) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req createAlbumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("アルバム名が空です"))
		return
	}

	album, err := h.service.CreateAlbum(r.Context(), req.Name, req.Description, req.RenameTemplate)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toAlbumResponse(album))
}

// UpdateAlbum はアルバム情報を部分更新する。
// PATCH /api/albums/:id
func (h *AlbumHandler) UpdateAlbum(w http.ResponseWriter, r *http.Request) {
	var req updateAlbumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if req.Name == nil && req.Description == nil && req.RenameTemplate == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("更新するフィールドを指定してください"))
		return
	}

	album, err := h.service.UpdateAlbum(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description, req.RenameTemplate)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toAlbumResponse(album))
}

// DeleteAlbum はアルバムを削除する。
// DELETE /api/albums/:id
func (h *AlbumHandler) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAlbum(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAlbumPhotos はアルバム内の写真一覧を取得する。
// GET /api/albums/:id/photos?cursor=&limit=
func (h *AlbumHandler) ListAlbumPhotos(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "id")

	// アルバムの存在を先に確認する（空アルバムと不在の区別のため）
	if _, err := h.service.GetAlbum(r.Context(), albumID); err != nil {
		handleServiceError(w, err)
		return
	}

	limit, ok := parseLimitParam(w, r)
	if !ok {
		return
	}

	result, err := h.photos.ListByAlbum(r.Context(), albumID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPhotoListResponse(result))
}

// toAlbumResponse はmodel.AlbumからAPIレスポンスに変換する。
func toAlbumResponse(album *model.Album) albumResponse {
	return albumResponse{
		ID:              album.ID,
		Name:            album.Name,
		Description:     album.Description,
		DescriptionHTML: album.DescriptionHTML,
		RenameTemplate:  album.RenameTemplate,
		PhotoCount:      album.PhotoCount,
		CreatedAt:       album.CreatedAt,
		UpdatedAt:       album.UpdatedAt,
	}
}
