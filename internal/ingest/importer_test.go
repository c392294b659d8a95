package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/photozen/internal/mediastore"
	"github.com/hitoshi/photozen/internal/model"
)

// mockSSRFGuard はSSRFValidatorのテスト用モック。
// httptestサーバーはループバックで動くため、実際の検証は行わず
// 素のHTTPクライアントを返す。
type mockSSRFGuard struct {
	validateErr error
	blockedURLs map[string]bool
	validated   []string
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	m.validated = append(m.validated, rawURL)
	if m.validateErr != nil {
		return m.validateErr
	}
	if m.blockedURLs[rawURL] {
		return errors.New("blocked host")
	}
	return nil
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

// mockPhotoRepo はPhotoRepositoryのテスト用モック。取り込みではCreateだけを使う。
type mockPhotoRepo struct {
	created   []*model.Photo
	createErr error
}

func (m *mockPhotoRepo) FindByID(_ context.Context, _ string) (*model.Photo, error) {
	return nil, nil
}

func (m *mockPhotoRepo) FindByRelPath(_ context.Context, _ string) (*model.Photo, error) {
	return nil, nil
}

func (m *mockPhotoRepo) FindByContentHash(_ context.Context, _ string) (*model.Photo, error) {
	return nil, nil
}

func (m *mockPhotoRepo) List(_ context.Context, _ model.PhotoStatus, _ time.Time, _ int) ([]*model.Photo, error) {
	return nil, nil
}

func (m *mockPhotoRepo) ListByAlbum(_ context.Context, _ string, _ time.Time, _ int) ([]*model.Photo, error) {
	return nil, nil
}

func (m *mockPhotoRepo) ListAll(_ context.Context) ([]*model.Photo, error) { return nil, nil }

func (m *mockPhotoRepo) ListPurgedBefore(_ context.Context, _ time.Time) ([]*model.Photo, error) {
	return nil, nil
}

func (m *mockPhotoRepo) CountByStatus(_ context.Context) (model.StatusCounts, error) {
	return model.StatusCounts{}, nil
}

func (m *mockPhotoRepo) CountByAlbum(_ context.Context, _ string) (int, error) { return 0, nil }

func (m *mockPhotoRepo) KeptAtIndex(_ context.Context, _ int) (*model.Photo, error) {
	return nil, nil
}

func (m *mockPhotoRepo) Create(_ context.Context, photo *model.Photo) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, photo)
	return nil
}

func (m *mockPhotoRepo) UpdateMetadata(_ context.Context, _ *model.Photo) error { return nil }

func (m *mockPhotoRepo) UpdateStatus(_ context.Context, _ string, _ model.PhotoStatus) error {
	return nil
}

func (m *mockPhotoRepo) UpdateAlbum(_ context.Context, _ string, _ string) error   { return nil }
func (m *mockPhotoRepo) UpdateRelPath(_ context.Context, _ string, _ string) error { return nil }

func (m *mockPhotoRepo) UpdateLastError(_ context.Context, _ string, _ string) error { return nil }

func (m *mockPhotoRepo) MarkPurged(_ context.Context, _ string, _ string, _ time.Time) error {
	return nil
}

func (m *mockPhotoRepo) DeleteByID(_ context.Context, _ string) error { return nil }

// mockCollector はテスト用のMetricsCollectorモック。
type mockCollector struct {
	importStatuses []int
}

func (m *mockCollector) RecordClassification(_ string)                    {}
func (m *mockCollector) RecordStageTransition(_ string)                   {}
func (m *mockCollector) RecordSessionCompleted(_ time.Duration)           {}
func (m *mockCollector) RecordMutationResult(_ string, _ bool)            {}
func (m *mockCollector) RecordScanCompleted(_, _, _ int, _ time.Duration) {}
func (m *mockCollector) RecordThumbnailLatency(_ time.Duration)           {}

func (m *mockCollector) RecordImportStatus(statusCode int) {
	m.importStatuses = append(m.importStatuses, statusCode)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// importEnv はImporterテスト用の依存一式。
type importEnv struct {
	root      string
	photos    *mockPhotoRepo
	guard     *mockSSRFGuard
	collector *mockCollector
	importer  *Importer
}

func newImportEnv(t *testing.T, maxSize int64) *importEnv {
	t.Helper()
	var buf bytes.Buffer
	env := &importEnv{
		root:      t.TempDir(),
		photos:    &mockPhotoRepo{},
		guard:     &mockSSRFGuard{},
		collector: &mockCollector{},
	}
	store := mediastore.NewStore(env.root)
	if err := store.EnsureLayout(); err != nil {
		t.Fatalf("ストアの初期化に失敗した: %v", err)
	}
	env.importer = NewImporter(
		env.photos, store, env.guard, env.collector,
		newTestLogger(&buf), 5*time.Second, maxSize,
	)
	return env
}

// assertAPIErrorCode はエラーが指定コードのAPIErrorであることを検証する。
func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorではないエラーが返された: %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("エラーコード = %s, want %s", apiErr.Code, code)
	}
}

// --- Importer のテスト ---

func TestImporter_Import_DirectImage(t *testing.T) {
	data := pngData(t, 3, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	env := newImportEnv(t, 1<<20)
	photo, err := env.importer.Import(context.Background(), server.URL+"/camera.png")
	if err != nil {
		t.Fatalf("Import がエラーを返した: %v", err)
	}

	if photo.RelPath != "imports/camera.png" {
		t.Errorf("RelPath = %q, want %q", photo.RelPath, "imports/camera.png")
	}
	if photo.Status != model.PhotoStatusUnsorted {
		t.Errorf("Status = %q, want %q", photo.Status, model.PhotoStatusUnsorted)
	}
	if photo.Width != 3 || photo.Height != 2 {
		t.Errorf("サイズ = %dx%d, want 3x2", photo.Width, photo.Height)
	}
	if photo.SizeBytes != int64(len(data)) {
		t.Errorf("SizeBytes = %d, want %d", photo.SizeBytes, len(data))
	}

	// 実ファイルがimportsディレクトリに保存されている
	saved := filepath.Join(env.root, mediastore.ImportDirName, "camera.png")
	if _, err := os.Stat(saved); err != nil {
		t.Errorf("保存先ファイルが存在しない: %v", err)
	}
	if len(env.photos.created) != 1 {
		t.Errorf("作成されたレコード数 = %d, want 1", len(env.photos.created))
	}
	if len(env.collector.importStatuses) != 1 || env.collector.importStatuses[0] != 200 {
		t.Errorf("記録されたHTTPステータス = %v, want [200]", env.collector.importStatuses)
	}
}

func TestImporter_Import_HTMLWithOgImage(t *testing.T) {
	data := pngData(t, 4, 4)
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head>
			<meta property="og:image" content="%s/photo.png">
		</head><body>記事本文</body></html>`, server.URL)
	})
	mux.HandleFunc("/photo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	})

	env := newImportEnv(t, 1<<20)
	photo, err := env.importer.Import(context.Background(), server.URL+"/post")
	if err != nil {
		t.Fatalf("Import がエラーを返した: %v", err)
	}

	if photo.RelPath != "imports/photo.png" {
		t.Errorf("RelPath = %q, want %q", photo.RelPath, "imports/photo.png")
	}

	// ページURLと検出された画像URLの両方がSSRF検証されている
	if len(env.guard.validated) != 2 {
		t.Errorf("SSRF検証されたURL数 = %d, want 2: %v", len(env.guard.validated), env.guard.validated)
	}
	// ページと画像の2回のレスポンスが記録されている
	if len(env.collector.importStatuses) != 2 {
		t.Errorf("記録されたHTTPステータス数 = %d, want 2", len(env.collector.importStatuses))
	}
}

func TestImporter_Import_EmptyURL(t *testing.T) {
	env := newImportEnv(t, 1<<20)

	_, err := env.importer.Import(context.Background(), "")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidURL)
}

func TestImporter_Import_SSRFBlocked(t *testing.T) {
	env := newImportEnv(t, 1<<20)
	env.guard.validateErr = errors.New("blocked IP address: 169.254.169.254")

	_, err := env.importer.Import(context.Background(), "http://169.254.169.254/latest/meta-data")
	assertAPIErrorCode(t, err, model.ErrCodeSSRFBlocked)

	if len(env.photos.created) != 0 {
		t.Error("SSRFブロック時にレコードが作成されてはならない")
	}
}

func TestImporter_Import_BlockedOgImageURL(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	imageURL := server.URL + "/internal.png"
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><meta property="og:image" content="%s"></head></html>`, imageURL)
	})

	env := newImportEnv(t, 1<<20)
	env.guard.blockedURLs = map[string]bool{imageURL: true}

	_, err := env.importer.Import(context.Background(), server.URL+"/post")
	assertAPIErrorCode(t, err, model.ErrCodeSSRFBlocked)

	if len(env.photos.created) != 0 {
		t.Error("検出画像URLのブロック時にレコードが作成されてはならない")
	}
}

func TestImporter_Import_NotAnImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	env := newImportEnv(t, 1<<20)
	_, err := env.importer.Import(context.Background(), server.URL+"/document.pdf")
	assertAPIErrorCode(t, err, model.ErrCodeNotAnImage)
}

func TestImporter_Import_HTMLWithoutOgImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>画像なし</title></head><body></body></html>`)
	}))
	defer server.Close()

	env := newImportEnv(t, 1<<20)
	_, err := env.importer.Import(context.Background(), server.URL+"/page")
	assertAPIErrorCode(t, err, model.ErrCodeNotAnImage)
}

func TestImporter_Import_OgImageIsNotAnImage(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><meta property="og:image" content="%s/fake.jpg"></head></html>`, server.URL)
	})
	mux.HandleFunc("/fake.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>not an image</body></html>`)
	})

	env := newImportEnv(t, 1<<20)
	_, err := env.importer.Import(context.Background(), server.URL+"/post")
	assertAPIErrorCode(t, err, model.ErrCodeNotAnImage)
}

func TestImporter_Import_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	env := newImportEnv(t, 1<<20)
	_, err := env.importer.Import(context.Background(), server.URL+"/missing.jpg")
	assertAPIErrorCode(t, err, model.ErrCodeImportFailed)

	if len(env.collector.importStatuses) != 1 || env.collector.importStatuses[0] != 404 {
		t.Errorf("記録されたHTTPステータス = %v, want [404]", env.collector.importStatuses)
	}
}

func TestImporter_Import_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(bytes.Repeat([]byte{0xFF}, 200))
	}))
	defer server.Close()

	// 上限64バイトに対して200バイトのレスポンス
	env := newImportEnv(t, 64)
	_, err := env.importer.Import(context.Background(), server.URL+"/big.jpg")
	assertAPIErrorCode(t, err, model.ErrCodeImportTooLarge)

	if len(env.photos.created) != 0 {
		t.Error("サイズ超過時にレコードが作成されてはならない")
	}
}

func TestImporter_Import_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // 接続先を落としておく

	env := newImportEnv(t, 1<<20)
	_, err := env.importer.Import(context.Background(), url+"/photo.jpg")
	assertAPIErrorCode(t, err, model.ErrCodeImportFailed)
}

func TestImporter_Import_NilCollectorIsAllowed(t *testing.T) {
	data := pngData(t, 2, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	var buf bytes.Buffer
	root := t.TempDir()
	store := mediastore.NewStore(root)
	if err := store.EnsureLayout(); err != nil {
		t.Fatalf("ストアの初期化に失敗した: %v", err)
	}
	importer := NewImporter(&mockPhotoRepo{}, store, &mockSSRFGuard{}, nil,
		newTestLogger(&buf), 5*time.Second, 1<<20)

	if _, err := importer.Import(context.Background(), server.URL+"/a.png"); err != nil {
		t.Fatalf("collectorがnilでもImportは成功すべき: %v", err)
	}
}

// --- importFileName のテスト ---

func TestImportFileName_KeepsImageBasename(t *testing.T) {
	got := importFileName("https://example.com/albums/IMG_0042.JPG?size=large", "image/jpeg")
	if got != "IMG_0042.JPG" {
		t.Errorf("importFileName = %q, want %q", got, "IMG_0042.JPG")
	}
}

func TestImportFileName_AppendsExtensionFromContentType(t *testing.T) {
	got := importFileName("https://example.com/photos/12345", "image/png")
	if got != "12345.png" {
		t.Errorf("importFileName = %q, want %q", got, "12345.png")
	}
}

func TestImportFileName_GeneratesNameForRootPath(t *testing.T) {
	got := importFileName("https://example.com/", "image/jpeg")
	if !strings.HasPrefix(got, "import-") || !strings.HasSuffix(got, ".jpg") {
		t.Errorf("importFileName = %q, want import-*.jpg 形式", got)
	}
}

func TestImportFileName_UnknownImageTypeFallsBackToJPG(t *testing.T) {
	got := importFileName("https://example.com/photos/raw-data", "image/x-custom")
	if got != "raw-data.jpg" {
		t.Errorf("importFileName = %q, want %q", got, "raw-data.jpg")
	}
}
