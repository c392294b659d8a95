package mutate

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/photozen/internal/mediastore"
	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/workflow"
)

// --- モック定義 ---

// mockMutationRepo はMediaMutationRepositoryのテスト用モック。
type mockMutationRepo struct {
	mu          sync.Mutex
	mutations   map[string]*model.MediaMutation
	updateCalls int
	listLimit   int
}

func newMockMutationRepo() *mockMutationRepo {
	return &mockMutationRepo{mutations: make(map[string]*model.MediaMutation)}
}

func (m *mockMutationRepo) FindByID(_ context.Context, id string) (*model.MediaMutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutations[id], nil
}

func (m *mockMutationRepo) Create(_ context.Context, mutation *model.MediaMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations[mutation.ID] = mutation
	return nil
}

func (m *mockMutationRepo) ListDue(_ context.Context, limit int) ([]*model.MediaMutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listLimit = limit
	now := time.Now()
	var due []*model.MediaMutation
	for _, mutation := range m.mutations {
		if mutation.Status == model.MutationStatusPending && !mutation.NextAttemptAt.After(now) {
			due = append(due, mutation)
		}
		if len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (m *mockMutationRepo) Update(_ context.Context, mutation *model.MediaMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	m.mutations[mutation.ID] = mutation
	return nil
}

func (m *mockMutationRepo) CountPending(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, mutation := range m.mutations {
		if mutation.Status == model.MutationStatusPending {
			count++
		}
	}
	return count, nil
}

func (m *mockMutationRepo) DeleteFinishedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// get は指定IDの操作を返す。見つからない場合はテストを失敗させる。
func (m *mockMutationRepo) get(t *testing.T, id string) *model.MediaMutation {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	mutation, ok := m.mutations[id]
	if !ok {
		t.Fatalf("操作 %q が見つからない", id)
	}
	return mutation
}

// mockPhotoRepo はPhotoRepositoryのテスト用モック。
// findDelayを設定すると取得を遅らせて並列実行を観測できる。
type mockPhotoRepo struct {
	mu     sync.Mutex
	photos map[string]*model.Photo

	findDelay         time.Duration
	currentConcurrent int32
	maxConcurrent     int32
	findCalls         int32

	updateRelPathCalls int
	markPurgedCalls    int
	lastErrorByPhoto   map[string]string
}

func newMockPhotoRepo() *mockPhotoRepo {
	return &mockPhotoRepo{
		photos:           make(map[string]*model.Photo),
		lastErrorByPhoto: make(map[string]string),
	}
}

func (m *mockPhotoRepo) FindByID(_ context.Context, id string) (*model.Photo, error) {
	current := atomic.AddInt32(&m.currentConcurrent, 1)
	defer atomic.AddInt32(&m.currentConcurrent, -1)
	atomic.AddInt32(&m.findCalls, 1)

	// 最大同時実行数を記録
	for {
		old := atomic.LoadInt32(&m.maxConcurrent)
		if current <= old {
			break
		}
		if atomic.CompareAndSwapInt32(&m.maxConcurrent, old, current) {
			break
		}
	}

	if m.findDelay > 0 {
		time.Sleep(m.findDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.photos[id], nil
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

func (m *mockPhotoRepo) ListAll(_ context.Context) ([]*model.Photo, error) {
	return nil, nil
}

func (m *mockPhotoRepo) ListPurgedBefore(_ context.Context, _ time.Time) ([]*model.Photo, error) {
	return nil, nil
}

func (m *mockPhotoRepo) CountByStatus(_ context.Context) (model.StatusCounts, error) {
	return model.StatusCounts{}, nil
}

func (m *mockPhotoRepo) CountByAlbum(_ context.Context, albumID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, p := range m.photos {
		if p.AlbumID == albumID {
			count++
		}
	}
	return count, nil
}

func (m *mockPhotoRepo) KeptAtIndex(_ context.Context, _ int) (*model.Photo, error) {
	return nil, nil
}

func (m *mockPhotoRepo) Create(_ context.Context, photo *model.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[photo.ID] = photo
	return nil
}

func (m *mockPhotoRepo) UpdateMetadata(_ context.Context, _ *model.Photo) error {
	return nil
}

func (m *mockPhotoRepo) UpdateStatus(_ context.Context, _ string, _ model.PhotoStatus) error {
	return nil
}

func (m *mockPhotoRepo) UpdateAlbum(_ context.Context, _ string, _ string) error {
	return nil
}

func (m *mockPhotoRepo) UpdateRelPath(_ context.Context, id string, relPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateRelPathCalls++
	if p, ok := m.photos[id]; ok {
		p.RelPath = relPath
	}
	return nil
}

func (m *mockPhotoRepo) UpdateLastError(_ context.Context, id string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErrorByPhoto[id] = message
	return nil
}

func (m *mockPhotoRepo) MarkPurged(_ context.Context, id string, relPath string, purgedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markPurgedCalls++
	if p, ok := m.photos[id]; ok {
		p.RelPath = relPath
		p.PurgedAt = &purgedAt
	}
	return nil
}

func (m *mockPhotoRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.photos, id)
	return nil
}

// lastError は指定写真に記録された直近のエラーを返す。
func (m *mockPhotoRepo) lastError(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErrorByPhoto[id]
}

// mockAlbumRepo はAlbumRepositoryのテスト用モック。
type mockAlbumRepo struct {
	mu     sync.Mutex
	albums map[string]*model.Album
}

func newMockAlbumRepo() *mockAlbumRepo {
	return &mockAlbumRepo{albums: make(map[string]*model.Album)}
}

func (m *mockAlbumRepo) FindByID(_ context.Context, id string) (*model.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.albums[id], nil
}

func (m *mockAlbumRepo) FindByName(_ context.Context, _ string) (*model.Album, error) {
	return nil, nil
}

func (m *mockAlbumRepo) List(_ context.Context) ([]*model.Album, error) {
	return nil, nil
}

func (m *mockAlbumRepo) Create(_ context.Context, album *model.Album) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.albums[album.ID] = album
	return nil
}

func (m *mockAlbumRepo) Update(_ context.Context, album *model.Album) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.albums[album.ID] = album
	return nil
}

func (m *mockAlbumRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.albums, id)
	return nil
}

// mockSink はテスト用のEventSinkモック。
type mockSink struct {
	mu        sync.Mutex
	published []workflow.Event
}

func (m *mockSink) Publish(event workflow.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
}

// failures は配信されたMutationFailedイベントを返す。
func (m *mockSink) failures() []workflow.MutationFailed {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []workflow.MutationFailed
	for _, e := range m.published {
		if f, ok := e.(workflow.MutationFailed); ok {
			result = append(result, f)
		}
	}
	return result
}

// mockCollector はテスト用のMetricsCollectorモック。
type mockCollector struct {
	mu      sync.Mutex
	results map[string][]bool // kind → 成否の列
}

func newMockCollector() *mockCollector {
	return &mockCollector{results: make(map[string][]bool)}
}

func (m *mockCollector) RecordClassification(_ string)          {}
func (m *mockCollector) RecordStageTransition(_ string)         {}
func (m *mockCollector) RecordSessionCompleted(_ time.Duration) {}
func (m *mockCollector) RecordImportStatus(_ int)               {}
func (m *mockCollector) RecordThumbnailLatency(_ time.Duration) {}

func (m *mockCollector) RecordScanCompleted(_, _, _ int, _ time.Duration) {}

func (m *mockCollector) RecordMutationResult(kind string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[kind] = append(m.results[kind], success)
}

func (m *mockCollector) recorded(kind string) []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.results[kind]...)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// execEnv はExecutorテスト用の依存一式。
type execEnv struct {
	root      string
	mutations *mockMutationRepo
	photos    *mockPhotoRepo
	albums    *mockAlbumRepo
	store     *mediastore.Store
	sink      *mockSink
	collector *mockCollector
	executor  *Executor
}

func newExecEnv(t *testing.T) *execEnv {
	t.Helper()
	var buf bytes.Buffer
	env := &execEnv{
		root:      t.TempDir(),
		mutations: newMockMutationRepo(),
		photos:    newMockPhotoRepo(),
		albums:    newMockAlbumRepo(),
		sink:      &mockSink{},
		collector: newMockCollector(),
	}
	env.store = mediastore.NewStore(env.root)
	if err := env.store.EnsureLayout(); err != nil {
		t.Fatalf("ストアの初期化に失敗した: %v", err)
	}
	env.executor = NewExecutor(
		env.mutations, env.photos, env.albums, env.store,
		env.sink, env.collector, newTestLogger(&buf), 4,
	)
	return env
}

// seedPhotoFile は写真行とその実ファイルを用意する。
func (e *execEnv) seedPhotoFile(t *testing.T, id, relPath, albumID string) *model.Photo {
	t.Helper()
	absPath := filepath.Join(e.root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		t.Fatalf("ディレクトリの作成に失敗した: %v", err)
	}
	if err := os.WriteFile(absPath, []byte("photo data "+id), 0o644); err != nil {
		t.Fatalf("ファイルの書き込みに失敗した: %v", err)
	}
	photo := &model.Photo{
		ID:          id,
		RelPath:     relPath,
		DisplayName: filepath.Base(relPath),
		Status:      model.PhotoStatusKeep,
		AlbumID:     albumID,
		AddedAt:     time.Now(),
	}
	e.photos.photos[id] = photo
	return photo
}

// seedMutation は実行待ちの操作をキューへ積む。
func (e *execEnv) seedMutation(id, photoID string, kind model.MutationKind, destAlbumID string) *model.MediaMutation {
	now := time.Now()
	mutation := &model.MediaMutation{
		ID:            id,
		PhotoID:       photoID,
		Kind:          kind,
		DestAlbumID:   destAlbumID,
		Status:        model.MutationStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	e.mutations.mutations[id] = mutation
	return mutation
}

// runOnce は1サイクル実行し、エラー時はテストを失敗させる。
func (e *execEnv) runOnce(t *testing.T) {
	t.Helper()
	if err := e.executor.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce がエラーを返した: %v", err)
	}
}

// --- Executor テスト ---

func TestNewExecutor_DefaultConcurrency(t *testing.T) {
	var buf bytes.Buffer
	e := NewExecutor(newMockMutationRepo(), newMockPhotoRepo(), newMockAlbumRepo(),
		mediastore.NewStore(t.TempDir()), &mockSink{}, nil, newTestLogger(&buf), 0)
	if e.maxConcurrency != 4 {
		t.Errorf("maxConcurrency = %d, want 4 (default)", e.maxConcurrency)
	}
}

func TestExecutor_RunOnce_EmptyQueue(t *testing.T) {
	env := newExecEnv(t)
	env.runOnce(t)

	if env.mutations.updateCalls != 0 {
		t.Errorf("Update呼び出し回数 = %d, want 0", env.mutations.updateCalls)
	}
}

func TestExecutor_RunOnce_AlbumMove(t *testing.T) {
	env := newExecEnv(t)
	env.albums.albums["album-1"] = &model.Album{ID: "album-1", Name: "旅行"}
	photo := env.seedPhotoFile(t, "photo-1", "camera/IMG_0001.jpg", "album-1")
	env.seedMutation("mut-1", "photo-1", model.MutationKindAlbumMove, "album-1")

	env.runOnce(t)

	mutation := env.mutations.get(t, "mut-1")
	if mutation.Status != model.MutationStatusDone {
		t.Errorf("Status = %q, want %q (last_error: %s)", mutation.Status, model.MutationStatusDone, mutation.LastError)
	}

	// ファイルがアルバムディレクトリへ移動している
	movedPath := filepath.Join(env.root, "旅行", "IMG_0001.jpg")
	if _, err := os.Stat(movedPath); err != nil {
		t.Errorf("移動先ファイルが存在しない: %v", err)
	}
	if photo.RelPath != "旅行/IMG_0001.jpg" {
		t.Errorf("RelPath = %q, want %q", photo.RelPath, "旅行/IMG_0001.jpg")
	}
	if env.photos.updateRelPathCalls != 1 {
		t.Errorf("UpdateRelPath呼び出し回数 = %d, want 1", env.photos.updateRelPathCalls)
	}

	if got := env.collector.recorded("album_move"); len(got) != 1 || !got[0] {
		t.Errorf("記録されたメトリクス = %v, want [true]", got)
	}
	if len(env.sink.failures()) != 0 {
		t.Error("成功時にMutationFailedイベントを配信してはならない")
	}
}

func TestExecutor_RunOnce_AlbumMoveAppliesRenameTemplate(t *testing.T) {
	env := newExecEnv(t)
	env.albums.albums["album-1"] = &model.Album{ID: "album-1", Name: "旅行", RenameTemplate: "{album}-{index}"}
	photo := env.seedPhotoFile(t, "photo-1", "camera/IMG_0001.jpg", "album-1")
	env.seedMutation("mut-1", "photo-1", model.MutationKindAlbumMove, "album-1")

	env.runOnce(t)

	if photo.RelPath != "旅行/旅行-1.jpg" {
		t.Errorf("RelPath = %q, want %q", photo.RelPath, "旅行/旅行-1.jpg")
	}
	if _, err := os.Stat(filepath.Join(env.root, "旅行", "旅行-1.jpg")); err != nil {
		t.Errorf("リネーム後のファイルが存在しない: %v", err)
	}
}

func TestExecutor_RunOnce_TrashMove(t *testing.T) {
	env := newExecEnv(t)
	photo := env.seedPhotoFile(t, "photo-2", "camera/IMG_0002.jpg", "")
	photo.Status = model.PhotoStatusTrash
	env.seedMutation("mut-2", "photo-2", model.MutationKindTrashMove, "")

	env.runOnce(t)

	mutation := env.mutations.get(t, "mut-2")
	if mutation.Status != model.MutationStatusDone {
		t.Errorf("Status = %q, want %q (last_error: %s)", mutation.Status, model.MutationStatusDone, mutation.LastError)
	}

	// ファイルがゴミ箱ディレクトリへ退避している
	trashPath := filepath.Join(env.root, mediastore.TrashDirName, "IMG_0002.jpg")
	if _, err := os.Stat(trashPath); err != nil {
		t.Errorf("退避先ファイルが存在しない: %v", err)
	}
	if env.photos.markPurgedCalls != 1 {
		t.Errorf("MarkPurged呼び出し回数 = %d, want 1", env.photos.markPurgedCalls)
	}
	if photo.PurgedAt == nil {
		t.Error("PurgedAtが設定されていない")
	}
	if photo.RelPath != mediastore.TrashDirName+"/IMG_0002.jpg" {
		t.Errorf("RelPath = %q, want %q", photo.RelPath, mediastore.TrashDirName+"/IMG_0002.jpg")
	}
}

func TestExecutor_RunOnce_TrashMoveCancelledAfterRestore(t *testing.T) {
	env := newExecEnv(t)
	// キュー登録後に復元され、未仕分けに戻っている
	photo := env.seedPhotoFile(t, "photo-2", "camera/IMG_0002.jpg", "")
	photo.Status = model.PhotoStatusUnsorted
	env.seedMutation("mut-2", "photo-2", model.MutationKindTrashMove, "")

	env.runOnce(t)

	mutation := env.mutations.get(t, "mut-2")
	if mutation.Status != model.MutationStatusDone {
		t.Errorf("Status = %q, want %q", mutation.Status, model.MutationStatusDone)
	}

	// ファイルは元の場所に残り、退避記録もされない
	if _, err := os.Stat(filepath.Join(env.root, "camera", "IMG_0002.jpg")); err != nil {
		t.Errorf("復元済みの写真が移動されている: %v", err)
	}
	if env.photos.markPurgedCalls != 0 {
		t.Errorf("MarkPurged呼び出し回数 = %d, want 0", env.photos.markPurgedCalls)
	}
	if len(env.sink.failures()) != 0 {
		t.Error("取り消し時にMutationFailedイベントを配信してはならない")
	}
}

func TestExecutor_RunOnce_TrashMoveSkipsAlreadyPurged(t *testing.T) {
	env := newExecEnv(t)
	photo := env.seedPhotoFile(t, "photo-2", mediastore.TrashDirName+"/IMG_0002.jpg", "")
	photo.Status = model.PhotoStatusTrash
	purgedAt := time.Now().Add(-time.Hour)
	photo.PurgedAt = &purgedAt
	env.seedMutation("mut-dup", "photo-2", model.MutationKindTrashMove, "")

	env.runOnce(t)

	mutation := env.mutations.get(t, "mut-dup")
	if mutation.Status != model.MutationStatusDone {
		t.Errorf("Status = %q, want %q", mutation.Status, model.MutationStatusDone)
	}
	if env.photos.markPurgedCalls != 0 {
		t.Errorf("二重登録でMarkPurgedが呼ばれた: %d回", env.photos.markPurgedCalls)
	}
	// 退避日時は最初の退避のまま保持される
	if !photo.PurgedAt.Equal(purgedAt) {
		t.Errorf("PurgedAt = %v, want %v", photo.PurgedAt, purgedAt)
	}
}

func TestExecutor_RunOnce_SourceMissingIsPermanent(t *testing.T) {
	env := newExecEnv(t)
	env.albums.albums["album-1"] = &model.Album{ID: "album-1", Name: "旅行"}
	// 写真行はあるがファイルが無い
	env.photos.photos["photo-3"] = &model.Photo{
		ID:      "photo-3",
		RelPath: "camera/IMG_0003.jpg",
		AlbumID: "album-1",
	}
	env.seedMutation("mut-3", "photo-3", model.MutationKindAlbumMove, "album-1")

	env.runOnce(t)

	mutation := env.mutations.get(t, "mut-3")
	if mutation.Status != model.MutationStatusFailed {
		t.Errorf("Status = %q, want %q", mutation.Status, model.MutationStatusFailed)
	}

	failures := env.sink.failures()
	if len(failures) != 1 {
		t.Fatalf("MutationFailedイベント数 = %d, want 1", len(failures))
	}
	if failures[0].WillRetry {
		t.Error("恒久エラーでWillRetryがtrueになっている")
	}
	if failures[0].PhotoID != "photo-3" {
		t.Errorf("イベントのPhotoID = %q, want %q", failures[0].PhotoID, "photo-3")
	}

	if env.photos.lastError("photo-3") == "" {
		t.Error("写真に失敗が記録されていない")
	}
	if got := env.collector.recorded("album_move"); len(got) != 1 || got[0] {
		t.Errorf("記録されたメトリクス = %v, want [false]", got)
	}
}

func TestExecutor_RunOnce_MissingAlbumIsPermanent(t *testing.T) {
	env := newExecEnv(t)
	env.seedPhotoFile(t, "photo-4", "camera/IMG_0004.jpg", "album-gone")
	env.seedMutation("mut-4", "photo-4", model.MutationKindAlbumMove, "album-gone")

	env.runOnce(t)

	mutation := env.mutations.get(t, "mut-4")
	if mutation.Status != model.MutationStatusFailed {
		t.Errorf("Status = %q, want %q", mutation.Status, model.MutationStatusFailed)
	}

	// ファイルは元の場所に残っている
	if _, err := os.Stat(filepath.Join(env.root, "camera", "IMG_0004.jpg")); err != nil {
		t.Errorf("失敗時にファイルが移動されてはならない: %v", err)
	}
}

func TestExecutor_RunOnce_MissingPhotoIsPermanent(t *testing.T) {
	env := newExecEnv(t)
	env.seedMutation("mut-5", "photo-gone", model.MutationKindTrashMove, "")

	env.runOnce(t)

	mutation := env.mutations.get(t, "mut-5")
	if mutation.Status != model.MutationStatusFailed {
		t.Errorf("Status = %q, want %q", mutation.Status, model.MutationStatusFailed)
	}
}

func TestExecutor_RunOnce_TransientFailureSchedulesRetry(t *testing.T) {
	env := newExecEnv(t)
	env.albums.albums["album-1"] = &model.Album{ID: "album-1", Name: "旅行"}
	env.seedPhotoFile(t, "photo-6", "camera/IMG_0006.jpg", "album-1")
	env.seedMutation("mut-6", "photo-6", model.MutationKindAlbumMove, "album-1")

	// アルバム名と同名のファイルを置いてディレクトリ作成を失敗させる
	if err := os.WriteFile(filepath.Join(env.root, "旅行"), []byte("not a directory"), 0o644); err != nil {
		t.Fatalf("ファイルの書き込みに失敗した: %v", err)
	}

	before := time.Now()
	env.runOnce(t)

	mutation := env.mutations.get(t, "mut-6")
	if mutation.Status != model.MutationStatusPending {
		t.Errorf("Status = %q, 一時エラーでは pending のままであるべき", mutation.Status)
	}
	if mutation.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", mutation.ConsecutiveErrors)
	}
	if !mutation.NextAttemptAt.After(before) {
		t.Errorf("NextAttemptAt = %v, バックオフ後の時刻であるべき", mutation.NextAttemptAt)
	}

	failures := env.sink.failures()
	if len(failures) != 1 {
		t.Fatalf("MutationFailedイベント数 = %d, want 1", len(failures))
	}
	if !failures[0].WillRetry {
		t.Error("一時エラーでWillRetryがfalseになっている")
	}
}

func TestExecutor_RunOnce_ConcurrencyLimit(t *testing.T) {
	var buf bytes.Buffer
	mutations := newMockMutationRepo()
	photos := newMockPhotoRepo()
	photos.findDelay = 10 * time.Millisecond

	// 写真の無い操作を20件積む（恒久エラーで完了する）
	now := time.Now()
	for i := 0; i < 20; i++ {
		id := "mut-" + string(rune('a'+i))
		mutations.mutations[id] = &model.MediaMutation{
			ID:            id,
			PhotoID:       "photo-" + string(rune('a'+i)),
			Kind:          model.MutationKindTrashMove,
			Status:        model.MutationStatusPending,
			NextAttemptAt: now,
		}
	}

	e := NewExecutor(mutations, photos, newMockAlbumRepo(),
		mediastore.NewStore(t.TempDir()), &mockSink{}, nil, newTestLogger(&buf), 3)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce がエラーを返した: %v", err)
	}

	if got := atomic.LoadInt32(&photos.findCalls); got != 20 {
		t.Errorf("実行された操作数 = %d, want 20", got)
	}
	if got := atomic.LoadInt32(&photos.maxConcurrent); got > 3 {
		t.Errorf("最大同時実行数 = %d, 3以下であるべき", got)
	}
}

func TestExecutor_RunOnce_SkipsFutureAttempts(t *testing.T) {
	env := newExecEnv(t)
	mutation := env.seedMutation("mut-7", "photo-7", model.MutationKindTrashMove, "")
	mutation.NextAttemptAt = time.Now().Add(time.Hour)

	env.runOnce(t)

	if env.mutations.updateCalls != 0 {
		t.Errorf("実行予定前の操作が実行された: updateCalls = %d", env.mutations.updateCalls)
	}
}
