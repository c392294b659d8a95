package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// defaultDebounce は変更イベントが落ち着いたと判断するまでの待ち時間。
	defaultDebounce = 500 * time.Millisecond
	// flushInterval はデバウンス判定の周期。
	flushInterval = 100 * time.Millisecond
)

// Watcher はライブラリルートのファイル変更を監視し、
// 変更が落ち着いたタイミングで1回だけ再スキャンを要求する。
// 連続するコピーや移動をまとめるため、デバウンス時間内のイベントは集約される。
type Watcher struct {
	root     string
	debounce time.Duration
	trigger  func()
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu        sync.Mutex
	dirty     bool
	lastEvent time.Time
}

// NewWatcher はライブラリ監視を生成する。
// triggerはデバウンス後に呼ばれる再スキャン要求。debounceが0以下の場合は既定値を使う。
func NewWatcher(root string, debounce time.Duration, trigger func(), logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		trigger:  trigger,
		logger:   logger,
	}
}

// Start は監視を開始する。ライブラリルート配下のディレクトリを再帰的に対象とし、
// 新しく作られたディレクトリは検出次第追加する。隠しディレクトリは対象にしない。
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ファイル監視の初期化に失敗しました: %w", err)
	}
	w.watcher = watcher

	if err := w.addRecursive(w.root); err != nil {
		watcher.Close()
		return err
	}

	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run(ctx)

	w.logger.Info("ライブラリ監視を開始しました", slog.String("root", w.root))
	return nil
}

// Stop は監視を停止し、監視ゴルーチンの終了を待つ。
func (w *Watcher) Stop() {
	if w.stopCh == nil {
		return
	}
	select {
	case <-w.stopCh:
		// 既に停止済み
	default:
		close(w.stopCh)
	}
	<-w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer w.watcher.Close()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("ファイル監視でエラーが発生しました",
				slog.String("error", err.Error()),
			)
		case <-ticker.C:
			w.flushIfSettled()
		}
	}
}

// handleEvent は監視イベントを選別する。画像ファイルへの変更と
// ディレクトリの増減だけを再スキャンの対象とし、隠しパスは無視する。
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("新しいディレクトリの監視に失敗しました",
					slog.String("path", event.Name),
					slog.String("error", err.Error()),
				)
			}
			w.markDirty()
			return
		}
	}

	// RemoveとRenameは対象の種別を判定できないため常に再スキャン対象とする
	if !IsImageFile(event.Name) && event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.markDirty()
}

func (w *Watcher) markDirty() {
	w.mu.Lock()
	w.dirty = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

// flushIfSettled は最後の変更からデバウンス時間が経過していれば再スキャンを要求する。
func (w *Watcher) flushIfSettled() {
	w.mu.Lock()
	settled := w.dirty && time.Since(w.lastEvent) >= w.debounce
	if settled {
		w.dirty = false
	}
	w.mu.Unlock()

	if settled {
		w.logger.Debug("ライブラリの変更を検出したため再スキャンを要求します")
		w.trigger()
	}
}

// addRecursive はdir配下のディレクトリを再帰的に監視対象へ追加する。
func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("監視対象ディレクトリへアクセスできません: %w", err)
			}
			w.logger.Warn("監視対象の走査に失敗しました",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("ディレクトリの監視追加に失敗しました: %w", err)
		}
		return nil
	})
}
