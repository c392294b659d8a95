// Package mediastore はライブラリルート配下のファイル操作を提供する。
//
// 写真ファイルの実体はライブラリルート以下に置かれ、カタログには
// ルートからの相対パス（スラッシュ区切り）だけが記録される。
// アルバムへの移動・ゴミ箱への退避・取り込み保存はすべてこの
// パッケージを経由し、ルート外への参照は拒否される。
package mediastore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hitoshi/photozen/internal/model"
)

// TrashDirName はライブラリルート直下のゴミ箱ディレクトリ名。
// スキャナーはこのディレクトリを走査対象から除外する。
const TrashDirName = ".photozen-trash"

// ImportDirName はリモート取り込みの保存先ディレクトリ名。
const ImportDirName = "imports"

// ErrSourceMissing は移動元ファイルが存在しない場合に返される。
// メディア操作ワーカーはこのエラーを恒久的な失敗として扱い、リトライしない。
var ErrSourceMissing = errors.New("移動元ファイルが存在しません")

// Store はライブラリルートを基点としたファイル操作を提供する。
type Store struct {
	root string
}

// NewStore はStoreの新しいインスタンスを生成する。
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root はライブラリルートの絶対パスを返す。
func (s *Store) Root() string {
	return s.root
}

// EnsureLayout はライブラリルートとゴミ箱ディレクトリを作成する。
// 既に存在する場合は何もしない。起動時に呼び出される。
func (s *Store) EnsureLayout() error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("ライブラリルートの作成に失敗しました: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(s.root, TrashDirName), 0755); err != nil {
		return fmt.Errorf("ゴミ箱ディレクトリの作成に失敗しました: %w", err)
	}
	return nil
}

// Resolve はカタログの相対パスをライブラリルート配下の絶対パスへ解決する。
// 空のパス、絶対パス、ルート外へ抜けるパスは拒否する。
func (s *Store) Resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("相対パスが空です")
	}
	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("絶対パスは参照できません: %s", relPath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("ライブラリ外のパスは参照できません: %s", relPath)
	}
	return filepath.Join(s.root, cleaned), nil
}

// MoveToAlbum は写真ファイルをアルバム名のディレクトリへ移動する。
// アルバムにリネームテンプレートが設定されていれば適用し、
// 移動先で名前が衝突する場合は連番を付与する。
// 戻り値は移動後の相対パス（スラッシュ区切り）。
// 移動元が存在しない場合はErrSourceMissingを返す。
func (s *Store) MoveToAlbum(photo *model.Photo, album *model.Album, index int) (string, error) {
	src, err := s.Resolve(photo.RelPath)
	if err != nil {
		return "", err
	}
	if err := s.statSource(src, photo.RelPath); err != nil {
		return "", err
	}

	destDir := filepath.Join(s.root, sanitizeComponent(album.Name))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("アルバムディレクトリの作成に失敗しました: %w", err)
	}

	fileName := ApplyRenameTemplate(album.RenameTemplate, photo, album.Name, index)
	dest, err := uniqueDestination(destDir, fileName)
	if err != nil {
		return "", err
	}
	if err := moveFile(src, dest); err != nil {
		return "", fmt.Errorf("アルバムへの移動に失敗しました: %w", err)
	}
	return s.relPath(dest)
}

// MoveToTrash は写真ファイルをゴミ箱ディレクトリへ退避する。
// 実体の完全削除は保持期間経過後にクリーンアップジョブが行う。
// 戻り値は退避後の相対パス（スラッシュ区切り）。
// 移動元が存在しない場合はErrSourceMissingを返す。
func (s *Store) MoveToTrash(photo *model.Photo) (string, error) {
	src, err := s.Resolve(photo.RelPath)
	if err != nil {
		return "", err
	}
	if err := s.statSource(src, photo.RelPath); err != nil {
		return "", err
	}

	trashDir := filepath.Join(s.root, TrashDirName)
	if err := os.MkdirAll(trashDir, 0755); err != nil {
		return "", fmt.Errorf("ゴミ箱ディレクトリの作成に失敗しました: %w", err)
	}

	dest, err := uniqueDestination(trashDir, filepath.Base(filepath.FromSlash(photo.RelPath)))
	if err != nil {
		return "", err
	}
	if err := moveFile(src, dest); err != nil {
		return "", fmt.Errorf("ゴミ箱への退避に失敗しました: %w", err)
	}
	return s.relPath(dest)
}

// Remove はファイルを完全に削除する。
// 既に存在しない場合は成功として扱う（クリーンアップの再実行を安全にするため）。
func (s *Store) Remove(relPath string) error {
	path, err := s.Resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ファイルの削除に失敗しました: %w", err)
	}
	return nil
}

// SaveNew は新しいファイルをライブラリ配下のディレクトリへ書き込む。
// リモート取り込みが使用する。名前が衝突する場合は連番を付与する。
// 戻り値は保存先の相対パス（スラッシュ区切り）。
func (s *Store) SaveNew(dir, fileName string, data []byte) (string, error) {
	destDir := filepath.Join(s.root, sanitizeComponent(dir))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("保存先ディレクトリの作成に失敗しました: %w", err)
	}

	dest, err := uniqueDestination(destDir, sanitizeComponent(fileName))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("ファイルの書き込みに失敗しました: %w", err)
	}
	return s.relPath(dest)
}

// statSource は移動元ファイルの存在を確認する。
func (s *Store) statSource(path, relPath string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, relPath)
		}
		return fmt.Errorf("移動元ファイルの確認に失敗しました: %w", err)
	}
	return nil
}

// relPath は絶対パスをルートからの相対パス（スラッシュ区切り）へ変換する。
func (s *Store) relPath(path string) (string, error) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", fmt.Errorf("相対パスへの変換に失敗しました: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// uniqueDestination は重複しない保存先パスを返す。
// 既存ファイルと衝突する場合はベース名へ -1, -2, ... の連番を付与する。
func uniqueDestination(dir, fileName string) (string, error) {
	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)

	candidate := filepath.Join(dir, fileName)
	for i := 1; ; i++ {
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("保存先の確認に失敗しました: %w", err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, i, ext))
	}
}

// moveFile はファイルを移動する。
// 同一ボリューム内ではrenameを使い、失敗した場合はコピーと削除で代替する。
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("移動元ファイルの削除に失敗しました: %w", err)
	}
	return nil
}

// copyFile はファイル内容をコピーし、書き込みをディスクへ同期する。
func copyFile(src, dest string) error {
	source, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("移動元ファイルのオープンに失敗しました: %w", err)
	}
	defer source.Close()

	destination, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("移動先ファイルの作成に失敗しました: %w", err)
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return fmt.Errorf("ファイル内容のコピーに失敗しました: %w", err)
	}
	if err := destination.Sync(); err != nil {
		return fmt.Errorf("移動先ファイルの同期に失敗しました: %w", err)
	}
	return nil
}
