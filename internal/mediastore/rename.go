package mediastore

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/photozen/internal/model"
)

// renameTokens はリネームテンプレートで使用できるトークン一覧。
var renameTokens = map[string]bool{
	"{album}": true,
	"{name}":  true,
	"{index}": true,
	"{date}":  true,
}

// ValidateRenameTemplate はリネームテンプレートの妥当性を検証する。
// 空文字列は「リネームしない」を意味するため妥当として扱う。
// パス区切り文字、閉じられていない波括弧、未知のトークンは拒否する。
func ValidateRenameTemplate(template string) error {
	if template == "" {
		return nil
	}
	if strings.ContainsAny(template, `/\`) {
		return fmt.Errorf("リネームテンプレートにパス区切り文字は使用できません")
	}
	rest := template
	for {
		start := strings.Index(rest, "{")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return fmt.Errorf("リネームテンプレートの波括弧が閉じていません")
		}
		token := rest[start : start+end+1]
		if !renameTokens[token] {
			return fmt.Errorf("リネームテンプレートに未知のトークンがあります: %s", token)
		}
		rest = rest[start+end+1:]
	}
	return nil
}

// ApplyRenameTemplate はテンプレートを展開してリネーム後のファイル名を返す。
// 使用できるトークン:
//   - {album}: アルバム名（パス区切り文字は置換される）
//   - {name}: 元のファイル名（拡張子なし）
//   - {index}: アルバム内の連番
//   - {date}: 撮影日時（EXIFがなければ登録日時）のYYYY-MM-DD-HHMMSS表記
//
// 拡張子は元ファイルのものが維持される。
// テンプレートが空の場合は元のファイル名をそのまま返す。
func ApplyRenameTemplate(template string, photo *model.Photo, albumName string, index int) string {
	base := filepath.Base(filepath.FromSlash(photo.RelPath))
	if template == "" {
		return base
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	date := photo.AddedAt
	if photo.TakenAt != nil {
		date = *photo.TakenAt
	}

	name := template
	name = strings.ReplaceAll(name, "{album}", sanitizeComponent(albumName))
	name = strings.ReplaceAll(name, "{name}", stem)
	name = strings.ReplaceAll(name, "{index}", strconv.Itoa(index))
	name = strings.ReplaceAll(name, "{date}", date.In(time.UTC).Format("2006-01-02-150405"))
	return name + ext
}

// sanitizeComponent はファイル名として安全でない文字をアンダースコアへ置換する。
func sanitizeComponent(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, s)
}
