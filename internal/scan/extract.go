package scan

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"  // GIFデコーダーの登録
	_ "image/jpeg" // JPEGデコーダーの登録
	_ "image/png"  // PNGデコーダーの登録

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/hitoshi/photozen/internal/model"
)

// imageExtensions はスキャン対象とする画像ファイルの拡張子。
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".heic": true,
	".heif": true,
	".raw":  true,
	".cr2":  true,
	".nef":  true,
	".arw":  true,
	".orf":  true,
	".rw2":  true,
	".pef":  true,
	".dng":  true,
}

// IsImageFile はパスの拡張子がスキャン対象の画像形式かどうかを返す。
func IsImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// Extract はファイルを読み取り、カタログ登録用の属性を抽出する。
// 寸法・EXIF撮影日時・GPS座標は取得できない形式でもエラーとせず、
// ゼロ値のまま返す。RAW形式などデコーダー未対応の画像は寸法が0x0になる。
func Extract(absPath, relPath string) (*model.ScannedPhoto, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("ファイルの読み込みに失敗しました: %w", err)
	}

	sum := sha256.Sum256(data)

	scanned := &model.ScannedPhoto{
		RelPath:     relPath,
		DisplayName: filepath.Base(absPath),
		SizeBytes:   int64(len(data)),
		ContentHash: hex.EncodeToString(sum[:]),
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		scanned.Width = cfg.Width
		scanned.Height = cfg.Height
	}

	if x, err := exif.Decode(bytes.NewReader(data)); err == nil {
		scanned.TakenAt = exifTakenAt(x)
		if lat, lon, err := x.LatLong(); err == nil {
			scanned.Latitude = &lat
			scanned.Longitude = &lon
		}
	}

	return scanned, nil
}

// exifTakenAt はEXIFから撮影日時を取り出す。
// DateTimeOriginalを優先し、なければDateTimeDigitizedにフォールバックする。
// どちらも無い、または解析できない場合はnilを返す。
func exifTakenAt(x *exif.Exif) *time.Time {
	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
		if t, err := parseExifDateTime(tag); err == nil {
			return &t
		}
	}
	if tag, err := x.Get(exif.DateTimeDigitized); err == nil {
		if t, err := parseExifDateTime(tag); err == nil {
			return &t
		}
	}
	return nil
}

// parseExifDateTime はEXIFの日時文字列を解析する。
// "2006:01:02 15:04:05" 形式を基本とし、日付のみの形式にフォールバックする。
func parseExifDateTime(tag *tiff.Tag) (time.Time, error) {
	dateStr, err := tag.StringVal()
	if err != nil {
		return time.Time{}, fmt.Errorf("EXIF日時タグの読み取りに失敗しました: %w", err)
	}

	t, err := time.Parse("2006:01:02 15:04:05", dateStr)
	if err != nil {
		t, errDateOnly := time.Parse("2006:01:02", dateStr)
		if errDateOnly != nil {
			return time.Time{}, fmt.Errorf("EXIF日時文字列 '%s' を解析できませんでした: %w", dateStr, err)
		}
		return t, nil
	}
	return t, nil
}
