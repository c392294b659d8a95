package mediastore

import (
	"testing"
	"time"

	"github.com/hitoshi/photozen/internal/model"
)

// TestValidateRenameTemplate_Valid は妥当なテンプレートが受理されることを検証する。
func TestValidateRenameTemplate_Valid(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{name: "空テンプレート", template: ""},
		{name: "トークンなし", template: "photo"},
		{name: "全トークン", template: "{album}_{name}_{index}_{date}"},
		{name: "トークンと固定文字列の混在", template: "旅行-{date}-{index}"},
		{name: "同一トークンの繰り返し", template: "{index}-{index}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRenameTemplate(tt.template); err != nil {
				t.Errorf("ValidateRenameTemplate(%q) = %v, want nil", tt.template, err)
			}
		})
	}
}

// TestValidateRenameTemplate_Invalid は不正なテンプレートが拒否されることを検証する。
func TestValidateRenameTemplate_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{name: "未知のトークン", template: "{year}-{name}"},
		{name: "スラッシュを含む", template: "sub/dir-{name}"},
		{name: "バックスラッシュを含む", template: `sub\dir-{name}`},
		{name: "閉じられていない波括弧", template: "{name"},
		{name: "空のトークン", template: "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRenameTemplate(tt.template); err == nil {
				t.Errorf("ValidateRenameTemplate(%q) = nil, want error", tt.template)
			}
		})
	}
}

// TestApplyRenameTemplate_EmptyKeepsOriginalName は空テンプレートで元の名前が維持されることを検証する。
func TestApplyRenameTemplate_EmptyKeepsOriginalName(t *testing.T) {
	photo := &model.Photo{RelPath: "camera/IMG_0001.jpg"}

	got := ApplyRenameTemplate("", photo, "旅行", 1)
	if got != "IMG_0001.jpg" {
		t.Errorf("ApplyRenameTemplate = %q, want IMG_0001.jpg", got)
	}
}

// TestApplyRenameTemplate_Tokens は各トークンが展開されることを検証する。
func TestApplyRenameTemplate_Tokens(t *testing.T) {
	taken := time.Date(2025, 6, 1, 10, 30, 45, 0, time.UTC)
	photo := &model.Photo{
		RelPath: "camera/IMG_0001.jpg",
		TakenAt: &taken,
		AddedAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "album", template: "{album}", want: "旅行.jpg"},
		{name: "name", template: "{name}", want: "IMG_0001.jpg"},
		{name: "index", template: "{index}", want: "3.jpg"},
		{name: "date", template: "{date}", want: "2025-06-01-103045.jpg"},
		{name: "組み合わせ", template: "{album}_{date}_{index}", want: "旅行_2025-06-01-103045_3.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyRenameTemplate(tt.template, photo, "旅行", 3)
			if got != tt.want {
				t.Errorf("ApplyRenameTemplate(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

// TestApplyRenameTemplate_DateFallsBackToAddedAt はEXIF撮影日時のない写真で登録日時が使われることを検証する。
func TestApplyRenameTemplate_DateFallsBackToAddedAt(t *testing.T) {
	photo := &model.Photo{
		RelPath: "camera/IMG_0002.png",
		AddedAt: time.Date(2025, 7, 15, 8, 0, 0, 0, time.UTC),
	}

	got := ApplyRenameTemplate("{date}", photo, "旅行", 1)
	if got != "2025-07-15-080000.png" {
		t.Errorf("ApplyRenameTemplate = %q, want 2025-07-15-080000.png", got)
	}
}

// TestApplyRenameTemplate_SanitizesAlbumName はアルバム名内のパス区切り文字が置換されることを検証する。
func TestApplyRenameTemplate_SanitizesAlbumName(t *testing.T) {
	photo := &model.Photo{RelPath: "camera/IMG_0003.jpg"}

	got := ApplyRenameTemplate("{album}", photo, "2025/旅行", 1)
	if got != "2025_旅行.jpg" {
		t.Errorf("ApplyRenameTemplate = %q, want 2025_旅行.jpg", got)
	}
}

// TestApplyRenameTemplate_PreservesExtension は拡張子が維持されることを検証する。
func TestApplyRenameTemplate_PreservesExtension(t *testing.T) {
	photo := &model.Photo{RelPath: "camera/DSC_100.NEF"}

	got := ApplyRenameTemplate("{index}", photo, "旅行", 7)
	if got != "7.NEF" {
		t.Errorf("ApplyRenameTemplate = %q, want 7.NEF", got)
	}
}
