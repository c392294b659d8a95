// Package markdown はアルバム説明文のMarkdownレンダリング機能を提供する。
//
// RendererService はMarkdown原文をblackfridayでHTMLへ変換し、
// securityパッケージのサニタイザで許可リストベースのサニタイズを
// 適用してからAPI応答へ返す。
package markdown

import (
	"github.com/russross/blackfriday/v2"

	"github.com/hitoshi/photozen/internal/security"
)

// RendererService はMarkdownレンダリング機能のインターフェースを定義する。
// アルバム詳細のAPI応答時に使用される。
type RendererService interface {
	// Render はMarkdown原文をサニタイズ済みHTMLへ変換する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Render(source string) string
}

// renderer はRendererServiceの実装。
type renderer struct {
	sanitizer security.ContentSanitizerService
}

// NewRenderer はRendererServiceの新しいインスタンスを生成する。
func NewRenderer(sanitizer security.ContentSanitizerService) *renderer {
	return &renderer{
		sanitizer: sanitizer,
	}
}

// Render はMarkdown原文をサニタイズ済みHTMLへ変換する。
func (r *renderer) Render(source string) string {
	if source == "" {
		return ""
	}
	rendered := blackfriday.Run([]byte(source))
	return r.sanitizer.Sanitize(string(rendered))
}
