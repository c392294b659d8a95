// Package ingest はリモートURLからの写真取り込みを提供する。
// 画像への直接URLはそのまま取得し、HTMLページの場合はheadタグの
// og:image / twitter:imageメタタグから画像URLを検出して取得する。
package ingest

import (
	"bytes"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ImageSource は画像URLの検出元メタタグを表す。
type ImageSource string

const (
	// ImageSourceOpenGraph はog:imageメタタグから検出された画像。
	ImageSourceOpenGraph ImageSource = "og:image"
	// ImageSourceTwitter はtwitter:imageメタタグから検出された画像。
	ImageSourceTwitter ImageSource = "twitter:image"
)

// ImageCandidate はHTMLから検出された画像URL候補を表す。
type ImageCandidate struct {
	URL    string
	Source ImageSource
}

// IsImageContent はContent-Typeとボディを解析して、
// 指定されたレスポンスが画像かどうかを判定する。
// Content-Typeが汎用（application/octet-stream等）の場合はボディの
// 先頭バイトをスニッフィングして判定する。
func IsImageContent(contentType string, body []byte) bool {
	// Content-Typeからメディアタイプを抽出（charsetなどのパラメータを除去）
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	if strings.HasPrefix(mediaType, "image/") {
		return true
	}

	// 汎用Content-Typeの場合はボディ解析が必要
	if len(body) == 0 {
		return false
	}
	switch mediaType {
	case "", "application/octet-stream", "binary/octet-stream":
		return strings.HasPrefix(http.DetectContentType(body), "image/")
	}
	return false
}

// IsHTMLContent はContent-TypeがHTMLかどうかを判定する。
func IsHTMLContent(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.Contains(strings.ToLower(mediaType), "html")
}

// ParseImageLinksFromHTML はHTMLのheadタグから画像URLのメタタグを解析・検出する。
// og:image / og:image:secure_url / twitter:image を対象とし、
// 相対URLはbaseURLを基準に絶対URLに解決される。
func ParseImageLinksFromHTML(htmlBody []byte, baseURL string) []ImageCandidate {
	var candidates []ImageCandidate

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return candidates
			}

			if !inHead || tagName != "meta" || !hasAttr {
				continue
			}

			// meta要素の属性を解析
			var property, name, content string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "property":
					property = strings.ToLower(v)
				case "name":
					name = strings.ToLower(v)
				case "content":
					content = v
				}
				if !more {
					break
				}
			}

			if content == "" {
				continue
			}

			var source ImageSource
			switch {
			case property == "og:image" || property == "og:image:secure_url":
				source = ImageSourceOpenGraph
			case name == "twitter:image" || name == "twitter:image:src":
				source = ImageSourceTwitter
			default:
				continue
			}

			// 相対URLを絶対URLに解決
			resolvedURL := resolveURL(baseU, content)
			if resolvedURL == "" {
				continue
			}

			candidates = append(candidates, ImageCandidate{
				URL:    resolvedURL,
				Source: source,
			})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}

// SelectBestImage は複数の画像候補から優先順位に従って最適な画像を選択する。
// 優先順位: og:image > twitter:image > 先頭
func SelectBestImage(candidates []ImageCandidate) *ImageCandidate {
	if len(candidates) == 0 {
		return nil
	}

	bestIdx := 0
	bestScore := -1

	for i, c := range candidates {
		score := 0
		if c.Source == ImageSourceOpenGraph {
			score += 10
		}
		// 同スコアの場合はインデックスが小さい方を優先する
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	return &candidates[bestIdx]
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
