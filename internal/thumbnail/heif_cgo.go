//go:build cgo

package thumbnail

// heif-goはcgo必須のためCGO_ENABLED=1のビルドでのみ登録される。
import _ "github.com/vegidio/heif-go" // HEIF/HEVCデコーダーの登録
