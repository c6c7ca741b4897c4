package storage

import (
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
)

// Kind はリソース種別。オブジェクトキーの一部として使用する。
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindRaw   Kind = "raw"
)

// SniffLen はコンテンツタイプ判定に必要な先頭バイト数。
const SniffLen = 512

const genericContentType = "application/octet-stream"

// ResolveContentType は申告されたコンテンツタイプを正規化して返す。
// 未指定・汎用・解析不能な場合は先頭バイト列から判定する。
func ResolveContentType(declared string, head []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" {
		mediaType, params, err := mime.ParseMediaType(declared)
		if err == nil && mediaType != genericContentType {
			return mime.FormatMediaType(mediaType, params)
		}
	}
	return http.DetectContentType(head)
}

// KindOf はコンテンツタイプからリソース種別を決定する。
// PDFは画像、音声は動画として扱う。
func KindOf(contentType string) Kind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return KindRaw
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"), mediaType == "application/pdf":
		return KindImage
	case strings.HasPrefix(mediaType, "video/"), strings.HasPrefix(mediaType, "audio/"):
		return KindVideo
	default:
		return KindRaw
	}
}

// maxExtLen は拡張子（ドットを除く）の最大長。
const maxExtLen = 10

// ObjectKey は "<prefix>/<kind>/<yyyy>/<mm>/<dd>/<id><ext>" 形式のキーを生成する。
// 拡張子は元のファイル名から英数字のみを小文字で引き継ぐ。
func ObjectKey(prefix string, kind Kind, at time.Time, id, filename string) string {
	name := id + safeExt(filename)
	parts := []string{string(kind), at.UTC().Format("2006/01/02"), name}
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func safeExt(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return "." + ext
}

// validKey はキーが相対パスとして安全かどうかを返す。
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// joinURL はベースURLとキーを連結する。
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
