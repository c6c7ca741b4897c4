package workflow

import (
	"errors"
	"io"
)

// errUploadTooLarge は読み込み中に上限サイズを超えたことを表す。
var errUploadTooLarge = errors.New("upload exceeds size limit")

// countingReader は読み込んだバイト数を数え、上限を超えた時点で読み込みを打ち切る。
type countingReader struct {
	r     io.Reader
	n     int64
	limit int64 // 0以下は無制限
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.limit > 0 && c.n > c.limit {
		return n, errUploadTooLarge
	}
	return n, err
}

// exceeded は上限を超えて読み込んだかどうかを返す。
// ストレージ側のSDKが読み込みエラーをラップしない場合の判定に使う。
func (c *countingReader) exceeded() bool {
	return c.limit > 0 && c.n > c.limit
}
