// Package avatar はアバター画像の検証とリサイズを提供する。
package avatar

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG入力のデコード登録
	"image/png"

	"golang.org/x/image/draw"
)

// 出力画像の一辺のピクセル数。
const targetSize = 250

// ErrUnsupportedImage はデコードできない・対応形式でない入力を表す。
var ErrUnsupportedImage = errors.New("unsupported image")

// Processor はアップロードされた画像を正方形のPNGに正規化する。
// 入力はPNGまたはJPEGのみを受け付ける。
type Processor struct{}

// NewProcessor はProcessorを生成する。
func NewProcessor() *Processor {
	return &Processor{}
}

// Process は入力画像をデコードし、250x250のPNGにリサイズして返す。
// デコードできない入力、PNG/JPEG以外の形式はErrUnsupportedImageを返す。
func (p *Processor) Process(data []byte) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if format != "png" && format != "jpeg" {
		return nil, fmt.Errorf("%w: format %q", ErrUnsupportedImage, format)
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetSize, targetSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}
