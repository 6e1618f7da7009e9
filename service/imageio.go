package service

import (
	"bytes"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DecodeImage 解码 JPEG/PNG，按 EXIF 方向校正并转成不透明 RGB
func DecodeImage(r io.Reader) (*image.NRGBA, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	return toOpaqueNRGBA(img), nil
}

// EncodePNG 无损编码
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression)); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}

// ResizeToWidth 按显示宽度等比缩放，不放大
func ResizeToWidth(img image.Image, width int) *image.NRGBA {
	if width <= 0 || width >= img.Bounds().Dx() {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}
