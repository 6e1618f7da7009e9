package service

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/pratik1719/landinglens-segmentation-CV/model"
)

// DefaultAlpha 叠加透明度
const DefaultAlpha = 0.45

// Compositor 按标签颜色将掩码区域混合到原图上
type Compositor struct {
	colors *ColorMap
}

func NewCompositor(colors *ColorMap) *Compositor {
	if colors == nil {
		colors = DefaultColorMap()
	}
	return &Compositor{colors: colors}
}

// Compose 返回新图，原图不变。预测按顺序绘制，重叠处以后者为准。
func (c *Compositor) Compose(img image.Image, preds []model.Prediction, alpha float64) (*image.NRGBA, error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, errors.Wrapf(ErrInvalidAlpha, "got %v", alpha)
	}

	out := toOpaqueNRGBA(img)
	width, height := out.Rect.Dx(), out.Rect.Dy()

	// 先整体校验尺寸，避免部分绘制
	for i, p := range preds {
		if p.Mask == nil || p.Mask.Width != width || p.Mask.Height != height || len(p.Mask.Bits) != width*height {
			mw, mh := 0, 0
			if p.Mask != nil {
				mw, mh = p.Mask.Width, p.Mask.Height
			}
			return nil, &MaskDimensionError{
				Index:       i,
				Label:       p.LabelOrUnknown(),
				MaskWidth:   mw,
				MaskHeight:  mh,
				ImageWidth:  width,
				ImageHeight: height,
			}
		}
	}

	for _, p := range preds {
		col := c.colors.Lookup(p.LabelOrUnknown())
		target := [3]float64{float64(col.R), float64(col.G), float64(col.B)}

		for y := 0; y < height; y++ {
			row := out.Pix[y*out.Stride : y*out.Stride+width*4]
			for x := 0; x < width; x++ {
				if !p.Mask.At(x, y) {
					continue
				}
				px := row[x*4 : x*4+3]
				for ch := 0; ch < 3; ch++ {
					px[ch] = blend(px[ch], target[ch], alpha)
				}
			}
		}
	}

	return out, nil
}

func blend(current uint8, target, alpha float64) uint8 {
	v := math.Round((1-alpha)*float64(current) + alpha*target)
	return uint8(max(0, min(255, v)))
}

// toOpaqueNRGBA 拷贝为原点在 (0,0) 的 RGB 图，alpha 固定为 255
func toOpaqueNRGBA(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out
}
