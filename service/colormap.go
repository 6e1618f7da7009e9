package service

import (
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

var (
	ColorCat     = color.RGBA{R: 180, G: 0, B: 255, A: 255} // purple
	ColorDog     = color.RGBA{R: 255, G: 255, B: 0, A: 255} // yellow
	ColorDefault = color.RGBA{R: 255, G: 0, B: 0, A: 255}   // red
)

// ColorMap 标签到叠加颜色的映射，构造后只读
type ColorMap struct {
	colors   map[string]color.RGBA
	fallback color.RGBA
}

// DefaultColorMap cat/dog 两个固定颜色，其余标签为红色
func DefaultColorMap() *ColorMap {
	return &ColorMap{
		colors: map[string]color.RGBA{
			"cat": ColorCat,
			"dog": ColorDog,
		},
		fallback: ColorDefault,
	}
}

// NewColorMap 在默认映射上叠加配置中的十六进制颜色
func NewColorMap(overrides map[string]string, defaultHex string) (*ColorMap, error) {
	cm := DefaultColorMap()
	for label, hex := range overrides {
		c, err := parseHexColor(hex)
		if err != nil {
			return nil, errors.Wrapf(err, "color for label %q", label)
		}
		cm.colors[strings.ToLower(label)] = c
	}
	if defaultHex != "" {
		c, err := parseHexColor(defaultHex)
		if err != nil {
			return nil, errors.Wrap(err, "default color")
		}
		cm.fallback = c
	}
	return cm, nil
}

// Lookup 按小写标签查找颜色，未命中返回默认色
func (cm *ColorMap) Lookup(label string) color.RGBA {
	if c, ok := cm.colors[strings.ToLower(label)]; ok {
		return c
	}
	return cm.fallback
}

func (cm *ColorMap) Default() color.RGBA {
	return cm.fallback
}

func parseHexColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(err, "invalid hex color %q", hex)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
