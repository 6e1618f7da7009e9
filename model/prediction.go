package model

// UnknownLabel 推理结果未携带标签时使用
const UnknownLabel = "unknown"

// Mask 实例掩码，按行优先存储，尺寸与原图一致
type Mask struct {
	Width  int
	Height int
	Bits   []bool
}

// NewMask 创建全 false 的掩码
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Bits:   make([]bool, width*height),
	}
}

// At 返回 (x, y) 处是否属于该实例
func (m *Mask) At(x, y int) bool {
	return m.Bits[y*m.Width+x]
}

func (m *Mask) Set(x, y int, v bool) {
	m.Bits[y*m.Width+x] = v
}

// Count 返回为 true 的像素数
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Prediction 单个检测实例
type Prediction struct {
	Label string
	Score float64
	Mask  *Mask
}

// LabelOrUnknown 返回标签，缺失时为 "unknown"
func (p Prediction) LabelOrUnknown() string {
	if p.Label == "" {
		return UnknownLabel
	}
	return p.Label
}
