package service

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/pratik1719/landinglens-segmentation-CV/model"
	"github.com/tidwall/gjson"
)

const (
	fieldDecodedMask = "decoded_boolean_mask"
	fieldPredictions = "predictions"
	fieldBitmaps     = "bitmaps"
	fieldBitmap      = "bitmap"
	fieldLabelName   = "label_name"
	fieldScore       = "score"
	fieldImageWidth  = "imageWidth"
	fieldImageHeight = "imageHeight"
)

// MaxMaskPixels 单次响应中所有掩码像素总数的上限
const MaxMaskPixels = 1 << 28

// ResponseDecoder 解析推理响应，掩码按像素数从预算中扣除
type ResponseDecoder struct {
	budget int
}

// NewResponseDecoder maxPixels 超出 MaxMaskPixels 或不为正时取 MaxMaskPixels
func NewResponseDecoder(maxPixels int) *ResponseDecoder {
	if maxPixels <= 0 || maxPixels > MaxMaskPixels {
		maxPixels = MaxMaskPixels
	}
	return &ResponseDecoder{budget: maxPixels}
}

// DecodeResponse 使用默认预算解析响应
func DecodeResponse(body []byte) (model.Value, error) {
	return NewResponseDecoder(MaxMaskPixels).Decode(body)
}

// Decode 把推理服务返回的 JSON 解析成 model.Value。
// 所有形态判断只在这里进行，对象字段保持文档顺序。
func (d *ResponseDecoder) Decode(body []byte) (model.Value, error) {
	if !gjson.ValidBytes(body) {
		return model.Value{}, errors.New("response body is not valid JSON")
	}
	return d.decodeValue(gjson.ParseBytes(body))
}

// reserve 在分配掩码前扣除预算，乘法不会溢出
func (d *ResponseDecoder) reserve(width, height int) error {
	if err := checkMaskSize(width, height, d.budget); err != nil {
		return err
	}
	d.budget -= width * height
	return nil
}

func checkMaskSize(width, height, limit int) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid mask size %dx%d", width, height)
	}
	if width > limit/height {
		return errors.Errorf("mask size %dx%d exceeds remaining budget of %d pixels", width, height, limit)
	}
	return nil
}

func (d *ResponseDecoder) decodeValue(r gjson.Result) (model.Value, error) {
	switch {
	case r.Type == gjson.Null:
		return model.Absent(), nil
	case r.IsArray():
		return d.decodeArray(r)
	case r.IsObject():
		return d.decodeObject(r)
	default:
		return model.Unrecognized(jsonTypeName(r)), nil
	}
}

func (d *ResponseDecoder) decodeArray(r gjson.Result) (model.Value, error) {
	var (
		items []model.Value
		err   error
	)
	r.ForEach(func(_, elem gjson.Result) bool {
		var v model.Value
		v, err = d.decodeValue(elem)
		if err != nil {
			return false
		}
		items = append(items, v)
		return true
	})
	if err != nil {
		return model.Value{}, err
	}
	return model.Sequence(items...), nil
}

func (d *ResponseDecoder) decodeObject(r gjson.Result) (model.Value, error) {
	if mask := r.Get(fieldDecodedMask); mask.Exists() {
		m, err := d.decodeMaskGrid(mask)
		if err != nil {
			return model.Value{}, err
		}
		return model.Single(model.Prediction{
			Label: r.Get(fieldLabelName).String(),
			Score: r.Get(fieldScore).Float(),
			Mask:  m,
		}), nil
	}

	if bitmaps := r.Get(fieldBitmaps); bitmaps.IsObject() && r.Get(fieldImageWidth).Exists() && r.Get(fieldImageHeight).Exists() {
		return d.decodeBitmaps(bitmaps, r.Get(fieldImageWidth).Int(), r.Get(fieldImageHeight).Int())
	}

	var (
		fields []model.Field
		inner  *model.Value
		err    error
	)
	r.ForEach(func(key, val gjson.Result) bool {
		var v model.Value
		v, err = d.decodeValue(val)
		if err != nil {
			err = errors.Wrap(err, key.String())
			return false
		}
		if key.String() == fieldPredictions && inner == nil {
			inner = &v
		}
		fields = append(fields, model.Field{Key: key.String(), Value: v})
		return true
	})
	if err != nil {
		return model.Value{}, err
	}
	// 带 predictions 的对象视为包装层，其余字段保留用于回退查找
	if inner != nil {
		return model.Wrapper(*inner, fields...), nil
	}
	return model.Mapping(fields...), nil
}

// decodeBitmaps 解析 LandingLens 分割结果中的 bitmaps 对象
func (d *ResponseDecoder) decodeBitmaps(bitmaps gjson.Result, width64, height64 int64) (model.Value, error) {
	if width64 <= 0 || height64 <= 0 || width64 > MaxMaskPixels || height64 > MaxMaskPixels {
		return model.Value{}, errors.Errorf("invalid image size %dx%d", width64, height64)
	}
	width, height := int(width64), int(height64)

	var (
		items []model.Value
		err   error
	)
	bitmaps.ForEach(func(id, entry gjson.Result) bool {
		rle := entry.Get(fieldBitmap)
		if rle.Type != gjson.String {
			err = errors.Errorf("bitmap %s: missing run-length mask", id.String())
			return false
		}
		if err = d.reserve(width, height); err != nil {
			err = errors.Wrapf(err, "bitmap %s", id.String())
			return false
		}
		var m *model.Mask
		m, err = DecodeBitmapRLE(rle.String(), width, height)
		if err != nil {
			err = errors.Wrapf(err, "bitmap %s", id.String())
			return false
		}
		items = append(items, model.Single(model.Prediction{
			Label: entry.Get(fieldLabelName).String(),
			Score: entry.Get(fieldScore).Float(),
			Mask:  m,
		}))
		return true
	})
	if err != nil {
		return model.Value{}, err
	}
	return model.Sequence(items...), nil
}

// decodeMaskGrid 解析二维布尔（或 0/1）数组
func (d *ResponseDecoder) decodeMaskGrid(r gjson.Result) (*model.Mask, error) {
	if !r.IsArray() {
		return nil, errors.Errorf("%s must be a 2-D array, got %s", fieldDecodedMask, jsonTypeName(r))
	}
	rows := r.Array()
	if len(rows) == 0 {
		return model.NewMask(0, 0), nil
	}

	width := len(rows[0].Array())
	if width > 0 {
		if err := d.reserve(width, len(rows)); err != nil {
			return nil, errors.Wrap(err, fieldDecodedMask)
		}
	}
	m := model.NewMask(width, len(rows))
	for y, row := range rows {
		cells := row.Array()
		if !row.IsArray() || len(cells) != width {
			return nil, errors.Errorf("%s row %d has %d cells, want %d", fieldDecodedMask, y, len(cells), width)
		}
		for x, cell := range cells {
			switch cell.Type {
			case gjson.True:
				m.Set(x, y, true)
			case gjson.False:
			case gjson.Number:
				m.Set(x, y, cell.Float() != 0)
			default:
				return nil, errors.Errorf("%s[%d][%d]: unexpected %s", fieldDecodedMask, y, x, jsonTypeName(cell))
			}
		}
	}
	return m, nil
}

// DecodeBitmapRLE 解码 LandingLens 行程编码，例如 "3Z2N" 表示 3 个 false 后接 2 个 true
func DecodeBitmapRLE(rle string, width, height int) (*model.Mask, error) {
	if err := checkMaskSize(width, height, MaxMaskPixels); err != nil {
		return nil, err
	}
	m := model.NewMask(width, height)
	pos := 0
	start := 0
	for i := 0; i < len(rle); i++ {
		ch := rle[i]
		if ch >= '0' && ch <= '9' {
			continue
		}
		var value bool
		switch ch {
		case 'Z':
		case 'N':
			value = true
		default:
			return nil, errors.Errorf("unexpected run symbol %q at offset %d", ch, i)
		}
		n, err := strconv.Atoi(rle[start:i])
		if err != nil {
			return nil, errors.Errorf("invalid run length %q before offset %d", rle[start:i], i)
		}
		if n > len(m.Bits)-pos {
			return nil, errors.Errorf("run-length mask exceeds %dx%d", width, height)
		}
		if value {
			for j := pos; j < pos+n; j++ {
				m.Bits[j] = true
			}
		}
		pos += n
		start = i + 1
	}
	if start != len(rle) {
		return nil, errors.New("trailing run length without symbol")
	}
	if pos != len(m.Bits) {
		return nil, errors.Errorf("run-length mask covers %d pixels, want %d", pos, len(m.Bits))
	}
	return m, nil
}

func jsonTypeName(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return "null"
	case gjson.False, gjson.True:
		return "bool"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	default:
		if r.IsArray() {
			return "array"
		}
		return "object"
	}
}
