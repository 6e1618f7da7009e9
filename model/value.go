package model

// Kind 推理响应节点的形态
type Kind int

const (
	KindAbsent Kind = iota
	KindSequence
	KindMapping
	KindWrapper
	KindSingle
	KindUnrecognized
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindWrapper:
		return "wrapper"
	case KindSingle:
		return "single"
	case KindUnrecognized:
		return "unrecognized"
	default:
		return "invalid"
	}
}

// Field 映射中的一项，保持原始顺序
type Field struct {
	Key   string
	Value Value
}

// Value 推理响应在反序列化边界处解析成的和类型。
// 只有与 Kind 对应的字段有效：Sequence 用 Items，Mapping 用 Fields，
// Wrapper 用 Inner（Fields 为同一对象的全部字段），Single 用 Prediction。
type Value struct {
	Kind       Kind
	Items      []Value
	Fields     []Field
	Inner      *Value
	Prediction *Prediction
	// TypeName 原始 JSON 类型，用于调试输出
	TypeName string
}

func Absent() Value {
	return Value{Kind: KindAbsent, TypeName: "null"}
}

func Sequence(items ...Value) Value {
	return Value{Kind: KindSequence, Items: items, TypeName: "array"}
}

func Mapping(fields ...Field) Value {
	return Value{Kind: KindMapping, Fields: fields, TypeName: "object"}
}

// Wrapper fields 为包装对象自身的字段，按原顺序保存
func Wrapper(inner Value, fields ...Field) Value {
	return Value{Kind: KindWrapper, Inner: &inner, Fields: fields, TypeName: "object"}
}

func Single(p Prediction) Value {
	return Value{Kind: KindSingle, Prediction: &p, TypeName: "object"}
}

func Unrecognized(typeName string) Value {
	return Value{Kind: KindUnrecognized, TypeName: typeName}
}

// Describe 返回形如 "sequence(array)" 的描述
func (v Value) Describe() string {
	return v.Kind.String() + "(" + v.TypeName + ")"
}
