package grid

import "fmt"

// Attrs 是保持插入顺序的属性表，满足 api.AttributeMap。
type Attrs struct {
	keys []string
	vals map[string]any
}

func NewAttrs() *Attrs {
	return &Attrs{vals: map[string]any{}}
}

// Set 设置属性；已存在的键保持原位置。
func (a *Attrs) Set(key string, val any) *Attrs {
	if _, ok := a.vals[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.vals[key] = val
	return a
}

func (a *Attrs) Keys() []string { return a.keys }

func (a *Attrs) Get(key string) (any, bool) {
	v, ok := a.vals[key]
	return v, ok
}

// GetType 返回 CDL 类型名。
func (a *Attrs) GetType(key string) (string, bool) {
	v, ok := a.vals[key]
	if !ok {
		return "", false
	}
	switch v.(type) {
	case string:
		return "string", true
	case int8, []int8:
		return "byte", true
	case int16, []int16:
		return "short", true
	case int32, []int32:
		return "int", true
	case int64, []int64:
		return "int64", true
	case float32, []float32:
		return "float", true
	case float64, []float64:
		return "double", true
	default:
		return "", false
	}
}

// GetGoType 返回 Go 类型名。
func (a *Attrs) GetGoType(key string) (string, bool) {
	v, ok := a.vals[key]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%T", v), true
}

type attrSource interface {
	Keys() []string
	Get(key string) (any, bool)
}

func copyAttrs(src attrSource) *Attrs {
	out := NewAttrs()
	if src == nil {
		return out
	}
	for _, k := range src.Keys() {
		if v, ok := src.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}
