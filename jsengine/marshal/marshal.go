// Package marshal 提供基于反射的默认 Marshaller：
// 把引擎导出的 Go 值转换成宿主函数的形参类型，并整理返回值。
package marshal

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// ArgConverter 把单个导出值转换为目标类型。返回 handled=false 时交回默认逻辑。
type ArgConverter func(v any, t reflect.Type) (out reflect.Value, handled bool, err error)

// Reflect 按宿主函数签名转换参数：
//   - 缺少的参数以零值补齐，多余的参数丢弃；
//   - 变参函数收集剩余参数；
//   - 数值类型之间按 Convert 转换；
//   - 结构体、map、切片、指针通过 JSON 往返转换；
//   - 最后一个返回值为非 nil error 时作为调用错误返回。
//
// 数值转换不做范围或精度检查。引擎的 Convert 也可能按脚本语义取整，
// 例如 goja 下 1.5 传给 int 得到 1，-1 传给 uint32 得到 4294967295，
// 非数字字符串传给 int 得到 0。需要严格校验的宿主函数应自行检查参数。
type Reflect struct {
	// Convert 可选，优先于默认转换，供引擎处理自身的值类型。
	Convert ArgConverter
}

// Default 是不带引擎扩展的默认实例。
var Default = &Reflect{}

// Invoke 调用 callable 并返回第一个非 error 返回值。
func (m *Reflect) Invoke(callable any, args []any) (ret any, err error) {
	fnVal := reflect.ValueOf(callable)
	if fnVal.Kind() != reflect.Func || fnVal.IsNil() {
		return nil, errors.Errorf("callable is not a function: %T", callable)
	}
	fnType := fnVal.Type()

	in, err := m.buildArgs(fnType, args)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			ret, err = nil, errors.Errorf("host function panic: %v", r)
		}
	}()
	return splitResults(fnVal.Call(in))
}

func (m *Reflect) buildArgs(fnType reflect.Type, args []any) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, fnType.NumIn())
	argIdx := 0
	for i := 0; i < fnType.NumIn(); i++ {
		pt := fnType.In(i)
		if fnType.IsVariadic() && i == fnType.NumIn()-1 {
			elemT := pt.Elem()
			for ; argIdx < len(args); argIdx++ {
				v, err := m.convert(args[argIdx], elemT)
				if err != nil {
					return nil, errors.Wrapf(err, "argument %d", argIdx)
				}
				in = append(in, v)
			}
			break
		}
		if argIdx >= len(args) {
			in = append(in, reflect.Zero(pt))
			continue
		}
		v, err := m.convert(args[argIdx], pt)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", argIdx)
		}
		in = append(in, v)
		argIdx++
	}
	return in, nil
}

// ConvertValue 把 v 转换为类型 t 的值。
func (m *Reflect) ConvertValue(v any, t reflect.Type) (reflect.Value, error) {
	return m.convert(v, t)
}

func (m *Reflect) convert(v any, t reflect.Type) (reflect.Value, error) {
	if m.Convert != nil {
		out, handled, err := m.Convert(v, t)
		if handled || err != nil {
			return out, err
		}
	}
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String, reflect.Bool:
		if isNumber(rv.Kind()) && isNumber(t.Kind()) || rv.Kind() == t.Kind() {
			return rv.Convert(t), nil
		}
		return reflect.Value{}, errors.Errorf("cannot convert %s to %s", rv.Type(), t)
	case reflect.Pointer, reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		return viaJSON(v, t)
	case reflect.Interface:
		if rv.Type().Implements(t) {
			return rv.Convert(t), nil
		}
		return reflect.Value{}, errors.Errorf("%s does not implement %s", rv.Type(), t)
	default:
		if rv.Type().ConvertibleTo(t) {
			return rv.Convert(t), nil
		}
		return reflect.Value{}, errors.Errorf("unsupported parameter type: %s", t)
	}
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func viaJSON(v any, t reflect.Type) (reflect.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return reflect.Value{}, errors.Wrapf(err, "encode %T", v)
	}
	if t.Kind() == reflect.Pointer {
		dst := reflect.New(t.Elem())
		if err := json.Unmarshal(b, dst.Interface()); err != nil {
			return reflect.Value{}, errors.Wrapf(err, "decode into %s", t)
		}
		return dst, nil
	}
	dst := reflect.New(t)
	if err := json.Unmarshal(b, dst.Interface()); err != nil {
		return reflect.Value{}, errors.Wrapf(err, "decode into %s", t)
	}
	return dst.Elem(), nil
}

func splitResults(out []reflect.Value) (any, error) {
	if len(out) == 0 {
		return nil, nil
	}
	last := out[len(out)-1]
	if last.Type() == errorType {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		out = out[:len(out)-1]
		if len(out) == 0 {
			return nil, nil
		}
	}
	return out[0].Interface(), nil
}
