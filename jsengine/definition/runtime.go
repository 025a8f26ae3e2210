package definition

import (
	"reflect"

	"github.com/pkg/errors"
)

// RuntimeObject 是脚本引擎持有的对象句柄，只有创建它的 Runtime 能解释。
type RuntimeObject any

// Getter 服务一次访问器读取。
type Getter func() (any, error)

// Setter 服务一次访问器写入。
type Setter func(value any) error

// HostFunction 是交给 Runtime.SetProperty 的可调用包装。
// Runtime 需把它转换为脚本侧函数。Call 收到的参数原样交给 Marshaller，
// 因此实现了 Marshaller 的 Runtime 可以直接传入引擎自身的值类型；
// 否则应传入导出后的 Go 值。
type HostFunction struct {
	Name  string
	Arity int
	Call  func(args []any) (any, error)
}

// Runtime 是脚本引擎需要提供的最小写入能力。
type Runtime interface {
	// CreateObject 创建一个空对象。
	CreateObject() (RuntimeObject, error)
	// SetProperty 以可写、可枚举、可配置的数据属性写入 name，
	// 已有同名属性（包括访问器）被替换。value 可能是 HostFunction
	// 或本 Runtime 创建的对象。
	SetProperty(obj RuntimeObject, name string, value any) error
	// DefineAccessorProperty 定义访问器属性。目标键上已有不可配置属性时
	// 返回 *NotConfigurableError。
	DefineAccessorProperty(obj RuntimeObject, name string, getter Getter, setter Setter) error
}

// Marshaller 负责把脚本侧参数转换为宿主函数所需的类型，并把返回值带回。
// 每次函数调用或访问器访问恰好调用一次 Invoke。
type Marshaller interface {
	Invoke(callable any, args []any) (any, error)
}

// DirectMarshaller 不做任何类型转换，只接受以下形状的 callable：
//
//	func([]any) (any, error)
//	func() (any, error)
//	func(any) error
//	func()
//
// 当 Runtime 自身未实现 Marshaller 时使用。
var DirectMarshaller Marshaller = directMarshaller{}

type directMarshaller struct{}

func (directMarshaller) Invoke(callable any, args []any) (any, error) {
	switch fn := callable.(type) {
	case func([]any) (any, error):
		return fn(args)
	case func() (any, error):
		return fn()
	case func(any) error:
		var v any
		if len(args) > 0 {
			v = args[0]
		}
		return nil, fn(v)
	case func():
		fn()
		return nil, nil
	default:
		return nil, errors.Errorf("callable %s requires a marshaller", reflect.TypeOf(callable))
	}
}

// marshallerFor 优先使用 Runtime 自带的 Marshaller。
func marshallerFor(rt Runtime) Marshaller {
	if m, ok := rt.(Marshaller); ok {
		return m
	}
	return DirectMarshaller
}
