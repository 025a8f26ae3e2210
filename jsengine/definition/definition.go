// Package definition 描述宿主侧暴露给脚本的能力（函数、常量、可变属性），
// 并把它们绑定成脚本运行时中的一个对象。
//
// 模块作者只面向 NewFunction / NewProperty / NewConstants / Aggregate 编程；
// 具体引擎通过实现 Runtime 接入，Build 与 Decorate 负责写入。
package definition

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Kind 标识定义片段的能力类别。
type Kind string

const (
	KindFunction  Kind = "function"
	KindProperty  Kind = "property"
	KindConstants Kind = "constants"
	KindObject    Kind = "object"
)

// Fragment 是一条能力声明。实现集合是封闭的：
// *Function、*Property、*Constants、*Object。
type Fragment interface {
	Kind() Kind
	fragment()
}

// Function 是一个具名的宿主函数定义。构造后不可变。
type Function struct {
	name     string
	callable any
	arity    int
	variadic bool
}

// FunctionOption 调整函数定义的元数据。
type FunctionOption func(*Function)

// WithArity 覆盖由反射推导出的形参个数（影响脚本侧的 length）。
func WithArity(n int) FunctionOption {
	return func(f *Function) {
		if n >= 0 {
			f.arity = n
		}
	}
}

// NewFunction 创建函数定义。callable 必须是 Go 函数；
// 参数与返回值的转换交给 Marshaller。
func NewFunction(name string, callable any, opts ...FunctionOption) (*Function, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &InvalidDefinitionError{Kind: KindFunction, Reason: "name is empty"}
	}
	t, err := funcType(callable)
	if err != nil {
		return nil, &InvalidDefinitionError{Kind: KindFunction, Name: name, Reason: err.Error()}
	}
	f := &Function{name: name, callable: callable, arity: t.NumIn(), variadic: t.IsVariadic()}
	if f.variadic {
		f.arity--
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// MustFunction 同 NewFunction，失败时 panic。用于包级初始化。
func MustFunction(name string, callable any, opts ...FunctionOption) *Function {
	f, err := NewFunction(name, callable, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Function) Kind() Kind { return KindFunction }
func (f *Function) fragment()  {}

func (f *Function) Name() string   { return f.name }
func (f *Function) Callable() any  { return f.callable }
func (f *Function) Arity() int     { return f.arity }
func (f *Function) Variadic() bool { return f.variadic }

// Property 是一个具名的动态属性：每次访问都会重新调用宿主侧的 getter/setter。
// getter 与 setter 至少存在一个。
type Property struct {
	name   string
	getter any
	setter any
}

// NewProperty 创建属性定义。getter 须为无参函数，setter 须为单参函数，
// 二者可分别为 nil，但不能同时为 nil。
func NewProperty(name string, getter any, setter any) (*Property, error) {
	p := &Property{name: name, getter: getter, setter: setter}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// MustProperty 同 NewProperty，失败时 panic。
func MustProperty(name string, getter any, setter any) *Property {
	p, err := NewProperty(name, getter, setter)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Property) validate() error {
	if strings.TrimSpace(p.name) == "" {
		return &InvalidDefinitionError{Kind: KindProperty, Reason: "name is empty"}
	}
	if p.getter == nil && p.setter == nil {
		return &InvalidDefinitionError{Kind: KindProperty, Name: p.name, Reason: "neither getter nor setter is defined"}
	}
	if p.getter != nil {
		t, err := funcType(p.getter)
		if err != nil {
			return &InvalidDefinitionError{Kind: KindProperty, Name: p.name, Reason: "getter: " + err.Error()}
		}
		if t.NumIn() != 0 {
			return &InvalidDefinitionError{Kind: KindProperty, Name: p.name, Reason: "getter must not take arguments"}
		}
	}
	if p.setter != nil {
		t, err := funcType(p.setter)
		if err != nil {
			return &InvalidDefinitionError{Kind: KindProperty, Name: p.name, Reason: "setter: " + err.Error()}
		}
		if t.NumIn() != 1 || t.IsVariadic() {
			return &InvalidDefinitionError{Kind: KindProperty, Name: p.name, Reason: "setter must take exactly one argument"}
		}
	}
	return nil
}

func (p *Property) Kind() Kind { return KindProperty }
func (p *Property) fragment()  {}

func (p *Property) Name() string   { return p.name }
func (p *Property) Getter() any    { return p.getter }
func (p *Property) Setter() any    { return p.setter }
func (p *Property) Readable() bool { return p.getter != nil }
func (p *Property) Writable() bool { return p.setter != nil }

// Constants 是一组常量。值在聚合时求值一次并保存快照，之后不再重新求值。
type Constants struct {
	body     func() map[string]any
	snapshot map[string]any
}

// NewConstants 用字面量创建常量定义。传入的 map 会被浅拷贝。
func NewConstants(values map[string]any) *Constants {
	cp := make(map[string]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Constants{snapshot: cp}
}

// ConstantsFunc 用求值函数创建常量定义，函数在 Aggregate 时调用一次。
func ConstantsFunc(body func() map[string]any) *Constants {
	return &Constants{body: body}
}

func (c *Constants) Kind() Kind { return KindConstants }
func (c *Constants) fragment()  {}

// Values 返回快照的副本。未经聚合的 ConstantsFunc 返回 nil。
func (c *Constants) Values() map[string]any {
	if c.snapshot == nil {
		return nil
	}
	return lo.Assign(c.snapshot)
}

// evaluate 返回求值后的快照副本，不修改接收者。
func (c *Constants) evaluate() *Constants {
	if c.body == nil {
		return c
	}
	values := c.body()
	cp := make(map[string]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Constants{snapshot: cp}
}

func funcType(callable any) (reflect.Type, error) {
	if callable == nil {
		return nil, errors.Errorf("callable is nil")
	}
	t := reflect.TypeOf(callable)
	if t.Kind() != reflect.Func {
		return nil, errors.Errorf("callable is %s, not a function", t.Kind())
	}
	if reflect.ValueOf(callable).IsNil() {
		return nil, errors.Errorf("callable is a nil function")
	}
	return t, nil
}
