package gojavm

import (
	"reflect"

	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"Scardice-jsbind/jsengine/definition"
	"Scardice-jsbind/jsengine/marshal"
)

var gojaValueType = reflect.TypeOf((*goja.Value)(nil)).Elem()

// Runtime 把 goja.Runtime 适配为 definition.Runtime。
// 它同时是 Marshaller：宿主函数收到原始 goja.Value，按形参类型经 ExportTo 转换。
// 只能在持有该 vm 的 goroutine（事件循环）上使用。
type Runtime struct {
	marshal.Reflect

	vm         *goja.Runtime
	descriptor goja.Callable
}

// NewRuntime 包装 vm。
func NewRuntime(vm *goja.Runtime) *Runtime {
	r := &Runtime{vm: vm}
	r.Reflect.Convert = r.convertArg
	return r
}

// VM 返回底层 goja 运行时。
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Global 返回全局对象句柄，供匿名模块装饰。
func (r *Runtime) Global() definition.RuntimeObject {
	return r.vm.GlobalObject()
}

func (r *Runtime) CreateObject() (definition.RuntimeObject, error) {
	return r.vm.NewObject(), nil
}

func (r *Runtime) SetProperty(obj definition.RuntimeObject, name string, value any) error {
	o, err := asObject(obj)
	if err != nil {
		return err
	}
	var v goja.Value
	if hf, ok := value.(definition.HostFunction); ok {
		v = r.function(hf)
	} else {
		v = r.vm.ToValue(value)
	}
	return o.DefineDataProperty(name, v, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (r *Runtime) DefineAccessorProperty(obj definition.RuntimeObject, name string, getter definition.Getter, setter definition.Setter) error {
	o, err := asObject(obj)
	if err != nil {
		return err
	}
	configurable, exists, err := r.ownConfigurable(o, name)
	if err != nil {
		return err
	}
	if exists && !configurable {
		return &definition.NotConfigurableError{Name: name}
	}

	get := r.vm.ToValue(func(goja.FunctionCall) goja.Value {
		v, err := getter()
		if err != nil {
			panic(r.throw(err))
		}
		return r.result(v)
	})
	set := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if err := setter(call.Argument(0)); err != nil {
			panic(r.throw(err))
		}
		return goja.Undefined()
	})
	return o.DefineAccessorProperty(name, get, set, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func asObject(obj definition.RuntimeObject) (*goja.Object, error) {
	o, ok := obj.(*goja.Object)
	if !ok || o == nil {
		return nil, errors.Errorf("not a goja object: %T", obj)
	}
	return o, nil
}

// ownConfigurable 通过 Object.getOwnPropertyDescriptor 读取自有属性的 configurable。
func (r *Runtime) ownConfigurable(o *goja.Object, name string) (configurable, exists bool, err error) {
	if r.descriptor == nil {
		objectCtor := r.vm.Get("Object").ToObject(r.vm)
		fn, ok := goja.AssertFunction(objectCtor.Get("getOwnPropertyDescriptor"))
		if !ok {
			return false, false, errors.New("Object.getOwnPropertyDescriptor is not a function")
		}
		r.descriptor = fn
	}
	desc, err := r.descriptor(goja.Undefined(), o, r.vm.ToValue(name))
	if err != nil {
		return false, false, err
	}
	if desc == nil || goja.IsUndefined(desc) {
		return false, false, nil
	}
	return desc.ToObject(r.vm).Get("configurable").ToBoolean(), true, nil
}

func (r *Runtime) function(hf definition.HostFunction) goja.Value {
	fn := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		// 缺少的形参按 undefined 补齐
		args := make([]any, max(len(call.Arguments), hf.Arity))
		for i := range args {
			args[i] = call.Argument(i)
		}
		ret, err := hf.Call(args)
		if err != nil {
			panic(r.throw(err))
		}
		return r.result(ret)
	}).(*goja.Object)
	_ = fn.DefineDataProperty("name", r.vm.ToValue(hf.Name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	_ = fn.DefineDataProperty("length", r.vm.ToValue(hf.Arity), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	return fn
}

func (r *Runtime) result(v any) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	return r.vm.ToValue(v)
}

// throw 把宿主错误转换为脚本异常：访问器缺失一侧抛 TypeError，
// 脚本回调产生的异常原样抛回，其余包装为 GoError。
func (r *Runtime) throw(err error) any {
	var accessErr *definition.AccessError
	if errors.As(err, &accessErr) {
		return r.vm.NewTypeError("%s", err.Error())
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex
	}
	return r.vm.NewGoError(err)
}

func (r *Runtime) convertArg(v any, t reflect.Type) (reflect.Value, bool, error) {
	gv, ok := v.(goja.Value)
	if !ok {
		return reflect.Value{}, false, nil
	}
	if t == gojaValueType {
		return reflect.ValueOf(&gv).Elem(), true, nil
	}
	if gv == nil || goja.IsUndefined(gv) || goja.IsNull(gv) {
		return reflect.Zero(t), true, nil
	}
	if t.Kind() == reflect.Interface && t.NumMethod() == 0 {
		exported := gv.Export()
		if exported == nil {
			return reflect.Zero(t), true, nil
		}
		return reflect.ValueOf(exported), true, nil
	}
	ptr := reflect.New(t)
	if err := r.vm.ExportTo(gv, ptr.Interface()); err != nil {
		return reflect.Value{}, true, errors.Wrapf(err, "convert to %s", t)
	}
	return ptr.Elem(), true, nil
}
