//go:build quickjs

package quickjs

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	bq "github.com/buke/quickjs-go"
	"github.com/pkg/errors"

	"Scardice-jsbind/jsengine"
	"Scardice-jsbind/jsengine/definition"
	"Scardice-jsbind/jsengine/marshal"
)

// objectRef 是 JS 侧对象表的下标，0 表示 globalThis。
type objectRef int

const globalRef objectRef = 0

// accessPrefix 标记访问器缺失一侧的错误，__jsbind_guard 据此改抛 TypeError。
// 修改时需同步 bindingHelpersScript 中的前缀与长度。
const accessPrefix = "jsbind-access: "

const bindingHelpersScript = `(function(){
const hidden = (name, value) => Object.defineProperty(globalThis, name, {value: value, writable: true, configurable: true});
hidden("__jsbind_objects", []);
hidden("__jsbind_modules", Object.create(null));
hidden("__jsbind_object", function(ref) {
  return ref === 0 ? globalThis : globalThis.__jsbind_objects[ref - 1];
});
hidden("__jsbind_take", function(name) {
  const v = globalThis[name];
  delete globalThis[name];
  return v;
});
hidden("__jsbind_guard", function(fn) {
  return function() {
    try {
      return fn.apply(this, arguments);
    } catch (e) {
      const msg = e && typeof e.message === "string" ? e.message : "";
      if (msg.startsWith("jsbind-access: ")) throw new TypeError(msg.slice(15));
      throw e;
    }
  };
});
if (typeof globalThis.require !== "function") {
  globalThis.require = function(name) {
    if (name in globalThis.__jsbind_modules) return globalThis.__jsbind_modules[name];
    throw new Error("Cannot find module '" + name + "'");
  };
}
})();`

type nativeBackend struct {
	marshal.Reflect

	runtime   *bq.Runtime
	ctx       *bq.Context
	moduleDir string
	opt       Options
	// QuickJS Context 非线程安全，所有 Eval/JS 调用必须串行。
	vmMu sync.Mutex
}

func newNativeBackend(cfg jsengine.Config, opt Options) (*nativeBackend, error) {
	n := &nativeBackend{
		moduleDir: cfg.ModuleDir,
		opt:       opt,
	}
	n.Reflect.Convert = n.convertArg
	if err := n.open(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *nativeBackend) open() error {
	if n.runtime == nil {
		rt := bq.NewRuntime()
		if rt == nil {
			return errors.New("创建 QuickJS Runtime 失败")
		}
		if n.opt.MemoryLimitBytes > 0 {
			rt.SetMemoryLimit(uint64(n.opt.MemoryLimitBytes))
		}
		n.runtime = rt
	}
	ctx := n.runtime.NewContext()
	if ctx == nil {
		return errors.New("创建 QuickJS Context 失败")
	}
	n.ctx = ctx
	if err := n.evalGlobalLocked(bindingHelpersScript); err != nil {
		return errors.Wrap(err, "安装绑定辅助函数失败")
	}
	return nil
}

func (n *nativeBackend) evalGlobal(code string) error {
	n.vmMu.Lock()
	defer n.vmMu.Unlock()
	return n.evalGlobalLocked(code)
}

func (n *nativeBackend) evalGlobalLocked(code string) error {
	if n.ctx == nil {
		return errors.New("QuickJS VM 未初始化")
	}
	v := n.ctx.Eval(code, bq.EvalFlagGlobal(true))
	defer v.Free()
	// 脚本返回 Promise（例如 async IIFE）时需要驱动 pending jobs
	if v.IsPromise() {
		ret := n.ctx.Await(v)
		defer ret.Free()
		if ret.IsException() {
			return n.exception("quickjs await exception")
		}
	}
	if v.IsException() {
		return n.exception("quickjs eval exception")
	}
	return nil
}

// evalStringLocked 执行脚本并返回其字符串结果。
func (n *nativeBackend) evalStringLocked(code string) (string, error) {
	if n.ctx == nil {
		return "", errors.New("QuickJS VM 未初始化")
	}
	v := n.ctx.Eval(code, bq.EvalFlagGlobal(true))
	defer v.Free()
	if v.IsException() {
		return "", n.exception("quickjs eval exception")
	}
	return v.String(), nil
}

func (n *nativeBackend) exception(fallback string) error {
	if err := n.ctx.Exception(); err != nil {
		return err
	}
	return errors.New(fallback)
}

func (n *nativeBackend) Dispose() error {
	n.vmMu.Lock()
	defer n.vmMu.Unlock()
	if n.ctx != nil {
		n.ctx.Close()
		n.ctx = nil
	}
	if n.runtime != nil {
		n.runtime.Close()
		n.runtime = nil
	}
	return nil
}

func (n *nativeBackend) Eval(code string) error {
	return n.evalGlobal(code)
}

func (n *nativeBackend) EvalWithResult(code string) (any, error) {
	codeJSON, _ := json.Marshal(code)
	script := fmt.Sprintf(`(async function(){
const ret = (0, eval)(%s);
const out = (ret && typeof ret.then === 'function') ? await ret : ret;
return JSON.stringify(out, (_k, v) => {
  if (typeof v === 'bigint') return Number(v);
  if (typeof v === 'function') return undefined;
  return v;
});
})()`, string(codeJSON))
	n.vmMu.Lock()
	defer n.vmMu.Unlock()
	if n.ctx == nil {
		return nil, errors.New("QuickJS VM 未初始化")
	}
	v := n.ctx.Eval(script, bq.EvalFlagGlobal(true))
	defer v.Free()
	if v.IsPromise() {
		ret := n.ctx.Await(v)
		defer ret.Free()
		if ret.IsException() {
			return nil, n.exception("quickjs await exception")
		}
		v = ret
	}
	if v.IsException() {
		return nil, n.exception("quickjs eval exception")
	}
	raw := strings.TrimSpace(v.String())
	if raw == "" || raw == "undefined" || raw == "null" {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, errors.Wrap(err, "解析执行结果失败")
	}
	return out, nil
}

func (n *nativeBackend) Require(moduleID string) error {
	absPath, err := jsengine.ResolveScriptPath(n.moduleDir, moduleID)
	if err != nil {
		return err
	}
	code, err := jsengine.LoadScript(absPath)
	if err != nil {
		return err
	}
	if err := n.evalGlobal(string(code)); err != nil {
		return errors.Wrapf(err, "执行脚本失败(%s)", filepath.ToSlash(absPath))
	}
	return nil
}

func (n *nativeBackend) BindModule(m jsengine.Module) error {
	n.vmMu.Lock()
	defer n.vmMu.Unlock()
	if n.ctx == nil {
		return errors.New("QuickJS VM 未初始化")
	}
	obj, err := jsengine.BindModule(n, globalRef, m)
	if err != nil {
		return err
	}
	if m.Name == "" {
		return nil
	}
	nameJSON, _ := json.Marshal(m.Name)
	return n.evalGlobalLocked(fmt.Sprintf(`globalThis.__jsbind_modules[%s] = globalThis.__jsbind_object(%d);`, nameJSON, obj.(objectRef)))
}

// Reset 复用 Runtime 重建 Context，避免频繁 JS_FreeRuntime。
func (n *nativeBackend) Reset() error {
	n.vmMu.Lock()
	defer n.vmMu.Unlock()
	if n.ctx != nil {
		n.ctx.Close()
		n.ctx = nil
	}
	return n.open()
}

// 以下方法实现 definition.Runtime，调用方需持有 vmMu。

func (n *nativeBackend) CreateObject() (definition.RuntimeObject, error) {
	out, err := n.evalStringLocked(`String(globalThis.__jsbind_objects.push({}))`)
	if err != nil {
		return nil, err
	}
	ref, err := strconv.Atoi(out)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid object handle %q", out)
	}
	return objectRef(ref), nil
}

func (n *nativeBackend) SetProperty(obj definition.RuntimeObject, name string, value any) error {
	ref, ok := obj.(objectRef)
	if !ok {
		return errors.Errorf("not a quickjs object: %T", obj)
	}
	nameJSON, _ := json.Marshal(name)

	var valueExpr string
	switch x := value.(type) {
	case objectRef:
		valueExpr = fmt.Sprintf("globalThis.__jsbind_object(%d)", x)
	case definition.HostFunction:
		fn := n.function(x)
		n.ctx.Globals().Set("__jsbind_value", fn)
		fn.Free()
		valueExpr = fmt.Sprintf(`(function(f){
  Object.defineProperty(f, "name", {value: %s, configurable: true});
  Object.defineProperty(f, "length", {value: %d, configurable: true});
  return f;
})(globalThis.__jsbind_take("__jsbind_value"))`, nameJSON, x.Arity)
	default:
		v := n.marshalResult(value)
		if v.IsException() {
			v.Free()
			return n.exception("marshal value failed")
		}
		n.ctx.Globals().Set("__jsbind_value", v)
		v.Free()
		valueExpr = `globalThis.__jsbind_take("__jsbind_value")`
	}

	out, err := n.evalStringLocked(fmt.Sprintf(`(function(){
const o = globalThis.__jsbind_object(%d);
const v = %s;
try {
  Object.defineProperty(o, %s, {value: v, writable: true, enumerable: true, configurable: true});
  return "";
} catch (e) {
  return String(e);
}
})()`, ref, valueExpr, nameJSON))
	if err != nil {
		return err
	}
	if out != "" {
		return errors.New(out)
	}
	return nil
}

func (n *nativeBackend) DefineAccessorProperty(obj definition.RuntimeObject, name string, getter definition.Getter, setter definition.Setter) error {
	ref, ok := obj.(objectRef)
	if !ok {
		return errors.Errorf("not a quickjs object: %T", obj)
	}
	get := n.ctx.NewFunction(func(ctx *bq.Context, _ *bq.Value, _ []*bq.Value) *bq.Value {
		v, err := getter()
		if err != nil {
			return n.throw(ctx, err)
		}
		return n.marshalResult(v)
	})
	set := n.ctx.NewFunction(func(ctx *bq.Context, _ *bq.Value, args []*bq.Value) *bq.Value {
		var arg any
		if len(args) > 0 {
			arg = args[0]
		}
		if err := setter(arg); err != nil {
			return n.throw(ctx, err)
		}
		return ctx.Undefined()
	})
	n.ctx.Globals().Set("__jsbind_get", get)
	n.ctx.Globals().Set("__jsbind_set", set)
	get.Free()
	set.Free()

	nameJSON, _ := json.Marshal(name)
	out, err := n.evalStringLocked(fmt.Sprintf(`(function(){
const o = globalThis.__jsbind_object(%d);
const g = globalThis.__jsbind_guard(globalThis.__jsbind_take("__jsbind_get"));
const s = globalThis.__jsbind_guard(globalThis.__jsbind_take("__jsbind_set"));
const d = Object.getOwnPropertyDescriptor(o, %s);
if (d && !d.configurable) return "not-configurable";
try {
  Object.defineProperty(o, %s, {get: g, set: s, enumerable: true, configurable: true});
  return "";
} catch (e) {
  return String(e);
}
})()`, ref, nameJSON, nameJSON))
	if err != nil {
		return err
	}
	switch out {
	case "":
		return nil
	case "not-configurable":
		return &definition.NotConfigurableError{Name: name}
	default:
		return errors.New(out)
	}
}

func (n *nativeBackend) function(hf definition.HostFunction) *bq.Value {
	return n.ctx.NewFunction(func(ctx *bq.Context, _ *bq.Value, args []*bq.Value) *bq.Value {
		// 缺少的形参以 nil 补齐，按零值处理
		in := make([]any, max(len(args), hf.Arity))
		for i, arg := range args {
			in[i] = arg
		}
		ret, err := hf.Call(in)
		if err != nil {
			return n.throw(ctx, err)
		}
		return n.marshalResult(ret)
	})
}

func (n *nativeBackend) throw(ctx *bq.Context, err error) *bq.Value {
	var accessErr *definition.AccessError
	if errors.As(err, &accessErr) {
		return ctx.ThrowError(errors.New(accessPrefix + err.Error()))
	}
	return ctx.ThrowError(err)
}

func (n *nativeBackend) marshalResult(v any) *bq.Value {
	if v == nil {
		return n.ctx.Undefined()
	}
	switch x := v.(type) {
	case *bq.Value:
		return x
	case string:
		return n.ctx.String(x)
	case bool:
		return n.ctx.Bool(x)
	case int:
		return n.ctx.Int64(int64(x))
	case int64:
		return n.ctx.Int64(x)
	case int32:
		return n.ctx.Int32(x)
	case float64:
		return n.ctx.Float64(x)
	default:
		mv, err := n.ctx.Marshal(v)
		if err != nil {
			return n.ctx.ThrowError(err)
		}
		return mv
	}
}

func (n *nativeBackend) convertArg(v any, t reflect.Type) (reflect.Value, bool, error) {
	arg, ok := v.(*bq.Value)
	if !ok {
		return reflect.Value{}, false, nil
	}
	if arg.IsUndefined() || arg.IsNull() {
		return reflect.Zero(t), true, nil
	}
	switch t.Kind() {
	case reflect.Interface:
		var decoded any
		if err := json.Unmarshal([]byte(arg.JSONStringify()), &decoded); err == nil && decoded != nil {
			return reflect.ValueOf(decoded), true, nil
		}
		return reflect.ValueOf(arg.ToString()), true, nil
	case reflect.String:
		return reflect.ValueOf(arg.ToString()).Convert(t), true, nil
	case reflect.Bool:
		return reflect.ValueOf(arg.ToBool()).Convert(t), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.ValueOf(arg.ToInt64()).Convert(t), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.ValueOf(uint64(arg.ToInt64())).Convert(t), true, nil
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(arg.ToFloat64()).Convert(t), true, nil
	case reflect.Pointer, reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		var decoded any
		if err := json.Unmarshal([]byte(arg.JSONStringify()), &decoded); err != nil {
			return reflect.Value{}, true, err
		}
		out, err := n.Reflect.ConvertValue(decoded, t)
		return out, true, err
	default:
		return reflect.Value{}, true, errors.Errorf("不支持的参数类型: %s", t)
	}
}

func init() {
	newRuntimeBackend = func(cfg jsengine.Config, opt Options) (runtimeBackend, error) {
		backend, err := newNativeBackend(cfg, opt)
		if err != nil {
			return nil, err
		}
		return backend, nil
	}
}
