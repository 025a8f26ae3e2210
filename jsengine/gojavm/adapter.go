// Package gojavm 是基于 goja 的纯 Go 引擎实现，所有脚本执行与模块绑定
// 都在 goja_nodejs 事件循环上串行完成。
package gojavm

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"Scardice-jsbind/jsengine"
	"Scardice-jsbind/logger"
)

type Adapter struct {
	mu sync.RWMutex

	id  string
	cfg jsengine.Config
	lc  *jsengine.Lifecycle
	log *zap.SugaredLogger

	modules []jsengine.Module
	vm      *vmState
}

// Option 调整适配器行为。
type Option func(*Adapter)

// WithLogger 指定日志实例，默认使用 logger.M()。
func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

func init() {
	jsengine.Register(jsengine.EngineGoja, func() jsengine.Engine {
		return NewAdapter()
	})
}

// NewAdapter 创建 goja 适配器实例。
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		id:      uuid.NewString(),
		lc:      jsengine.NewLifecycle(),
		log:     logger.M(),
		modules: make([]jsengine.Module, 0, 8),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With("engine", jsengine.EngineGoja, "id", a.id)
	return a
}

func (a *Adapter) Name() jsengine.EngineName {
	return jsengine.EngineGoja
}

// ID 返回实例标识，用于日志关联。
func (a *Adapter) ID() string {
	return a.id
}

func (a *Adapter) Init(ctx context.Context, cfg jsengine.Config) error {
	if err := a.lc.BeginInit(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg.WithDefaults()

	st, err := a.newVM(ctx)
	if err != nil {
		a.lc.Store(jsengine.StateClosed)
		return initError(err)
	}
	a.vm = st
	a.lc.Store(jsengine.StateReady)
	a.log.Infof("goja 引擎已就绪，已绑定模块 %d 个", len(a.modules))
	return nil
}

func initError(err error) error {
	var ee *jsengine.EngineError
	if errors.As(err, &ee) {
		return err
	}
	return &jsengine.EngineError{
		Kind:    jsengine.ErrInit,
		Message: "goja 运行时初始化失败",
		Cause:   err,
	}
}

func (a *Adapter) Dispose() error {
	if !a.lc.BeginDispose() {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.vm != nil {
		a.vm.stop()
		a.vm = nil
	}
	a.lc.Store(jsengine.StateClosed)
	a.log.Infof("goja 引擎已关闭")
	return nil
}

func (a *Adapter) Eval(code string) error {
	_, err := a.eval(code, false)
	return err
}

// EvalWithResult 执行脚本并导出表达式结果。已完成的 Promise 取其结果。
func (a *Adapter) EvalWithResult(code string) (any, error) {
	return a.eval(code, true)
}

func (a *Adapter) eval(code string, export bool) (any, error) {
	if err := a.lc.RequireReady(jsengine.ErrEval); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.vm == nil {
		return nil, errUnavailable()
	}

	var ret any
	err := a.vm.run(func(vm *goja.Runtime) error {
		v, err := vm.RunString(code)
		if err != nil {
			return err
		}
		if export {
			ret, err = exportValue(v)
		}
		return err
	})
	if err != nil {
		return nil, scriptError(jsengine.ErrEval, "goja Eval 执行失败", err)
	}
	return ret, nil
}

func exportValue(v goja.Value) (any, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return v.Export(), nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return exportValue(p.Result())
	case goja.PromiseStateRejected:
		return nil, errors.Errorf("promise rejected: %v", p.Result())
	default:
		return nil, errors.New("promise pending")
	}
}

func (a *Adapter) Require(moduleID string) error {
	if err := a.lc.RequireReady(jsengine.ErrModule); err != nil {
		return err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.vm == nil {
		return errUnavailable()
	}
	path, err := jsengine.ResolveScriptPath(a.cfg.ModuleDir, moduleID)
	if err != nil {
		return &jsengine.EngineError{Kind: jsengine.ErrModule, Message: err.Error(), Cause: err}
	}
	err = a.vm.run(func(*goja.Runtime) error {
		_, err := a.vm.req.Require(filepath.ToSlash(path))
		return err
	})
	if err != nil {
		return scriptError(jsengine.ErrModule, "goja Require 执行失败("+filepath.ToSlash(path)+")", err)
	}
	return nil
}

func (a *Adapter) RegisterModule(m jsengine.Module) error {
	if err := jsengine.CheckModule(m); err != nil {
		return err
	}
	if err := a.checkOpen(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	// Dispose 可能在加锁前完成
	if err := a.checkOpen(); err != nil {
		return err
	}
	if a.vm != nil {
		if err := a.vm.run(func(*goja.Runtime) error { return a.vm.bind(m) }); err != nil {
			a.log.Warnf("模块绑定失败: %v", err)
			return err
		}
	}
	a.modules = append(a.modules, m)
	return nil
}

func (a *Adapter) checkOpen() error {
	switch a.lc.State() {
	case jsengine.StateDisposing, jsengine.StateClosed:
		return &jsengine.EngineError{
			Kind:    jsengine.ErrRuntime,
			Message: "引擎已关闭",
		}
	}
	return nil
}

// Reset 重建运行时，并按登记顺序重新绑定全部模块。
func (a *Adapter) Reset() error {
	if err := a.lc.RequireReady(jsengine.ErrRuntime); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	st, err := a.newVM(context.Background())
	if err != nil {
		var ee *jsengine.EngineError
		if errors.As(err, &ee) {
			return err
		}
		return &jsengine.EngineError{
			Kind:    jsengine.ErrRuntime,
			Message: "goja Reset 执行失败",
			Cause:   err,
		}
	}
	if a.vm != nil {
		a.vm.stop()
	}
	a.vm = st
	a.log.Infof("goja 运行时已重置")
	return nil
}

func (a *Adapter) newVM(ctx context.Context) (*vmState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reg := require.NewRegistry(require.WithLoader(sourceLoader))
	reg.RegisterNativeModule("console", console.RequireWithPrinter(&printer{log: a.log}))
	loop := eventloop.NewEventLoop(eventloop.EnableConsole(false), eventloop.WithRegistry(reg))
	st := &vmState{loop: loop, reg: reg}
	loop.Start()

	modules := a.modules
	err := st.run(func(vm *goja.Runtime) error {
		vm.SetFieldNameMapper(goja.TagFieldNameMapper("jsbind", true))
		st.req = reg.Enable(vm)
		console.Enable(vm)
		st.rt = NewRuntime(vm)
		for _, m := range modules {
			if err := st.bind(m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		st.stop()
		return nil, err
	}
	return st, nil
}

// sourceLoader 在默认加载器之上为 .ts 模块加一层转译。
func sourceLoader(path string) ([]byte, error) {
	src, err := require.DefaultSourceLoader(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".ts") {
		return jsengine.TranspileTS(src, path)
	}
	return src, nil
}

func errUnavailable() error {
	return &jsengine.EngineError{
		Kind:    jsengine.ErrInternal,
		Message: "goja 运行时不可用",
	}
}

func scriptError(kind jsengine.ErrorKind, prefix string, err error) error {
	var ee *jsengine.EngineError
	if errors.As(err, &ee) {
		return err
	}
	out := &jsengine.EngineError{
		Kind:    kind,
		Message: prefix + ": " + err.Error(),
		Cause:   err,
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		out.Stack = ex.String()
	}
	return out
}
