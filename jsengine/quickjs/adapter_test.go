package quickjs

import (
	"context"
	"errors"
	"testing"
	"time"

	"Scardice-jsbind/jsengine"
	"Scardice-jsbind/jsengine/definition"
)

type fakeBackend struct {
	evalErr    error
	requireErr error
	resetErr   error
	bindErr    error
	bound      []string
	resets     int
	opt        Options
}

func (f *fakeBackend) Dispose() error      { return nil }
func (f *fakeBackend) Eval(_ string) error { return f.evalErr }
func (f *fakeBackend) EvalWithResult(_ string) (any, error) {
	return "ok", f.evalErr
}
func (f *fakeBackend) Require(_ string) error { return f.requireErr }
func (f *fakeBackend) BindModule(m jsengine.Module) error {
	if f.bindErr != nil {
		return f.bindErr
	}
	f.bound = append(f.bound, m.Name)
	return nil
}
func (f *fakeBackend) Reset() error {
	f.resets++
	f.bound = nil
	return f.resetErr
}

func useBackend(t *testing.T, b *fakeBackend) {
	t.Helper()
	oldFactory := newRuntimeBackend
	newRuntimeBackend = func(_ jsengine.Config, opt Options) (runtimeBackend, error) {
		b.opt = opt
		return b, nil
	}
	t.Cleanup(func() {
		newRuntimeBackend = oldFactory
	})
}

func module(name string) jsengine.Module {
	return jsengine.Module{
		Name:       name,
		Definition: definition.MustAggregate(definition.NewConstants(map[string]any{"A": 1})),
	}
}

func TestAdapterLifecycle(t *testing.T) {
	useBackend(t, &fakeBackend{})

	a := NewAdapter()
	if a.Name() != jsengine.EngineQuickJS {
		t.Fatalf("引擎名称错误: got=%s want=%s", a.Name(), jsengine.EngineQuickJS)
	}

	if err := a.Init(context.Background(), jsengine.Config{Name: jsengine.EngineQuickJS}); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}

	if err := a.Dispose(); err != nil {
		t.Fatalf("Dispose 失败: %v", err)
	}
	// 重复释放应幂等
	if err := a.Dispose(); err != nil {
		t.Fatalf("重复 Dispose 不应失败: %v", err)
	}
}

func TestAdapterEvalRequireResetSemantics(t *testing.T) {
	useBackend(t, &fakeBackend{})

	a := NewAdapter()

	// 未初始化前，核心执行能力应返回对应类别错误
	if err := a.Eval("1+1"); err == nil {
		t.Fatal("未初始化时 Eval 应失败")
	} else {
		ee, ok := err.(*jsengine.EngineError)
		if !ok || ee.Kind != jsengine.ErrEval {
			t.Fatalf("Eval 错误类型不正确: %T %v", err, err)
		}
	}

	if err := a.Require("./mod.js"); err == nil {
		t.Fatal("未初始化时 Require 应失败")
	} else {
		ee, ok := err.(*jsengine.EngineError)
		if !ok || ee.Kind != jsengine.ErrModule {
			t.Fatalf("Require 错误类型不正确: %T %v", err, err)
		}
	}

	if err := a.Reset(); err == nil {
		t.Fatal("未初始化时 Reset 应失败")
	} else {
		ee, ok := err.(*jsengine.EngineError)
		if !ok || ee.Kind != jsengine.ErrRuntime {
			t.Fatalf("Reset 错误类型不正确: %T %v", err, err)
		}
	}

	if err := a.Init(context.Background(), jsengine.Config{Name: jsengine.EngineQuickJS}); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	if err := a.Eval("1+1"); err != nil {
		t.Fatalf("后端可用时 Eval 不应失败: %v", err)
	}
	if ret, err := a.EvalWithResult("1+1"); err != nil || ret != "ok" {
		t.Fatalf("后端可用时 EvalWithResult 不应失败: %v %v", ret, err)
	}
	if err := a.Require("./mod.js"); err != nil {
		t.Fatalf("后端可用时 Require 不应失败: %v", err)
	}
	if err := a.Reset(); err != nil {
		t.Fatalf("后端可用时 Reset 不应失败: %v", err)
	}
}

func TestAdapterBackendErrorsAreClassified(t *testing.T) {
	b := &fakeBackend{
		evalErr:    errors.New("eval"),
		requireErr: errors.New("require"),
	}
	useBackend(t, b)

	a := NewAdapter()
	if err := a.Init(context.Background(), jsengine.Config{}); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	var ee *jsengine.EngineError
	if err := a.Eval("x"); !errors.As(err, &ee) || ee.Kind != jsengine.ErrEval || !errors.Is(err, b.evalErr) {
		t.Fatalf("Eval 错误不正确: %v", err)
	}
	if err := a.Require("x"); !errors.As(err, &ee) || ee.Kind != jsengine.ErrModule {
		t.Fatalf("Require 错误不正确: %v", err)
	}
	b.resetErr = errors.New("reset")
	if err := a.Reset(); !errors.As(err, &ee) || ee.Kind != jsengine.ErrRuntime {
		t.Fatalf("Reset 错误不正确: %v", err)
	}
}

func TestAdapterRegisterModule(t *testing.T) {
	b := &fakeBackend{}
	useBackend(t, b)

	a := NewAdapter()
	if err := a.RegisterModule(module("first")); err != nil {
		t.Fatalf("登记模块失败: %v", err)
	}
	if err := a.Init(context.Background(), jsengine.Config{Name: jsengine.EngineQuickJS}); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	if len(b.bound) != 1 || b.bound[0] != "first" {
		t.Fatalf("Init 时未绑定预登记模块: %+v", b.bound)
	}

	if err := a.RegisterModule(module("second")); err != nil {
		t.Fatalf("运行期登记模块失败: %v", err)
	}
	if len(b.bound) != 2 || b.bound[1] != "second" {
		t.Fatalf("运行期未向后端绑定模块: %+v", b.bound)
	}

	if err := a.Reset(); err != nil {
		t.Fatalf("Reset 失败: %v", err)
	}
	if b.resets != 1 || len(b.bound) != 2 || b.bound[0] != "first" || b.bound[1] != "second" {
		t.Fatalf("Reset 后应按登记顺序重新绑定: resets=%d bound=%+v", b.resets, b.bound)
	}
}

func TestAdapterRegisterModuleBindFailure(t *testing.T) {
	b := &fakeBackend{}
	useBackend(t, b)

	a := NewAdapter()
	if err := a.Init(context.Background(), jsengine.Config{}); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	b.bindErr = &definition.RuntimeBindingError{Op: "set constant", Name: "A", Cause: errors.New("frozen")}
	err := a.RegisterModule(module("m"))
	var ee *jsengine.EngineError
	if !errors.As(err, &ee) || ee.Kind != jsengine.ErrBind {
		t.Fatalf("绑定失败应返回 ErrBind: %v", err)
	}
	var rbe *definition.RuntimeBindingError
	if !errors.As(err, &rbe) {
		t.Fatalf("应保留 RuntimeBindingError: %v", err)
	}

	b.bindErr = nil
	if err := a.Reset(); err != nil {
		t.Fatalf("失败的模块不应被记录: %v", err)
	}
	if len(b.bound) != 0 {
		t.Fatalf("不应重新绑定失败的模块: %+v", b.bound)
	}
}

func TestAdapterInitFailsOnBindError(t *testing.T) {
	b := &fakeBackend{}
	useBackend(t, b)

	a := NewAdapter()
	if err := a.RegisterModule(module("m")); err != nil {
		t.Fatalf("登记模块失败: %v", err)
	}
	b.bindErr = errors.New("boom")
	err := a.Init(context.Background(), jsengine.Config{})
	var ee *jsengine.EngineError
	if !errors.As(err, &ee) || ee.Kind != jsengine.ErrBind {
		t.Fatalf("Init 时绑定失败应返回 ErrBind: %v", err)
	}
	if a.lc.State() != jsengine.StateClosed {
		t.Fatalf("Init 失败后应关闭: %v", a.lc.State())
	}
}

func TestAdapterOptionsFromConfig(t *testing.T) {
	b := &fakeBackend{}
	useBackend(t, b)

	a := NewAdapter()
	if err := a.Init(context.Background(), jsengine.Config{MemoryLimitBytes: 4096}); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	if b.opt.MemoryLimitBytes != 4096 {
		t.Fatalf("应沿用 Config 的内存限制: %+v", b.opt)
	}

	b2 := &fakeBackend{}
	useBackend(t, b2)
	a2 := NewAdapter(WithOptions(Options{MemoryLimitBytes: 1024}))
	if err := a2.Init(context.Background(), jsengine.Config{MemoryLimitBytes: 4096}); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	if b2.opt.MemoryLimitBytes != 1024 {
		t.Fatalf("显式 Options 应优先: %+v", b2.opt)
	}
}

func TestAdapterInitFailWhenBackendMissing(t *testing.T) {
	oldFactory := newRuntimeBackend
	newRuntimeBackend = func(_ jsengine.Config, _ Options) (runtimeBackend, error) {
		return nil, errors.New("missing")
	}
	defer func() {
		newRuntimeBackend = oldFactory
	}()

	a := NewAdapter()
	err := a.Init(context.Background(), jsengine.Config{Name: jsengine.EngineQuickJS})
	if err == nil {
		t.Fatal("后端缺失时 Init 应失败")
	}
	ee, ok := err.(*jsengine.EngineError)
	if !ok || ee.Kind != jsengine.ErrInit {
		t.Fatalf("错误类型不正确: %T %v", err, err)
	}
}

func TestAdapterRegisterModuleAfterConcurrentDispose(t *testing.T) {
	b := &fakeBackend{}
	useBackend(t, b)

	a := NewAdapter()
	if err := a.Init(context.Background(), jsengine.Config{}); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}

	// 持有写锁，让 RegisterModule 通过入口检查后在加锁处等待
	a.mu.Lock()
	done := make(chan error, 1)
	go func() { done <- a.RegisterModule(module("late")) }()
	time.Sleep(20 * time.Millisecond)

	a.lc.Store(jsengine.StateDisposing)
	a.backend = nil
	a.lc.Store(jsengine.StateClosed)
	a.mu.Unlock()

	err := <-done
	var ee *jsengine.EngineError
	if !errors.As(err, &ee) || ee.Kind != jsengine.ErrRuntime {
		t.Fatalf("关闭后登记模块应返回 ErrRuntime: %v", err)
	}
	if len(a.modules) != 0 || len(b.bound) != 0 {
		t.Fatalf("关闭后不应记录或绑定模块: modules=%d bound=%+v", len(a.modules), b.bound)
	}
}
