package quickjs

import (
	"context"
	"sync"

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
	opt     Options
	backend runtimeBackend
}

// Option 调整适配器行为。
type Option func(*Adapter)

// WithOptions 指定 QuickJS 运行时参数。
func WithOptions(opt Options) Option {
	return func(a *Adapter) { a.opt = opt }
}

// WithLogger 指定日志实例，默认使用 logger.M()。
func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

func init() {
	jsengine.Register(jsengine.EngineQuickJS, func() jsengine.Engine {
		return NewAdapter()
	})
}

// NewAdapter 创建 QuickJS 适配器实例。
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
	a.log = a.log.With("engine", jsengine.EngineQuickJS, "id", a.id)
	return a
}

func (a *Adapter) Name() jsengine.EngineName {
	return jsengine.EngineQuickJS
}

// ID 返回实例标识，用于日志关联。
func (a *Adapter) ID() string {
	return a.id
}

func (a *Adapter) Init(ctx context.Context, cfg jsengine.Config) error {
	if err := a.lc.BeginInit(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		a.lc.Store(jsengine.StateClosed)
		return &jsengine.EngineError{Kind: jsengine.ErrInit, Message: "初始化已取消", Cause: err}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg.WithDefaults()

	backend, err := newRuntimeBackend(a.cfg, a.opt.resolve(a.cfg))
	if err != nil {
		a.lc.Store(jsengine.StateClosed)
		return &jsengine.EngineError{
			Kind:    jsengine.ErrInit,
			Message: "QuickJS 后端初始化失败",
			Cause:   err,
		}
	}
	if err := bindAll(backend, a.modules); err != nil {
		_ = backend.Dispose()
		a.lc.Store(jsengine.StateClosed)
		return err
	}

	a.backend = backend
	a.lc.Store(jsengine.StateReady)
	a.log.Infof("QuickJS 引擎已就绪，已绑定模块 %d 个", len(a.modules))
	return nil
}

func bindAll(backend runtimeBackend, modules []jsengine.Module) error {
	for _, m := range modules {
		if err := bindModule(backend, m); err != nil {
			return err
		}
	}
	return nil
}

func bindModule(backend runtimeBackend, m jsengine.Module) error {
	err := backend.BindModule(m)
	if err == nil {
		return nil
	}
	var ee *jsengine.EngineError
	if errors.As(err, &ee) {
		return err
	}
	return &jsengine.EngineError{
		Kind:    jsengine.ErrBind,
		Message: "QuickJS 绑定模块失败: " + err.Error(),
		Cause:   err,
	}
}

func (a *Adapter) Dispose() error {
	if !a.lc.BeginDispose() {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backend != nil {
		if err := a.backend.Dispose(); err != nil {
			a.lc.Store(jsengine.StateReady)
			return &jsengine.EngineError{
				Kind:    jsengine.ErrRuntime,
				Message: "QuickJS 后端释放失败",
				Cause:   err,
			}
		}
		a.backend = nil
	}

	a.lc.Store(jsengine.StateClosed)
	a.log.Infof("QuickJS 引擎已关闭")
	return nil
}

// ready 检查状态并在读锁下返回后端，调用方负责 RUnlock。
func (a *Adapter) ready(kind jsengine.ErrorKind) (runtimeBackend, error) {
	if err := a.lc.RequireReady(kind); err != nil {
		return nil, err
	}
	a.mu.RLock()
	if a.backend == nil {
		a.mu.RUnlock()
		return nil, &jsengine.EngineError{
			Kind:    jsengine.ErrInternal,
			Message: "QuickJS 后端不可用",
		}
	}
	return a.backend, nil
}

func (a *Adapter) Eval(code string) error {
	backend, err := a.ready(jsengine.ErrEval)
	if err != nil {
		return err
	}
	defer a.mu.RUnlock()
	if err := backend.Eval(code); err != nil {
		return &jsengine.EngineError{
			Kind:    jsengine.ErrEval,
			Message: "QuickJS Eval 执行失败: " + err.Error(),
			Cause:   err,
		}
	}
	return nil
}

// EvalWithResult 执行脚本并返回表达式结果（JSON 兼容值）。
func (a *Adapter) EvalWithResult(code string) (any, error) {
	backend, err := a.ready(jsengine.ErrEval)
	if err != nil {
		return nil, err
	}
	defer a.mu.RUnlock()
	ret, err := backend.EvalWithResult(code)
	if err != nil {
		return nil, &jsengine.EngineError{
			Kind:    jsengine.ErrEval,
			Message: "QuickJS EvalWithResult 执行失败: " + err.Error(),
			Cause:   err,
		}
	}
	return ret, nil
}

func (a *Adapter) Require(moduleID string) error {
	backend, err := a.ready(jsengine.ErrModule)
	if err != nil {
		return err
	}
	defer a.mu.RUnlock()
	if err := backend.Require(moduleID); err != nil {
		return &jsengine.EngineError{
			Kind:    jsengine.ErrModule,
			Message: "QuickJS Require 执行失败: " + err.Error(),
			Cause:   err,
		}
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
	if a.backend != nil {
		if err := bindModule(a.backend, m); err != nil {
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

// Reset 重建 Context，并按登记顺序重新绑定全部模块。
func (a *Adapter) Reset() error {
	if err := a.lc.RequireReady(jsengine.ErrRuntime); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backend == nil {
		return &jsengine.EngineError{
			Kind:    jsengine.ErrInternal,
			Message: "QuickJS 后端不可用",
		}
	}
	if err := a.backend.Reset(); err != nil {
		return &jsengine.EngineError{
			Kind:    jsengine.ErrRuntime,
			Message: "QuickJS Reset 执行失败",
			Cause:   err,
		}
	}
	if err := bindAll(a.backend, a.modules); err != nil {
		return err
	}
	a.log.Infof("QuickJS 运行时已重置")
	return nil
}
