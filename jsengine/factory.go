package jsengine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Constructor 是引擎构造器函数签名。
type Constructor func() Engine

var (
	registryMu sync.RWMutex
	registry   = map[EngineName]Constructor{}
)

// Register 注册引擎构造器。同名重复注册时后者覆盖前者。
func Register(name EngineName, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// Registered 返回已注册的引擎名称（按字典序）。
func Registered() []EngineName {
	registryMu.RLock()
	names := lo.Keys(registry)
	registryMu.RUnlock()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// New 根据配置创建引擎实例。
func New(cfg Config) (Engine, error) {
	registryMu.RLock()
	ctor, ok := registry[cfg.Name]
	registryMu.RUnlock()
	if !ok || ctor == nil {
		return nil, &EngineError{
			Kind:    ErrInit,
			Message: fmt.Sprintf("不支持的引擎类型: %s", cfg.Name),
		}
	}
	return ctor(), nil
}

// Open 创建引擎、登记模块并完成初始化。任一步失败都会释放已创建的实例。
func Open(ctx context.Context, cfg Config, modules ...Module) (Engine, error) {
	engine, err := New(cfg)
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		if err := engine.RegisterModule(m); err != nil {
			_ = engine.Dispose()
			return nil, err
		}
	}
	if err := engine.Init(ctx, cfg); err != nil {
		_ = engine.Dispose()
		return nil, err
	}
	return engine, nil
}
