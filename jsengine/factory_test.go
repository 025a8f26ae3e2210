package jsengine_test

import (
	"context"
	"errors"
	"testing"

	"Scardice-jsbind/jsengine"
	"Scardice-jsbind/jsengine/definition"
	_ "Scardice-jsbind/jsengine/gojavm"
	_ "Scardice-jsbind/jsengine/quickjs"
)

func TestNewFactoryGoja(t *testing.T) {
	engine, err := jsengine.New(jsengine.Config{Name: jsengine.EngineGoja})
	if err != nil {
		t.Fatalf("创建 goja 引擎失败: %v", err)
	}
	if engine == nil {
		t.Fatal("创建 goja 引擎返回 nil")
	}
	if engine.Name() != jsengine.EngineGoja {
		t.Fatalf("引擎类型错误: got=%s want=%s", engine.Name(), jsengine.EngineGoja)
	}
}

func TestNewFactoryQuickJS(t *testing.T) {
	engine, err := jsengine.New(jsengine.Config{Name: jsengine.EngineQuickJS})
	if err != nil {
		t.Fatalf("创建 QuickJS 引擎失败: %v", err)
	}
	if engine.Name() != jsengine.EngineQuickJS {
		t.Fatalf("引擎类型错误: got=%s want=%s", engine.Name(), jsengine.EngineQuickJS)
	}
}

func TestNewFactoryUnsupportedEngine(t *testing.T) {
	engine, err := jsengine.New(jsengine.Config{Name: "v8"})
	if err == nil {
		t.Fatal("不支持的引擎类型应返回错误")
	}
	if engine != nil {
		t.Fatal("不支持的引擎类型不应返回实例")
	}

	ee, ok := err.(*jsengine.EngineError)
	if !ok {
		t.Fatalf("错误类型不正确: %T", err)
	}
	if ee.Kind != jsengine.ErrInit {
		t.Fatalf("错误分类不正确: got=%s want=%s", ee.Kind, jsengine.ErrInit)
	}
}

func TestRegistered(t *testing.T) {
	names := jsengine.Registered()
	if len(names) < 2 || names[0] != jsengine.EngineGoja || names[1] != jsengine.EngineQuickJS {
		t.Fatalf("已注册引擎错误: %v", names)
	}
}

func TestOpenFailsOnBadModule(t *testing.T) {
	bad := jsengine.Module{
		Name:       "m",
		Definition: definition.MustAggregate(),
		Requires:   "not a version",
	}
	_, err := jsengine.Open(context.Background(), jsengine.Config{Name: jsengine.EngineGoja}, bad)
	var ee *jsengine.EngineError
	if !errors.As(err, &ee) || ee.Kind != jsengine.ErrModule {
		t.Fatalf("非法模块应返回 ErrModule: %v", err)
	}
}
