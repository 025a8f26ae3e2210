package jsengine

import (
	"context"

	"Scardice-jsbind/jsengine/definition"
)

// EngineName 标识 JS 引擎实现类型。
type EngineName string

const (
	EngineQuickJS EngineName = "quickjs"
	EngineGoja    EngineName = "goja"
)

// Module 是宿主模块交给引擎的绑定单元。
// Name 为空时把定义装饰到全局对象上；否则新建对象，
// 以全局变量 Name 发布，并可通过 require(Name) 取得。
type Module struct {
	Name       string
	Definition *definition.Object
	// Requires 是对引擎 API 版本的 semver 约束，可为空。
	Requires string
}

// ErrorKind 定义脚本引擎层统一的错误类别。
type ErrorKind string

const (
	ErrInit     ErrorKind = "init"
	ErrEval     ErrorKind = "eval"
	ErrModule   ErrorKind = "module"
	ErrRuntime  ErrorKind = "runtime"
	ErrInternal ErrorKind = "internal"
	// ErrBind 表示模块绑定失败（定义非法或运行时拒绝写入）。
	ErrBind ErrorKind = "bind"
)

// EngineError 是引擎适配层返回的统一错误结构。
type EngineError struct {
	Kind    ErrorKind
	Message string
	Stack   string
	Cause   error
}

func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Engine 是 JS 运行时统一抽象接口。
// - 生命周期管理
// - 脚本/模块执行
// - 宿主模块绑定
// - 重置（重建运行时后按注册顺序重新绑定全部模块）
type Engine interface {
	Name() EngineName
	Init(ctx context.Context, cfg Config) error
	Dispose() error

	// Eval 执行脚本文本。
	Eval(code string) error
	// EvalWithResult 执行脚本并返回表达式结果（导出为 Go 值）。
	EvalWithResult(code string) (any, error)
	// Require 按模块标识加载脚本文件，.ts 文件先经 esbuild 转译。
	Require(moduleID string) error

	// RegisterModule 登记宿主模块。Init 之前登记的模块在 Init 时绑定，
	// 之后登记的立即绑定；绑定失败返回 ErrBind。
	RegisterModule(m Module) error
	Reset() error
}
