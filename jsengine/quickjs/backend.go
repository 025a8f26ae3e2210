package quickjs

import "Scardice-jsbind/jsengine"

// runtimeBackend 定义 QuickJS 运行时后端最小能力。
type runtimeBackend interface {
	Dispose() error
	Eval(code string) error
	EvalWithResult(code string) (any, error)
	Require(moduleID string) error
	// BindModule 在当前 Context 中绑定模块，具名模块同时可被 require。
	BindModule(m jsengine.Module) error
	// Reset 重建 Context，之后由适配器重新绑定模块。
	Reset() error
}

// newRuntimeBackend 用于创建具体后端实现。
// 具体实现由带构建标签的文件提供：
// - backend_noquickjs.go: 默认降级实现
// - backend_quickjs.go: quickjs (github.com/buke/quickjs-go) CGO 实现
var newRuntimeBackend func(cfg jsengine.Config, opt Options) (runtimeBackend, error)
