package jsengine

import (
	"fmt"

	"Scardice-jsbind/jsengine/definition"
)

// BindModule 把 m 绑定到 rt 上，global 是全局对象句柄。
// 匿名模块直接装饰 global 并返回它；具名模块新建对象，
// 以 m.Name 写入 global 后返回该对象。
func BindModule(rt definition.Runtime, global definition.RuntimeObject, m Module) (definition.RuntimeObject, error) {
	if err := CheckModule(m); err != nil {
		return nil, err
	}
	if m.Name == "" {
		if err := definition.Decorate(m.Definition, global, rt); err != nil {
			return nil, bindError(m, err)
		}
		return global, nil
	}
	obj, err := definition.Build(m.Definition, rt)
	if err != nil {
		return nil, bindError(m, err)
	}
	if err := rt.SetProperty(global, m.Name, obj); err != nil {
		return nil, bindError(m, &definition.RuntimeBindingError{Op: "publish module", Name: m.Name, Cause: err})
	}
	return obj, nil
}

func moduleLabel(m Module) string {
	if m.Name == "" {
		return "globalThis"
	}
	return m.Name
}

func bindError(m Module, err error) error {
	return &EngineError{
		Kind:    ErrBind,
		Message: fmt.Sprintf("模块「%s」绑定失败: %v", moduleLabel(m), err),
		Cause:   err,
	}
}
