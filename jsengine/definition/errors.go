package definition

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotReadable 表示读取了没有 getter 的访问器属性。
	ErrNotReadable = errors.New("property is not readable")
	// ErrNotWritable 表示写入了没有 setter 的访问器属性。
	ErrNotWritable = errors.New("property is not writable")
)

// InvalidDefinitionError 在构造或聚合阶段发现定义片段不合法时返回。
// 它会中止整个 Aggregate 调用，使配置错误的模块在加载时就失败。
type InvalidDefinitionError struct {
	Kind   Kind
	Name   string
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Name == "" {
		return fmt.Sprintf("invalid %s definition: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s definition %q: %s", e.Kind, e.Name, e.Reason)
}

// RuntimeBindingError 表示运行时拒绝了一次写入（对象已冻结、引擎正在关闭等）。
// 绑定是一次性操作，不做重试。
type RuntimeBindingError struct {
	Op    string
	Name  string
	Cause error
}

func (e *RuntimeBindingError) Error() string {
	if e == nil {
		return ""
	}
	msg := "runtime binding failed: " + e.Op
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RuntimeBindingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NotConfigurableError 由 Runtime.DefineAccessorProperty 返回，
// 表示目标键上已有不可重新配置的属性。
type NotConfigurableError struct {
	Name string
}

func (e *NotConfigurableError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("property %q is not configurable", e.Name)
}

// AccessError 由缺失一侧的访问器 thunk 返回。
type AccessError struct {
	Name string
	Err  error
}

func (e *AccessError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Err)
}

func (e *AccessError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
