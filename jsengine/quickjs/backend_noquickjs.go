//go:build !quickjs

package quickjs

import (
	"github.com/pkg/errors"

	"Scardice-jsbind/jsengine"
)

var errUnavailableBackend = errors.New("QuickJS backend 不可用")

type unavailableBackend struct{}

func (b *unavailableBackend) Dispose() error { return nil }

func (b *unavailableBackend) Eval(_ string) error { return errUnavailableBackend }
func (b *unavailableBackend) EvalWithResult(_ string) (any, error) {
	return nil, errUnavailableBackend
}

func (b *unavailableBackend) Require(_ string) error { return errUnavailableBackend }

func (b *unavailableBackend) BindModule(_ jsengine.Module) error { return errUnavailableBackend }

func (b *unavailableBackend) Reset() error { return errUnavailableBackend }

func init() {
	// 未启用 quickjs 标签时，使用降级后端，明确返回错误。
	newRuntimeBackend = func(_ jsengine.Config, _ Options) (runtimeBackend, error) {
		return &unavailableBackend{}, errors.Wrap(errUnavailableBackend, "需要 -tags quickjs")
	}
}
