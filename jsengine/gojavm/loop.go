package gojavm

import (
	"runtime/debug"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"Scardice-jsbind/jsengine"
)

// vmState 是一次运行时构建的全部状态，Reset 时整体替换。
type vmState struct {
	loop *eventloop.EventLoop
	reg  *require.Registry
	req  *require.RequireModule
	rt   *Runtime
}

// run 在事件循环上执行 fn 并等待其结束，panic 转换为错误。
func (s *vmState) run(fn func(vm *goja.Runtime) error) (err error) {
	done := make(chan struct{})
	s.loop.RunOnLoop(func(vm *goja.Runtime) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("JS 执行异常: %v\n%s", r, debug.Stack())
			}
			close(done)
		}()
		err = fn(vm)
	})
	<-done
	return err
}

func (s *vmState) stop() {
	s.loop.Stop()
}

// bind 必须在事件循环上调用。具名模块同时注册为原生模块，供 require 使用。
func (s *vmState) bind(m jsengine.Module) error {
	obj, err := jsengine.BindModule(s.rt, s.rt.Global(), m)
	if err != nil {
		return err
	}
	if m.Name == "" {
		return nil
	}
	exported, ok := obj.(*goja.Object)
	if !ok {
		return errors.Errorf("unexpected module object %T", obj)
	}
	s.reg.RegisterNativeModule(m.Name, func(_ *goja.Runtime, module *goja.Object) {
		_ = module.Set("exports", exported)
	})
	return nil
}

type printer struct {
	log *zap.SugaredLogger
}

func (p *printer) Log(s string)  { p.log.Info(s) }
func (p *printer) Info(s string) { p.log.Info(s) }
func (p *printer) Warn(s string) { p.log.Warn(s) }

// Error 是脚本侧 console.error，不打印 Go 运行栈。
func (p *printer) Error(s string) { p.log.Warn("[JS] " + s) }

func (p *printer) Debug(s string) { p.log.Debug(s) }
