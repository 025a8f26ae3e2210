package quickjs

import "Scardice-jsbind/jsengine"

// Options 定义 QuickJS 运行时专用参数。
type Options struct {
	// MemoryLimitBytes 运行时内存上限（字节），0 表示沿用 Config。
	MemoryLimitBytes int64
}

// resolve 以 Config 补全未设置的字段。
func (o Options) resolve(cfg jsengine.Config) Options {
	if o.MemoryLimitBytes == 0 {
		o.MemoryLimitBytes = cfg.MemoryLimitBytes
	}
	return o
}
