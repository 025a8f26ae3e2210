package jsengine

import "sync/atomic"

// State 表示引擎生命周期状态。
type State int32

const (
	StateNew State = iota
	StateIniting
	StateReady
	StateDisposing
	StateClosed
)

var stateNames = [...]string{
	StateNew:       "new",
	StateIniting:   "initing",
	StateReady:     "ready",
	StateDisposing: "disposing",
	StateClosed:    "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Lifecycle 提供线程安全的引擎状态管理。
// Init/Dispose 并发时由它约束状态切换。
type Lifecycle struct {
	state atomic.Int32
}

// NewLifecycle 创建生命周期管理器，初始状态为 StateNew。
func NewLifecycle() *Lifecycle {
	l := &Lifecycle{}
	l.state.Store(int32(StateNew))
	return l
}

func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// CompareAndSwap 尝试原子切换状态。
func (l *Lifecycle) CompareAndSwap(oldState, newState State) bool {
	return l.state.CompareAndSwap(int32(oldState), int32(newState))
}

// Store 强制设置状态。
func (l *Lifecycle) Store(s State) {
	l.state.Store(int32(s))
}

// BeginInit 从 StateNew 进入 StateIniting，失败时返回 ErrInit。
func (l *Lifecycle) BeginInit() error {
	if l.CompareAndSwap(StateNew, StateIniting) {
		return nil
	}
	return &EngineError{Kind: ErrInit, Message: "引擎已初始化或已关闭: " + l.State().String()}
}

// BeginDispose 进入 StateDisposing。已关闭或正在关闭时返回 false。
func (l *Lifecycle) BeginDispose() bool {
	for {
		cur := l.State()
		if cur == StateClosed || cur == StateDisposing {
			return false
		}
		if l.CompareAndSwap(cur, StateDisposing) {
			return true
		}
	}
}

// RequireReady 在状态不是 StateReady 时返回 kind 类别的错误。
func (l *Lifecycle) RequireReady(kind ErrorKind) error {
	if s := l.State(); s != StateReady {
		return &EngineError{Kind: kind, Message: "引擎未初始化完成: " + s.String()}
	}
	return nil
}
