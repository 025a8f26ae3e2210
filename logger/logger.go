// Package logger 持有进程级的 zap 日志实例。
package logger

import (
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	current.Store(zap.NewNop().Sugar())
}

// New 按模式构建日志实例。未知模式按 production 处理。
// 开发模式下标准错误为终端时启用彩色级别。
func New(mode string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if mode == ModeDevelopment {
		cfg = zap.NewDevelopmentConfig()
		if isatty.IsTerminal(os.Stderr.Fd()) {
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Init 构建并替换进程日志。
func Init(mode string) error {
	l, err := New(mode)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set 替换进程日志，nil 恢复为 Nop。
func Set(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	current.Store(l)
}

// M 返回当前进程日志，Init 前为 Nop。
func M() *zap.SugaredLogger {
	return current.Load()
}
