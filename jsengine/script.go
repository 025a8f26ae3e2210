package jsengine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/pkg/errors"
)

// ResolveScriptPath 按以下顺序定位脚本：绝对路径、相对当前目录、相对 moduleDir。
func ResolveScriptPath(moduleDir, moduleID string) (string, error) {
	target := strings.TrimSpace(moduleID)
	if target == "" {
		return "", errors.New("module id 为空")
	}
	if filepath.IsAbs(target) {
		return target, nil
	}
	if isFile(target) {
		return filepath.Abs(target)
	}
	if moduleDir != "" {
		joined := filepath.Join(moduleDir, target)
		if isFile(joined) {
			return filepath.Abs(joined)
		}
	}
	return "", errors.Errorf("无法定位脚本文件: %s", moduleID)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// LoadScript 读取脚本源码，.ts 文件先转译为 JS。
func LoadScript(path string) ([]byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "读取脚本失败")
	}
	if !strings.EqualFold(filepath.Ext(path), ".ts") {
		return src, nil
	}
	return TranspileTS(src, path)
}

// TranspileTS 用 esbuild 去除类型标注。
func TranspileTS(src []byte, sourcefile string) ([]byte, error) {
	compiled := esbuild.Transform(string(src), esbuild.TransformOptions{
		Loader:     esbuild.LoaderTS,
		Sourcefile: sourcefile,
	})
	if len(compiled.Errors) > 0 {
		var msg strings.Builder
		for i, e := range compiled.Errors {
			if i > 0 {
				msg.WriteString("; ")
			}
			if e.Location != nil {
				fmt.Fprintf(&msg, "%s:%d:%d: ", e.Location.File, e.Location.Line, e.Location.Column)
			}
			msg.WriteString(e.Text)
		}
		return nil, errors.Errorf("TypeScript 编译失败: %s", msg.String())
	}
	return compiled.Code, nil
}
