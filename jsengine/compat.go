package jsengine

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/lo"
)

// APIVersion 是当前绑定层对脚本暴露的 API 版本。
var APIVersion = semver.MustParse("1.2.0")

// CompatibleAPIVersions 列出当前实现仍兼容的 API 版本。
var CompatibleAPIVersions = []*semver.Version{
	semver.MustParse("1.0.0"),
	semver.MustParse("1.1.0"),
	APIVersion,
}

// CheckModule 检查模块定义与版本约束。
func CheckModule(m Module) error {
	if m.Definition == nil {
		return &EngineError{Kind: ErrModule, Message: fmt.Sprintf("模块「%s」缺少定义", m.Name)}
	}
	if m.Requires == "" {
		return nil
	}
	vc, err := semver.NewConstraint(m.Requires)
	if err != nil {
		return &EngineError{
			Kind:    ErrModule,
			Message: fmt.Sprintf("模块「%s」的版本约束格式不正确，应满足semver版本范围语法，当前为「%s」", m.Name, m.Requires),
			Cause:   err,
		}
	}

	var verOK bool
	// 有特殊符号时只检查当前版本
	if strings.ContainsAny(m.Requires, "~*^<=>|") || strings.Contains(m.Requires, " - ") {
		verOK = vc.Check(APIVersion)
	} else {
		_, verOK = lo.Find(CompatibleAPIVersions, func(v *semver.Version) bool {
			return vc.Check(v)
		})
	}
	if !verOK {
		return &EngineError{
			Kind:    ErrModule,
			Message: fmt.Sprintf("模块「%s」要求的 API 版本为 %s，与当前版本(%s)不兼容", m.Name, m.Requires, APIVersion),
		}
	}
	return nil
}
