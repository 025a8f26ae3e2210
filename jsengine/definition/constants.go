package definition

import "github.com/samber/lo"

// MergeConstants 从左到右合并常量快照，同名键以后出现的为准。
// 尚未求值的 ConstantsFunc 在此处求值。
func MergeConstants(bags ...*Constants) map[string]any {
	maps := make([]map[string]any, 0, len(bags))
	for _, bag := range bags {
		if bag == nil {
			continue
		}
		maps = append(maps, bag.evaluate().snapshot)
	}
	return lo.Assign(maps...)
}
