package handler

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolveArchiveRoot 相对路径按归档目录解析；结果必须位于归档目录之内
func resolveArchiveRoot(base, requested string) (string, error) {
	if requested == "" {
		return base, nil
	}
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("解析归档目录失败: %w", err)
	}
	target := requested
	if !filepath.IsAbs(target) {
		target = filepath.Join(baseAbs, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(baseAbs, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("root 必须位于归档目录 %s 之内", base)
	}
	return target, nil
}
