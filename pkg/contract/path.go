package contract

import (
	"path"
	"strings"
)

// Clean 返回跨平台稳定的工件标识：统一正斜杠并清理 "."、".." 与重复分隔符。
// 不做绝对化，越界检查由 Writer 负责。
func (id ArtifactID) Clean() ArtifactID {
	return ArtifactID(path.Clean(strings.ReplaceAll(string(id), "\\", "/")))
}
