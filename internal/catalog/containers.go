package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"chaincrack/pkg/contract"
)

// DefaultPattern 为容器命名约定（以 1 基序号格式化）。
const DefaultPattern = "part%d.zip"

// Containers 为 [0,n) 每个 Ordinal 生成一个容器定位。
// 对应关系完全由位置决定；此处不检查文件是否存在，缺失容器在解包阶段表现为完整性失败。
func Containers(dir, pattern string, n int) ([]contract.Container, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: container count %d", contract.ErrInvalidInput, n)
	}
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	out := make([]contract.Container, n)
	for i := 0; i < n; i++ {
		o := contract.Ordinal(i)
		out[i] = contract.Container{
			Ordinal: o,
			Locator: filepath.Join(dir, fmt.Sprintf(pattern, o.Display())),
		}
	}
	return out, nil
}

// ValidatePattern 要求模式恰好消费一个整数且随序号变化（允许 %02d 等宽度写法）。
func ValidatePattern(pattern string) error {
	if a, b := fmt.Sprintf(pattern, 1), fmt.Sprintf(pattern, 2); a == b || strings.Contains(a, "%!") {
		return fmt.Errorf("%w: container pattern %q must format one ordinal", contract.ErrInvalidInput, pattern)
	}
	return nil
}
