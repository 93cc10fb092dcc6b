package contract

import "strings"

// Ordinal: 记录在哈希目录中的位置（0..n-1，跳过空行后计数）。
// 哈希、容器与片段三者仅通过 Ordinal 对应，不做内容校验。
type Ordinal int

// Display 返回面向人的 1 基序号（容器命名约定 part<k>.zip 使用）。
func (o Ordinal) Display() int { return int(o) + 1 }

// HashRecord: 目录中的单条参考摘要。加载后只读。
type HashRecord struct {
	Ordinal Ordinal
	Digest  string
}

// CrackResult: digest → 明文。缺失键即“未破解”。
// 同一 digest 多次写入以最后一次为准。
type CrackResult map[string]string

// Lookup 按摘要查找明文；十六进制摘要大小写不敏感。
func (r CrackResult) Lookup(digest string) (string, bool) {
	if r == nil {
		return "", false
	}
	if pw, ok := r[digest]; ok {
		return pw, true
	}
	lower := strings.ToLower(digest)
	for k, v := range r {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return "", false
}

// Container: 与同 Ordinal 哈希对应的加密容器。
// Locator 为文件路径（或实现自定义句柄）。
type Container struct {
	Ordinal Ordinal
	Locator string
}

// ExtractedFragment: 解包成功后的编码载荷。
// Name 为容器内条目名，仅用于日志。
type ExtractedFragment struct {
	Ordinal Ordinal
	Name    string
	Raw     []byte
}

// DecodedFragment: 解码后的片段，Lines 保持原始行序。
// 空字符串行表示“存在但为空”，与缺失（nil 片段）不同。
type DecodedFragment struct {
	Ordinal Ordinal
	Lines   []string
}

// Fragments: Ordinal → 解码片段；键缺失或值为 nil 均表示缺失。
type Fragments map[Ordinal]*DecodedFragment

// CompositeCandidate: 同一行号跨全部 Ordinal 拼接出的候选串。
type CompositeCandidate struct {
	LineIndex int
	Value     string
	// Missing 为贡献占位符的 Ordinal 数。
	Missing int
}

// Winning 报告候选是否由全部 Ordinal 的真实行组成（无占位）。
func (c CompositeCandidate) Winning() bool { return c.Missing == 0 }
