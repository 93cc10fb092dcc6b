package positional

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"chaincrack/pkg/contract"
)

// Options: 位置拼接没有可调项；只接受空对象，拼写错误的键在构造时报错。
type Options struct{}

type assembler struct{}

// New 创建位置拼接器。raw 为空或 {} 之外的内容返回 ErrInvalidInput。
func New(raw json.RawMessage) (contract.Reassembler, error) {
	if len(bytes.TrimSpace(raw)) > 0 {
		var o Options
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&o); err != nil {
			return nil, fmt.Errorf("%w: positional options: %w", contract.ErrInvalidInput, err)
		}
	}
	return &assembler{}, nil
}

// Reassemble 第 line 个候选 = 各 Ordinal 第 line 行按序号顺序以 sep 连接。
// 缺失或行数不足的 Ordinal 贡献 placeholder；m<=0 返回空切片。
func (a *assembler) Reassemble(n int, frags contract.Fragments, m int, sep, placeholder string) []contract.CompositeCandidate {
	if m <= 0 {
		return []contract.CompositeCandidate{}
	}
	if n < 0 {
		n = 0
	}
	out := make([]contract.CompositeCandidate, 0, m)
	fields := make([]string, n)
	for line := 0; line < m; line++ {
		missing := 0
		for o := 0; o < n; o++ {
			f := frags[contract.Ordinal(o)]
			if f == nil || line >= len(f.Lines) {
				fields[o] = placeholder
				missing++
				continue
			}
			fields[o] = f.Lines[line]
		}
		out = append(out, contract.CompositeCandidate{
			LineIndex: line,
			Value:     strings.Join(fields, sep),
			Missing:   missing,
		})
	}
	return out
}
