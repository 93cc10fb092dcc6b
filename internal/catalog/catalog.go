// Package catalog 加载哈希目录并按相同 Ordinal 枚举加密容器。
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"chaincrack/pkg/contract"
)

// Load 逐行解析摘要：去首尾空白（含 CR），跳过空行；Ordinal 为跳过空行后的序号。
// 不校验摘要格式：无法验证的摘要只是永远不会被破解。
func Load(r io.Reader) ([]contract.HashRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var recs []contract.HashRecord
	for sc.Scan() {
		d := strings.TrimSpace(sc.Text())
		if d == "" {
			continue
		}
		recs = append(recs, contract.HashRecord{Ordinal: contract.Ordinal(len(recs)), Digest: d})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("catalog scan: %w", err)
	}
	if len(recs) == 0 {
		return nil, contract.ErrCatalogEmpty
	}
	return recs, nil
}

// LoadFile 打开并解析目录文件；文件缺失为致命错误。
func LoadFile(path string) ([]contract.HashRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: hashes %s", contract.ErrInputMissing, path)
		}
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Digests 按 Ordinal 顺序返回摘要列表。
func Digests(recs []contract.HashRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Digest
	}
	return out
}

// RequireFile 确认输入文件存在且为常规文件。
func RequireFile(kind, path string) error {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s %s", contract.ErrInputMissing, kind, path)
		}
		return err
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%w: %s %s is not a regular file", contract.ErrInputMissing, kind, path)
	}
	return nil
}
