// Package archivefs 为各 ArchiveOpener 提供一致的落盘规则：
// 条目只按基名写入目标目录，拒绝逃逸名称，失败时不留半截文件。
package archivefs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"chaincrack/pkg/contract"
)

// DefaultMaxEntryBytes 单条目默认解压上限。
const DefaultMaxEntryBytes int64 = 64 * 1024 * 1024

// EntryBase 取容器内条目名的基名（兼容反斜杠分隔）。
func EntryBase(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == ".." || base == "/" || base == "" {
		return "", fmt.Errorf("%w: entry name %q", contract.ErrPathInvalid, name)
	}
	return base, nil
}

// WriteFile 覆盖写 dest；fill 出错时删除已写部分。
func WriteFile(dest string, fill func(w io.Writer) error) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if err := fill(bw); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return err
	}
	return f.Close()
}
