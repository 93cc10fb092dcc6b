// Package zip 以进程内方式打开口令保护的 ZIP 容器（ZipCrypto 与 WinZip AES）。
package zip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	yzip "github.com/yeka/zip"

	"chaincrack/internal/archivefs"
	"chaincrack/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// MaxEntryBytes: 单条目解压上限（字节）；<=0 使用默认 64MiB。
	MaxEntryBytes int64 `json:"max_entry_bytes"`
}

// Opener 基于 github.com/yeka/zip 实现 ArchiveOpener。
type Opener struct {
	maxEntry int64
}

// New 从原样 JSON Options 创建 ZIP Opener。
func New(raw json.RawMessage) (contract.ArchiveOpener, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
	}
	if o.MaxEntryBytes <= 0 {
		o.MaxEntryBytes = archivefs.DefaultMaxEntryBytes
	}
	return &Opener{maxEntry: o.MaxEntryBytes}, nil
}

var _ contract.ArchiveOpener = (*Opener)(nil)

// Test 逐条目解密并读到 EOF：ZipCrypto 的 CRC 与 AES 的 HMAC 均在 EOF 时校验。
// 不写盘。
func (z *Opener) Test(ctx context.Context, locator, password string) error {
	r, err := yzip.OpenReader(locator)
	if err != nil {
		return fmt.Errorf("%w: %w", contract.ErrIntegrity, err)
	}
	defer r.Close()
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if err := z.copyEntry(f, password, io.Discard); err != nil {
			return err
		}
	}
	return nil
}

// Extract 将全部常规条目按基名写入 destDir，返回写出的路径。
func (z *Opener) Extract(ctx context.Context, locator, password, destDir string) ([]string, error) {
	r, err := yzip.OpenReader(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contract.ErrIntegrity, err)
	}
	defer r.Close()
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}
	var out []string
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := archivefs.EntryBase(f.Name)
		if err != nil {
			return out, err
		}
		dest := filepath.Join(destDir, name)
		if err := archivefs.WriteFile(dest, func(w io.Writer) error {
			return z.copyEntry(f, password, w)
		}); err != nil {
			return out, err
		}
		out = append(out, dest)
	}
	return out, nil
}

func (z *Opener) copyEntry(f *yzip.File, password string, w io.Writer) error {
	if f.IsEncrypted() {
		f.SetPassword(password)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", contract.ErrIntegrity, path.Base(f.Name), err)
	}
	defer rc.Close()
	n, err := io.Copy(w, io.LimitReader(rc, z.maxEntry+1))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", contract.ErrIntegrity, path.Base(f.Name), err)
	}
	if n > z.maxEntry {
		return fmt.Errorf("%w: %s exceeds %d bytes", contract.ErrIntegrity, path.Base(f.Name), z.maxEntry)
	}
	return nil
}
