// Package rar 打开口令保护的 RAR 容器（含多卷），基于 github.com/nwaples/rardecode。
package rar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nwaples/rardecode"

	"chaincrack/internal/archivefs"
	"chaincrack/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// MaxEntryBytes: 单条目解压上限（字节）；<=0 使用默认 64MiB。
	MaxEntryBytes int64 `json:"max_entry_bytes"`
}

// Opener 实现 RAR 容器的 ArchiveOpener。
type Opener struct {
	maxEntry int64
}

// New 从原样 JSON Options 创建 RAR Opener。
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

// Test 顺序解出全部条目并丢弃；文件校验和在条目读尽时由解码器核对。
func (o *Opener) Test(ctx context.Context, locator, password string) error {
	return o.walk(ctx, locator, password, func(string, io.Reader) error { return nil })
}

// Extract 将常规条目按基名写入 destDir。
func (o *Opener) Extract(ctx context.Context, locator, password, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}
	var out []string
	err := o.walk(ctx, locator, password, func(name string, r io.Reader) error {
		base, err := archivefs.EntryBase(name)
		if err != nil {
			return err
		}
		dest := filepath.Join(destDir, base)
		if err := archivefs.WriteFile(dest, func(w io.Writer) error { return o.copyLimited(name, w, r) }); err != nil {
			return err
		}
		out = append(out, dest)
		return nil
	})
	return out, err
}

// walk 遍历条目；visit 为 nil 返回值时仍需读尽条目以触发校验。
func (o *Opener) walk(ctx context.Context, locator, password string, visit func(name string, r io.Reader) error) error {
	rc, err := rardecode.OpenReader(locator, password)
	if err != nil {
		return fmt.Errorf("%w: %w", contract.ErrIntegrity, err)
	}
	defer rc.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := rc.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", contract.ErrIntegrity, err)
		}
		if hdr.IsDir {
			continue
		}
		if err := visit(hdr.Name, rc); err != nil {
			return err
		}
		// 读尽剩余字节（Test 路径与提前返回的 visit）
		if err := o.copyLimited(hdr.Name, io.Discard, rc); err != nil {
			return err
		}
	}
}

func (o *Opener) copyLimited(name string, w io.Writer, r io.Reader) error {
	n, err := io.Copy(w, io.LimitReader(r, o.maxEntry+1))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", contract.ErrIntegrity, name, err)
	}
	if n > o.maxEntry {
		return fmt.Errorf("%w: %s exceeds %d bytes", contract.ErrIntegrity, name, o.maxEntry)
	}
	return nil
}
