// Package filesystem 把流水线工件写入输出目录：默认同目录临时文件 + 原子替换，
// 并支持在新一轮运行前清理上次遗留的工件。
package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"chaincrack/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// OutputDir: 输出根目录（必需）。
	OutputDir string `json:"output_dir"`
	// Atomic: 临时文件 + rename；未提供时为 true。
	Atomic *bool `json:"atomic,omitempty"`
	// PermFile/PermDir: 为 0 时使用 0644/0755。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲；<=0 使用 64KiB。
	BufSize int `json:"buf_size,omitempty"`
}

// Store 实现 contract.Writer 与 contract.Pruner。
type Store struct {
	root    string
	atomic  bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// New 创建文件系统 Writer；OutputDir 为空返回 ErrInvalidInput。
func New(opts *Options) (*Store, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("%w: writer output_dir is required", contract.ErrInvalidInput)
	}
	s := &Store{root: opts.OutputDir, atomic: true, permF: 0o644, permD: 0o755, bufSize: 64 * 1024}
	if opts.Atomic != nil {
		s.atomic = *opts.Atomic
	}
	if opts.PermFile != 0 {
		s.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		s.permD = opts.PermDir
	}
	if opts.BufSize > 0 {
		s.bufSize = opts.BufSize
	}
	return s, nil
}

var (
	_ contract.Writer = (*Store)(nil)
	_ contract.Pruner = (*Store)(nil)
)

// Root 返回输出根目录。
func (s *Store) Root() string { return s.root }

// Write 将 r 的全部字节写入 id 对应的文件。
func (s *Store) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), s.permD); err != nil {
		return err
	}
	if s.atomic {
		return s.writeAtomic(ctx, dest, r)
	}
	return s.writeInPlace(ctx, dest, r)
}

// Prune 删除根目录下基名匹配任一 path.Match 模式的常规文件，返回删除个数。
// 根目录不存在时视为无事可做。
func (s *Store) Prune(ctx context.Context, patterns ...string) (int, error) {
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return 0, fmt.Errorf("%w: prune pattern %q", contract.ErrInvalidInput, p)
		}
	}
	ents, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, e := range ents {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if !e.Type().IsRegular() || !matchAny(patterns, e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, e.Name())); err != nil && !os.IsNotExist(err) {
			return n, err
		}
		n++
	}
	return n, nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// resolve 将工件名映射到根目录下的路径；拒绝绝对路径、卷名与父级逃逸。
func (s *Store) resolve(id contract.ArtifactID) (string, error) {
	rel := string(id.Clean())
	switch {
	case rel == "." || rel == "" || rel == "/":
		return "", contract.ErrPathInvalid
	case path.IsAbs(rel) || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "":
		return "", contract.ErrPathInvalid
	case rel == ".." || strings.HasPrefix(rel, "../"):
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

func (s *Store) writeInPlace(ctx context.Context, dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, s.permF)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriterSize(f, s.bufSize)
	if _, err := io.Copy(bw, ctxReader{ctx: ctx, r: r}); err != nil {
		return err
	}
	return bw.Flush()
}

func (s *Store) writeAtomic(ctx context.Context, dest string, r io.Reader) (err error) {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	if err = tmp.Chmod(s.permF); err != nil {
		return err
	}
	bw := bufio.NewWriterSize(tmp, s.bufSize)
	if _, err = io.Copy(bw, ctxReader{ctx: ctx, r: r}); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = replaceFile(tmpPath, dest); err != nil {
		return err
	}
	_ = syncDir(dir)
	return nil
}

// ctxReader 在每次 Read 前检查取消。
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
