// Package unzip 通过外部 unzip(1) 打开 ZIP 容器，适用于进程内实现不支持的压缩方法。
package unzip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"chaincrack/internal/toolexec"
	"chaincrack/pkg/contract"
)

// unzip 退出码：0 成功，1 仅警告（数据已写出）。其余（82 口令错误、9 非 ZIP 等）均为失败。
const (
	exitOK      = 0
	exitWarning = 1
)

// Options: 外部工具位置。
type Options struct {
	// Binary: 默认 "unzip"。
	Binary string `json:"binary"`
}

type Opener struct {
	binary string
	runner toolexec.Runner
}

func New(raw json.RawMessage) (contract.ArchiveOpener, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
	}
	return NewWithRunner(&o, toolexec.OS{}), nil
}

// NewWithRunner 使用指定 Runner 创建（测试注入桩）。
func NewWithRunner(o *Options, r toolexec.Runner) *Opener {
	bin := "unzip"
	if o != nil && strings.TrimSpace(o.Binary) != "" {
		bin = strings.TrimSpace(o.Binary)
	}
	return &Opener{binary: bin, runner: r}
}

var _ contract.ArchiveOpener = (*Opener)(nil)

// Test 运行 unzip -t（解密并校验 CRC，不写盘）。
func (u *Opener) Test(ctx context.Context, locator, password string) error {
	res, err := u.run(ctx, "-tqq", "-P", password, locator)
	if err != nil {
		return err
	}
	if res.ExitCode != exitOK {
		return fmt.Errorf("%w: unzip -t exit %d: %s", contract.ErrIntegrity, res.ExitCode, res.Diagnostic())
	}
	return nil
}

// Extract 以 -j 丢弃目录结构写入 destDir，返回 destDir 中的常规文件。
func (u *Opener) Extract(ctx context.Context, locator, password, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}
	res, err := u.run(ctx, "-o", "-qq", "-j", "-P", password, locator, "-d", destDir)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != exitOK && res.ExitCode != exitWarning {
		return nil, fmt.Errorf("%w: unzip exit %d: %s", contract.ErrIntegrity, res.ExitCode, res.Diagnostic())
	}
	ents, err := os.ReadDir(destDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.Type().IsRegular() {
			out = append(out, filepath.Join(destDir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (u *Opener) run(ctx context.Context, args ...string) (*toolexec.Result, error) {
	bin, err := u.runner.LookPath(u.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contract.ErrEngineUnavailable, err)
	}
	res, err := u.runner.Run(ctx, toolexec.Command{Binary: bin, Arguments: args})
	if err != nil {
		if errors.Is(err, toolexec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", contract.ErrEngineUnavailable, err)
		}
		return nil, err
	}
	return res, nil
}
