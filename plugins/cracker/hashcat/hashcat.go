// Package hashcat 以单次批量调用驱动 hashcat 的直接字典攻击（-a 0），
// 并从持久化的 potfile 读取结果。
package hashcat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"chaincrack/internal/toolexec"
	"chaincrack/pkg/contract"
)

// 攻击模式：仅支持直接字典。
const AttackModeDictionary = 0

// hashcat 退出码。
const (
	exitCracked   = 0
	exitExhausted = 1
)

// Options: hashcat 调用参数。
type Options struct {
	// Binary: 可执行文件名或路径；默认 "hashcat"。
	Binary string `json:"binary"`
	// HashMode: -m 取值（0=MD5，100=SHA1，1400=SHA256 …）；默认 0。
	HashMode int `json:"hash_mode"`
	// PotfilePath: 结果缓存；为空时放在哈希目录同级 hashcat.potfile。
	PotfilePath string `json:"potfile_path"`
	// Force: 追加 --force（虚拟机/无 GPU 环境常需）；默认 true。
	Force *bool `json:"force,omitempty"`
	// ExtraArgs: 附加参数，原样追加（例如 --opencl-device-types=1）。
	ExtraArgs []string `json:"extra_args"`
}

// Cracker 实现 contract.Cracker。
type Cracker struct {
	binary  string
	mode    int
	potfile string
	force   bool
	extra   []string
	runner  toolexec.Runner
}

// New 从原样 JSON Options 创建 hashcat Cracker。
func New(raw json.RawMessage) (contract.Cracker, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
	}
	return NewWithRunner(&o, toolexec.OS{})
}

// NewWithRunner 使用指定 Runner 创建（测试注入桩）。
func NewWithRunner(o *Options, r toolexec.Runner) (*Cracker, error) {
	if o == nil {
		o = &Options{}
	}
	if o.HashMode < 0 {
		return nil, fmt.Errorf("%w: hash_mode %d", contract.ErrInvalidInput, o.HashMode)
	}
	bin := strings.TrimSpace(o.Binary)
	if bin == "" {
		bin = "hashcat"
	}
	force := true
	if o.Force != nil {
		force = *o.Force
	}
	return &Cracker{
		binary:  bin,
		mode:    o.HashMode,
		potfile: strings.TrimSpace(o.PotfilePath),
		force:   force,
		extra:   append([]string(nil), o.ExtraArgs...),
		runner:  r,
	}, nil
}

var _ contract.Cracker = (*Cracker)(nil)

// PotfilePath 返回本次请求实际使用的 potfile 路径。
func (c *Cracker) PotfilePath(req contract.CrackRequest) string {
	if c.potfile != "" {
		return c.potfile
	}
	return filepath.Join(filepath.Dir(req.DigestsPath), "hashcat.potfile")
}

// Args 构造一次批量调用的参数列表。
func (c *Cracker) Args(req contract.CrackRequest) []string {
	args := []string{
		"-m", strconv.Itoa(c.mode),
		"-a", strconv.Itoa(AttackModeDictionary),
		req.DigestsPath, req.WordlistPath,
		"--potfile-path", c.PotfilePath(req),
		"--quiet",
	}
	if c.force {
		args = append(args, "--force")
	}
	return append(args, c.extra...)
}

// Crack 调用一次 hashcat 后解析 potfile。
// 已全部存在于 potfile 的摘要不会被重新计算，但仍会出现在结果中（幂等）。
func (c *Cracker) Crack(ctx context.Context, req contract.CrackRequest) (contract.CrackResult, error) {
	if strings.TrimSpace(req.DigestsPath) == "" || strings.TrimSpace(req.WordlistPath) == "" {
		return nil, fmt.Errorf("%w: hashcat needs digest and wordlist files", contract.ErrInvalidInput)
	}
	bin, err := c.runner.LookPath(c.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contract.ErrEngineUnavailable, err)
	}
	res, err := c.runner.Run(ctx, toolexec.Command{Binary: bin, Arguments: c.Args(req)})
	if err != nil {
		if errors.Is(err, toolexec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", contract.ErrEngineUnavailable, err)
		}
		return nil, err
	}
	pot, perr := ReadPotfile(c.PotfilePath(req))
	switch {
	case perr == nil:
	case errors.Is(perr, os.ErrNotExist):
		// 无任何命中时 hashcat 不创建 potfile
		if res.ExitCode != exitCracked && res.ExitCode != exitExhausted {
			return contract.CrackResult{}, fmt.Errorf("%w: exit %d: %s", contract.ErrEngineFailed, res.ExitCode, res.Diagnostic())
		}
		pot = contract.CrackResult{}
	default:
		return contract.CrackResult{}, fmt.Errorf("%w: read potfile: %w", contract.ErrEngineFailed, perr)
	}
	return Select(pot, req.Digests), nil
}
