// Package toolexec 运行外部分析工具（hashcat、unzip 等），捕获退出码与输出。
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Command: 一次外部工具调用。
type Command struct {
	Binary    string
	Arguments []string
	Dir       string
}

// String 返回便于日志的命令行（不做 shell 转义）。
func (c Command) String() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Arguments, " "))
}

// Result: 调用结果。ExitCode 为 -1 表示进程未正常退出。
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Diagnostic 返回截断后的 stderr（为空时退回 stdout），用于单行日志。
func (r *Result) Diagnostic() string {
	if r == nil {
		return ""
	}
	s := strings.TrimSpace(string(r.Stderr))
	if s == "" {
		s = strings.TrimSpace(string(r.Stdout))
	}
	s = strings.ReplaceAll(s, "\n", " | ")
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}

// ErrNotFound: 可执行文件不在 PATH 或路径不可执行。
var ErrNotFound = errors.New("executable not found")

// Runner 运行外部命令；测试可替换为桩实现。
type Runner interface {
	LookPath(binary string) (string, error)
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// OS 基于 os/exec 的 Runner。
type OS struct{}

func (OS) LookPath(binary string) (string, error) {
	p, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, binary, err)
	}
	return p, nil
}

// Run 执行命令。非零退出码不视为错误（由调用方按工具语义解释），
// 仅在进程无法启动或被取消时返回 error。
func (OS) Run(ctx context.Context, cmd Command) (*Result, error) {
	c := exec.CommandContext(ctx, cmd.Binary, cmd.Arguments...)
	c.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := c.Run()
	res := &Result{ExitCode: -1, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return res, cerr
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return res, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return res, fmt.Errorf("%w: %s", ErrNotFound, cmd.Binary)
		}
		return res, err
	}
	return res, nil
}

var _ Runner = OS{}
