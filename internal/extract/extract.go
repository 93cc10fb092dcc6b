// Package extract 对每个序号执行"校验 → 解包 → 选取片段"，失败只影响该序号。
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"chaincrack/pkg/contract"
)

// DefaultPrefix 是片段条目基名的默认前缀。
const DefaultPrefix = "encoded_"

// stagingPrefix 为序号暂存子目录的名字前缀。
const stagingPrefix = "ord-"

// State 为单个容器的处理状态。
type State string

const (
	StatePending      State = "pending"
	StateUnlocked     State = "unlocked"
	StateExtracted    State = "extracted"
	StateNoCredential State = "no_credential"
	StateLockedFailed State = "locked_failed"
	StateNoFragment   State = "no_fragment"
)

// Outcome: 单个序号的结果。Fragment 为 nil 即 Absent。
type Outcome struct {
	Ordinal  contract.Ordinal
	State    State
	Fragment *contract.ExtractedFragment
	Err      error
}

// Absent 报告该序号是否没有片段。
func (o Outcome) Absent() bool { return o.Fragment == nil }

// Diagnostic 返回单行诊断；成功时为空。
func (o Outcome) Diagnostic() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Extractor 持有解包器与暂存目录。零值不可用。
type Extractor struct {
	Opener     contract.ArchiveOpener
	StagingDir string
	Prefix     string
}

// StagingPath 返回序号专属的暂存目录，保证并行解包互不覆盖。
func (x *Extractor) StagingPath(o contract.Ordinal) string {
	return filepath.Join(x.StagingDir, fmt.Sprintf("%s%04d", stagingPrefix, int(o)))
}

// PruneStaging 删除 dir 下的序号暂存子目录（ord-*），其余条目不动；dir 不存在时为空操作。
func PruneStaging(dir string) (int, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, e := range ents {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Extract 处理一个容器。cred 为 nil 时不做任何 I/O。
// 永不返回错误；失败记录在 Outcome.Err（取消时为 ctx.Err()）。
func (x *Extractor) Extract(ctx context.Context, c contract.Container, cred *string) Outcome {
	out := Outcome{Ordinal: c.Ordinal, State: StatePending}
	if cred == nil {
		out.State, out.Err = StateNoCredential, contract.ErrNoCredential
		return out
	}
	if err := x.Opener.Test(ctx, c.Locator, *cred); err != nil {
		out.State, out.Err = StateLockedFailed, integrity(ctx, err)
		return out
	}
	out.State = StateUnlocked

	dest := x.StagingPath(c.Ordinal)
	if err := os.RemoveAll(dest); err != nil {
		out.Err = err
		return out
	}
	files, err := x.Opener.Extract(ctx, c.Locator, *cred, dest)
	if err != nil {
		out.State, out.Err = StateLockedFailed, integrity(ctx, err)
		return out
	}
	prefix := x.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	// 多个候选时取名字最小者，与解包器的列举顺序无关
	files = slices.Clone(files)
	slices.Sort(files)
	for _, f := range files {
		name := filepath.Base(f)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		st, err := os.Lstat(f)
		if err != nil || !st.Mode().IsRegular() {
			continue
		}
		raw, err := os.ReadFile(f)
		if err != nil {
			out.Err = err
			return out
		}
		out.State = StateExtracted
		out.Fragment = &contract.ExtractedFragment{Ordinal: c.Ordinal, Name: name, Raw: raw}
		return out
	}
	out.State = StateNoFragment
	out.Err = fmt.Errorf("%w: no entry with prefix %q in %s", contract.ErrNoFragment, prefix, filepath.Base(c.Locator))
	return out
}

// integrity 保证失败带有 ErrIntegrity 标记；取消原样返回。
func integrity(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if errors.Is(err, contract.ErrIntegrity) || errors.Is(err, contract.ErrEngineUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", contract.ErrIntegrity, err)
}

// All 以至多 limit 个并发处理全部容器；结果按序号下标排列，与完成顺序无关。
// creds[i] 对应 containers[i]；done（可为 nil）在每个序号完成时调用，须并发安全。
// 仅在取消或解包工具不可用时返回 error。
func All(ctx context.Context, x *Extractor, containers []contract.Container, creds []*string, limit int, done func(Outcome)) ([]Outcome, error) {
	if len(creds) != len(containers) {
		return nil, fmt.Errorf("%w: %d containers, %d credentials", contract.ErrInvalidInput, len(containers), len(creds))
	}
	if limit < 1 {
		limit = 1
	}
	out := make([]Outcome, len(containers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range containers {
		if gctx.Err() != nil {
			break
		}
		i, c := i, c
		g.Go(func() error {
			o := x.Extract(gctx, c, creds[i])
			out[i] = o
			if errors.Is(o.Err, contract.ErrEngineUnavailable) {
				return o.Err
			}
			if cerr := gctx.Err(); cerr != nil {
				return cerr
			}
			if done != nil {
				done(o)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}
