package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"chaincrack/internal/catalog"
	"chaincrack/internal/decode"
	"chaincrack/internal/diag"
	"chaincrack/internal/extract"
	"chaincrack/pkg/contract"
)

// - 阶段严格串行：破解（单次阻塞调用）→ 解包 → 解码 → 拼接 → 写出；无回流。
// - 并发只发生在解包与解码的序号维度，结果按序号下标收集，输出与完成顺序无关。
// - 单个序号的失败只让该序号缺席；只有输入缺失、引擎不可用、写出失败与取消会中止运行。

// ErrFlagNotFound: 校验模式下完整候选中没有出现期望的 flag。
var ErrFlagNotFound = errors.New("expected flag not found")

// Components 聚合运行所需的原子组件。
type Components struct {
	Cracker   contract.Cracker
	Opener    contract.ArchiveOpener
	Codec     contract.TextCodec
	Assembler contract.Reassembler
	Writer    contract.Writer
}

// Settings 运行期配置。路径均已解析为可直接使用的形式。
type Settings struct {
	HashesFile       string
	WordlistFile     string
	ContainersDir    string
	ContainerPattern string
	FragmentPrefix   string
	StagingDir       string

	LinesPerFragment int
	Separator        string
	Placeholder      string
	Concurrency      int

	// Clean: 输入预检通过后删除上次的输出与暂存目录下的 ord-* 子目录（potfile 由引擎管理，不受影响）。
	Clean       bool
	ExpectFlag  string
	FlagPattern *regexp.Regexp

	Verbose     bool
	Interactive bool
	// In: 交互暂停读取回车的来源；为 nil 时使用 os.Stdin。
	In io.Reader

	// CrackerName 仅用于终端展示。
	CrackerName string
	// Terminal 可为 nil。
	Terminal *diag.Terminal
}

// pruneOnClean 为清理时删除的工件名模式。
var pruneOnClean = []string{
	string(contract.ArtifactCracked),
	string(contract.ArtifactAssembled),
	string(contract.ArtifactReport),
	"decoded_*.txt",
}

// Run 执行完整流水线：Catalog → Cracker → Extractor → Decoder → Reassembler → Writer。
// 成功时返回报告；校验模式未命中时同时返回报告与 ErrFlagNotFound。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (*Report, error) {
	if logger == nil {
		logger = diag.Nop()
	}
	if err := sanity(comp, set); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	r := &runner{comp: comp, set: set, log: logger, term: set.Terminal}
	if set.Interactive {
		in := set.In
		if in == nil {
			in = os.Stdin
		}
		r.in = bufio.NewReader(in)
	}
	return r.run(ctx)
}

type runner struct {
	comp Components
	set  Settings
	log  *diag.Logger
	term *diag.Terminal
	in   *bufio.Reader
}

func (r *runner) run(ctx context.Context) (*Report, error) {
	// 输入预检与目录加载先于清理：中止的运行不触碰上次的工件
	for _, in := range []struct{ kind, path string }{
		{"hash catalog", r.set.HashesFile},
		{"wordlist", r.set.WordlistFile},
	} {
		if err := catalog.RequireFile(in.kind, in.path); err != nil {
			return nil, r.fail("catalog", err, nil)
		}
	}
	t := r.log.Start("catalog", "load")
	recs, err := catalog.LoadFile(r.set.HashesFile)
	if err != nil {
		return nil, r.fail("catalog", err, t.Since())
	}
	t.Finish("load", int64(len(recs)))

	if r.set.Clean {
		if err := r.clean(ctx); err != nil {
			return nil, r.fail("clean", err, nil)
		}
	}
	n := len(recs)
	r.term.RunStart(n, r.set.CrackerName, r.set.Concurrency)

	rep := newReport(recs)

	creds, err := r.crack(ctx, recs, rep)
	if err != nil {
		return nil, err
	}
	r.pause("破解完成")

	containers, err := catalog.Containers(r.set.ContainersDir, r.set.ContainerPattern, n)
	if err != nil {
		return nil, r.fail("extract", err, nil)
	}
	for i, c := range containers {
		rep.Ordinals[i].Container = c.Locator
	}
	frags, err := r.extract(ctx, containers, creds, rep)
	if err != nil {
		return nil, err
	}
	r.pause("解包完成")

	decoded, err := r.decode(ctx, frags, rep)
	if err != nil {
		return nil, err
	}
	r.pause("解码完成")

	cands, err := r.assemble(ctx, n, decoded, rep)
	if err != nil {
		return nil, err
	}

	flagErr := rep.checkFlag(r.set.ExpectFlag)
	if err := r.writeReport(ctx, rep); err != nil {
		return nil, err
	}
	r.term.Candidates(cands)
	if flagErr != nil {
		r.log.Error("pipeline", "flag", fmt.Sprintf("expected flag %q not among complete candidates", r.set.ExpectFlag), nil)
		return rep, flagErr
	}
	return rep, nil
}

// fatalCrack: 取消、引擎不可用、输入缺失与参数错误中止运行；其余破解错误降级为空结果。
func fatalCrack(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, contract.ErrEngineUnavailable) || errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrInputMissing)
}

// clean 删除上次运行的输出与暂存目录中的序号子目录；暂存目录本身及其他条目保留。
func (r *runner) clean(ctx context.Context) error {
	t := r.log.Start("clean", "prune")
	removed := 0
	if p, ok := r.comp.Writer.(contract.Pruner); ok {
		n, err := p.Prune(ctx, pruneOnClean...)
		if err != nil {
			return err
		}
		removed = n
	}
	n, err := extract.PruneStaging(r.set.StagingDir)
	if err != nil {
		return err
	}
	t.Finish("prune", int64(removed+n))
	return nil
}

// crack 单次调用引擎；返回按序号排列的口令（nil 表示无口令）。
func (r *runner) crack(ctx context.Context, recs []contract.HashRecord, rep *Report) ([]*string, error) {
	r.term.Stage("crack", 0)
	t := r.log.StartWith("crack", "invoke", map[string]string{"digests": fmt.Sprint(len(recs))})
	res, err := r.comp.Cracker.Crack(ctx, contract.CrackRequest{
		Digests:      catalog.Digests(recs),
		DigestsPath:  r.set.HashesFile,
		WordlistPath: r.set.WordlistFile,
	})
	if err != nil {
		if fatalCrack(ctx, err) {
			return nil, r.fail("crack", err, t.Since())
		}
		// 引擎异常退出或结果缓存不可读：全部序号按无口令处理
		code := diag.Classify(err)
		r.log.ErrorWithKV("crack", string(code), "engine failed, continuing without credentials", t.Since(), map[string]string{"err": err.Error()})
		diag.IncError("crack", string(code))
		res = contract.CrackResult{}
	}

	creds := make([]*string, len(recs))
	var out bytes.Buffer
	cracked := 0
	for i, rec := range recs {
		pw, ok := res.Lookup(rec.Digest)
		rep.Ordinals[i].Cracked = ok
		if !ok {
			rep.Ordinals[i].State = string(extract.StateNoCredential)
			r.log.Outcome("crack", rec.Ordinal, string(diag.CodeCredential), "not cracked", nil)
			r.term.Ordinal(rec.Ordinal, false, "not cracked", rec.Digest)
			diag.IncOp("crack", "ordinal", "absent")
			continue
		}
		cracked++
		creds[i] = &pw
		fmt.Fprintf(&out, "%s:%s\n", rec.Digest, pw)
		r.log.Outcome("crack", rec.Ordinal, "", "cracked", nil)
		r.term.Ordinal(rec.Ordinal, true, "cracked", "")
		diag.IncOp("crack", "ordinal", "success")
	}
	rep.Summary.Cracked = cracked
	t.Finish("invoke", int64(cracked))
	r.term.StageDone(fmt.Sprintf("%d/%d cracked", cracked, len(recs)))
	r.term.Echo(string(contract.ArtifactCracked), out.String())
	if err := r.write(ctx, contract.ArtifactCracked, out.Bytes()); err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *runner) extract(ctx context.Context, cs []contract.Container, creds []*string, rep *Report) ([]*contract.ExtractedFragment, error) {
	r.term.Stage("extract", len(cs))
	t := r.log.Start("extract", "containers")
	x := &extract.Extractor{Opener: r.comp.Opener, StagingDir: r.set.StagingDir, Prefix: r.set.FragmentPrefix}
	var mu sync.Mutex
	outs, err := extract.All(ctx, x, cs, creds, r.set.Concurrency, func(o extract.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		ord := &rep.Ordinals[o.Ordinal]
		ord.State = string(o.State)
		if o.Fragment != nil {
			ord.Fragment = o.Fragment.Name
		}
		if o.Err == nil {
			r.log.Outcome("extract", o.Ordinal, "", string(o.State), map[string]string{"entry": ord.Fragment})
			r.term.Ordinal(o.Ordinal, true, string(o.State), ord.Fragment)
			diag.IncOp("extract", "ordinal", "success")
			return
		}
		code := diag.Classify(o.Err)
		ord.Code, ord.Diagnostic = string(code), o.Diagnostic()
		if o.State != extract.StateNoCredential {
			// 无口令已在破解阶段报告
			r.log.Outcome("extract", o.Ordinal, string(code), string(o.State), map[string]string{"err": o.Diagnostic()})
			r.term.Ordinal(o.Ordinal, false, string(o.State), o.Diagnostic())
		}
		diag.IncOp("extract", "ordinal", "absent")
		diag.IncError("extract", string(code))
	})
	if err != nil {
		return nil, r.fail("extract", err, t.Since())
	}
	frags := make([]*contract.ExtractedFragment, len(outs))
	got := 0
	for i, o := range outs {
		frags[i] = o.Fragment
		if o.Fragment != nil {
			got++
		}
	}
	rep.Summary.Extracted = got
	t.Finish("containers", int64(got))
	r.term.StageDone(fmt.Sprintf("%d/%d extracted", got, len(cs)))
	for _, f := range frags {
		if f != nil {
			r.term.Echo(fmt.Sprintf("#%d %s", f.Ordinal.Display(), f.Name), string(f.Raw))
		}
	}
	return frags, nil
}

func (r *runner) decode(ctx context.Context, frags []*contract.ExtractedFragment, rep *Report) (contract.Fragments, error) {
	r.term.Stage("decode", len(frags))
	t := r.log.StartWith("decode", "fragments", map[string]string{"codec": r.comp.Codec.Name()})
	d := &decode.Decoder{Codec: r.comp.Codec}
	var mu sync.Mutex
	outs, err := decode.All(ctx, d, frags, r.set.Concurrency, func(o decode.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		ord := &rep.Ordinals[o.Ordinal]
		if o.Err != nil {
			code := diag.Classify(o.Err)
			ord.State, ord.Code, ord.Diagnostic = "malformed", string(code), o.Err.Error()
			r.log.Outcome("decode", o.Ordinal, string(code), "malformed", map[string]string{"err": o.Err.Error()})
			r.term.Ordinal(o.Ordinal, false, "malformed", o.Err.Error())
			diag.IncOp("decode", "ordinal", "absent")
			diag.IncError("decode", string(code))
			return
		}
		ord.State, ord.Lines = "decoded", len(o.Fragment.Lines)
		r.log.Outcome("decode", o.Ordinal, "", "decoded", map[string]string{"lines": fmt.Sprint(ord.Lines)})
		r.term.Ordinal(o.Ordinal, true, "decoded", fmt.Sprintf("%d lines", ord.Lines))
		diag.IncOp("decode", "ordinal", "success")
	})
	if err != nil {
		return nil, r.fail("decode", err, t.Since())
	}
	out := contract.Fragments{}
	for _, o := range outs {
		if o.Fragment == nil {
			continue
		}
		out[o.Ordinal] = o.Fragment
	}
	rep.Summary.Decoded = len(out)
	t.Finish("fragments", int64(len(out)))
	r.term.StageDone(fmt.Sprintf("%d/%d decoded", len(out), len(frags)))

	// 按序号顺序写出，便于对照
	for _, o := range outs {
		if o.Fragment == nil {
			continue
		}
		id := contract.DecodedArtifact(o.Ordinal)
		r.term.Echo(string(id), string(o.Plain))
		if err := r.write(ctx, id, o.Plain); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *runner) assemble(ctx context.Context, n int, frags contract.Fragments, rep *Report) ([]contract.CompositeCandidate, error) {
	t := r.log.Start("assemble", "positional")
	cands := r.comp.Assembler.Reassemble(n, frags, r.set.LinesPerFragment, r.set.Separator, r.set.Placeholder)
	var b strings.Builder
	for _, c := range cands {
		b.WriteString(c.Value)
		b.WriteByte('\n')
	}
	rep.setCandidates(cands, r.set.FlagPattern)
	t.Finish("positional", int64(len(cands)))
	if err := r.write(ctx, contract.ArtifactAssembled, []byte(b.String())); err != nil {
		return nil, err
	}
	return cands, nil
}

func (r *runner) writeReport(ctx context.Context, rep *Report) error {
	b, err := rep.JSON()
	if err != nil {
		return r.fail("report", err, nil)
	}
	return r.write(ctx, contract.ArtifactReport, b)
}

func (r *runner) write(ctx context.Context, id contract.ArtifactID, data []byte) error {
	t := r.log.StartWith("writer", "write", map[string]string{"artifact": string(id)})
	if err := r.comp.Writer.Write(ctx, id, bytes.NewReader(data)); err != nil {
		return r.fail("writer", fmt.Errorf("write %s: %w", id, err), t.Since())
	}
	t.Finish("write", int64(len(data)))
	diag.IncOp("writer", "finish", "success")
	return nil
}

// fail 记录致命错误并原样返回。
func (r *runner) fail(comp string, err error, since *time.Time) error {
	code := diag.Classify(err)
	r.log.Error(comp, string(code), err.Error(), since)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
	return err
}

// pause 在交互模式下等待回车；输入结束时不再等待。
func (r *runner) pause(stage string) {
	if r.in == nil {
		return
	}
	r.term.Notice(fmt.Sprintf("[%s] 按 Enter 继续…", stage))
	if _, err := r.in.ReadString('\n'); err != nil {
		r.in = nil
	}
}

// sanity 在运行前检查组件与设置的最小约束。
func sanity(comp Components, set Settings) error {
	switch {
	case comp.Cracker == nil:
		return fmt.Errorf("%w: nil cracker", contract.ErrInvalidInput)
	case comp.Opener == nil:
		return fmt.Errorf("%w: nil opener", contract.ErrInvalidInput)
	case comp.Codec == nil:
		return fmt.Errorf("%w: nil codec", contract.ErrInvalidInput)
	case comp.Assembler == nil:
		return fmt.Errorf("%w: nil assembler", contract.ErrInvalidInput)
	case comp.Writer == nil:
		return fmt.Errorf("%w: nil writer", contract.ErrInvalidInput)
	case set.LinesPerFragment < 0:
		return fmt.Errorf("%w: lines_per_fragment %d", contract.ErrInvalidInput, set.LinesPerFragment)
	case set.Concurrency < 1:
		return fmt.Errorf("%w: concurrency %d", contract.ErrInvalidInput, set.Concurrency)
	case strings.TrimSpace(set.StagingDir) == "":
		return fmt.Errorf("%w: staging dir not set", contract.ErrInvalidInput)
	}
	return nil
}
