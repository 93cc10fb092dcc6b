package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"chaincrack/pkg/contract"
)

// Terminal: 面向操作者的进度提示（非日志）。
// - TTY: 每个阶段一根进度条，失败明细在阶段结束后统一打印；
// - 非 TTY: 每个序号完成即打印一行；
// - 并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool
	verbose bool

	stage    string
	bar      *pb.ProgressBar
	pending  []string
	failures int
	runStart time.Time

	mu sync.Mutex
}

const barTemplate = `{{string . "stage"}} {{counters . }} {{bar . "[" "=" ">" " " "]"}} {{etime . }}`

// NewTerminal 构造终端提示器。enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled}
	// CI 环境视为非 TTY
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			t.isTTY = term.IsTerminal(int(f.Fd()))
		}
	}
	return t
}

// SetVerbose 打开内容回显（破解结果、编码与解码片段）。
func (t *Terminal) SetVerbose(v bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.verbose = v
	t.mu.Unlock()
}

// RunStart: 记录运行上下文。
func (t *Terminal) RunStart(n int, cracker string, concurrency int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.runStart = time.Now()
	t.failures = 0
	t.println(fmt.Sprintf("[run] 序号=%d | cracker=%s | 并发=%d", n, safe(cracker), concurrency))
}

// Stage 开始一个阶段；total>0 且为 TTY 时显示进度条。
func (t *Terminal) Stage(name string, total int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.finishBar()
	t.stage = name
	if t.isTTY && total > 0 {
		t.bar = pb.New(total).SetWriter(t.w).SetTemplateString(barTemplate).Set("stage", "["+name+"]")
		t.bar.Start()
		return
	}
	t.println(fmt.Sprintf("[%s] …", name))
}

// Ordinal 报告一个序号在当前阶段的结果。
func (t *Terminal) Ordinal(o contract.Ordinal, ok bool, state, detail string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	tag := "ok"
	if !ok {
		tag = "fail"
		t.failures++
	}
	line := fmt.Sprintf("  [%s] #%d %s", tag, o.Display(), state)
	if d := truncate(safe(detail), 120); d != "" {
		line += " | " + d
	}
	if t.bar != nil {
		t.bar.Increment()
		if !ok {
			t.pending = append(t.pending, line)
		}
		return
	}
	t.println(line)
}

// StageDone 结束当前阶段：收起进度条并打印积压的失败明细。
func (t *Terminal) StageDone(summary string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.finishBar()
	for _, l := range t.pending {
		t.println(l)
	}
	t.pending = nil
	if summary != "" {
		t.println(fmt.Sprintf("[%s] %s", t.stage, safe(summary)))
	}
}

// Echo 在 verbose 下原样打印一段内容（带标题）。
func (t *Terminal) Echo(title, body string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || !t.verbose || t.bar != nil {
		return
	}
	t.println("---- " + safe(title))
	t.println(strings.TrimRight(body, "\n"))
}

// Candidates 打印候选行；完整候选以 * 标记。
func (t *Terminal) Candidates(cs []contract.CompositeCandidate) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	for _, c := range cs {
		mark := " "
		if c.Winning() {
			mark = "*"
		}
		t.println(fmt.Sprintf("%s %d: %s", mark, c.LineIndex+1, c.Value))
	}
}

// Notice 打印一行提示（例如交互暂停）。
func (t *Terminal) Notice(msg string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.finishBar()
	t.println(msg)
}

// RunFinish: 结束总览。
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.finishBar()
	tag := "ok"
	if !ok {
		tag = "fail"
	}
	t.println(fmt.Sprintf("[%s] 完成 | 失败序号事件 %d | 总用时 %s", tag, t.failures, formatDur(dur)))
}

func (t *Terminal) finishBar() {
	if t.bar == nil {
		return
	}
	t.bar.Finish()
	t.bar = nil
}

func (t *Terminal) println(s string) {
	if !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		// 写失败即禁用
		t.enabled = false
	}
}

func truncate(s string, max int) string {
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(rs[:max-1]) + "…"
}

func safe(s string) string {
	// 避免换行等控制字符污染终端
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(d.Milliseconds())/1000.0)
}
