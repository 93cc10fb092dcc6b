package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chaincrack/pkg/contract"
)

// 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	if err := w.WriteLine([]byte("first line that is very long")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.WriteLine([]byte("second")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// 单条超过上限的事件不拆分，也不在空文件上触发轮转
func TestRotatingFileOversizeLine(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 4)
	if err := w.WriteLine([]byte("0123456789")); err != nil {
		t.Fatalf("write: %v", err)
	}
	defer w.Close()
	b, err := os.ReadFile(filepath.Join(dir, currentLogName))
	if err != nil || string(b) != "0123456789\n" {
		t.Fatalf("unexpected current file %q %v", b, err)
	}
}

func TestRotatingFileRotateNoOpen(t *testing.T) {
	w := NewRotatingFile(t.TempDir(), 0)
	if w.maxBytes != 10*1024*1024 {
		t.Fatalf("default maxBytes: %d", w.maxBytes)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("sync before open: %v", err)
	}
	if err := w.rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	_ = w.Close()
}

// 指标：默认 no-op，Tally 计数
func TestMetrics(t *testing.T) {
	IncOp("comp", "stage", "success")
	IncError("comp", "code")
	ObserveDuration("comp", "stage", 1)

	tally := NewTally()
	old := SetRecorder(tally)
	defer SetRecorder(old)
	IncOp("extract", "ordinal", "absent")
	IncOp("extract", "ordinal", "absent")
	IncError("extract", string(CodeIntegrity))
	if tally.Op("extract", "ordinal", "absent") != 2 || tally.Errors("extract", "integrity") != 1 {
		t.Fatalf("unexpected tally %v", tally.Keys())
	}
	if SetRecorder(nil) != tally {
		t.Fatalf("SetRecorder should return previous recorder")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), CodeCancel},
		{contract.ErrInputMissing, CodeInput},
		{contract.ErrCatalogEmpty, CodeInput},
		{fmt.Errorf("%w: x", contract.ErrEngineUnavailable), CodeEngine},
		{contract.ErrEngineFailed, CodeEngine},
		{contract.ErrNoCredential, CodeCredential},
		{fmt.Errorf("%w: %w", contract.ErrIntegrity, errors.New("crc")), CodeIntegrity},
		{contract.ErrNoFragment, CodeFragment},
		{contract.ErrMalformed, CodeDecode},
		{contract.ErrPathInvalid, CodeInvariant},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{errors.New("other"), CodeUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func decodeEvents(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(b), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

// Logger 事件字段
func TestLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "corr-1", "debug")
	timer := l.Start("crack", "begin")
	timer.Finish("done", 3)
	l.Outcome("extract", 2, "", "extracted", map[string]string{"entry": "encoded_3.txt"})
	l.Outcome("extract", 0, string(CodeIntegrity), "locked", nil)
	start := time.Now().Add(-5 * time.Millisecond)
	l.ErrorWithKV("crack", string(CodeEngine), "engine failed", &start, map[string]string{"exit": "255"})
	l.Debugf("pipeline", "debug note", nil)

	evs := decodeEvents(t, buf.Bytes())
	if len(evs) != 6 {
		t.Fatalf("want 6 events, got %d: %s", len(evs), buf.String())
	}
	for _, e := range evs {
		if e["corr_id"] != "corr-1" || e["ts"] == nil {
			t.Fatalf("missing corr_id/ts: %v", e)
		}
	}
	if evs[0]["stage"] != "start" || evs[1]["stage"] != "finish" || evs[1]["count"] != float64(3) {
		t.Fatalf("unexpected start/finish: %v %v", evs[0], evs[1])
	}
	if evs[2]["ordinal"] != float64(3) || evs[2]["level"] != "info" {
		t.Fatalf("ordinal should be 1-based: %v", evs[2])
	}
	if evs[3]["level"] != "warn" || evs[3]["code"] != "integrity" || evs[3]["ordinal"] != float64(1) {
		t.Fatalf("unexpected outcome warn: %v", evs[3])
	}
	if evs[4]["level"] != "error" || evs[4]["dur_ms"] == nil {
		t.Fatalf("unexpected error event: %v", evs[4])
	}
	if _, ok := evs[0]["ordinal"]; ok {
		t.Fatalf("run-level event must not carry ordinal: %v", evs[0])
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "", "warn")
	l.Start("x", "filtered").Finish("filtered", 0)
	l.Debugf("x", "filtered", nil)
	l.Error("x", "code", "kept", nil)
	evs := decodeEvents(t, buf.Bytes())
	if len(evs) != 1 || evs[0]["msg"] != "kept" {
		t.Fatalf("unexpected events %v", evs)
	}
	if _, ok := evs[0]["corr_id"]; ok {
		t.Fatalf("empty corr id should be omitted")
	}
}

func TestLevels(t *testing.T) {
	if Warn.String() != "warn" || Level(12345).String() != "info" {
		t.Fatalf("level strings")
	}
	if parseLevel(" DEBUG ") != Debug || parseLevel("nope") != Info {
		t.Fatalf("parseLevel")
	}
}

func TestLoggerToRotatingFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(NewCorrID(), "info", dir)
	l.Start("comp", "msg").Finish("ok", 1)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, currentLogName))
	if err != nil {
		t.Fatalf("log file not found: %v", err)
	}
	if len(decodeEvents(t, b)) != 2 {
		t.Fatalf("unexpected log content %q", b)
	}
}

func TestNopAndNilTimer(t *testing.T) {
	l := Nop()
	l.Start("x", "y").Finish("z", 0)
	l.Outcome("x", 0, "c", "m", nil)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	var tn *Timer
	tn.Finish("x", 0)
	if tn.Since() != nil {
		t.Fatalf("nil timer Since")
	}
	(&Timer{}).Finish("x", 0)
	var ln *Logger
	ln.Outcome("x", 0, "", "", nil)
}

// 终端（非 TTY）逐序号打印
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	if term.isTTY {
		t.Fatalf("expect non-tty")
	}
	term.SetVerbose(true)
	term.RunStart(3, "hashcat", 2)
	term.Stage("extract", 3)
	term.Ordinal(0, true, "extracted", "encoded_1.txt")
	term.Ordinal(1, false, "locked_failed", "integrity\ncheck failed")
	term.StageDone("2/3 absent")
	term.Echo("decoded_1.txt", "L1\nL2\n")
	term.Candidates([]contract.CompositeCandidate{{LineIndex: 0, Value: "abc"}, {LineIndex: 1, Value: "a?c", Missing: 1}})
	term.RunFinish(true, 1500*time.Millisecond)

	out := sb.String()
	if strings.Contains(out, "\r") {
		t.Fatalf("non-tty should not contain carriage returns: %q", out)
	}
	for _, want := range []string{
		"[run] 序号=3 | cracker=hashcat | 并发=2",
		"[extract] …",
		"  [ok] #1 extracted | encoded_1.txt",
		"  [fail] #2 locked_failed | integrity check failed",
		"[extract] 2/3 absent",
		"---- decoded_1.txt\nL1\nL2\n",
		"* 1: abc",
		"  2: a?c",
		"[ok] 完成 | 失败序号事件 1 | 总用时 1.5s",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

// TTY：进度条期间失败明细积压，阶段结束后打印
func TestTerminalTTYDefersFailures(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.Stage("decode", 2)
	term.Ordinal(0, false, "malformed", "bad base64")
	if strings.Contains(sb.String(), "[fail] #1") {
		t.Fatalf("failure should be deferred while bar is active")
	}
	term.Ordinal(1, true, "decoded", "")
	term.StageDone("")
	if !strings.Contains(sb.String(), "[fail] #1 malformed | bad base64") {
		t.Fatalf("deferred failure not flushed: %q", sb.String())
	}
	if term.bar != nil {
		t.Fatalf("bar should be finished")
	}
}

type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

func TestTerminalDisableOnWriteError(t *testing.T) {
	term := NewTerminal(&flakyWriter{fail: true}, true)
	term.RunStart(1, "x", 1)
	if term.enabled {
		t.Fatalf("terminal should be disabled after write error")
	}
	term.Stage("a", 1)
	term.Ordinal(0, true, "", "")
	term.StageDone("x")
	term.RunFinish(true, 0)
}

func TestTerminalCIAndNil(t *testing.T) {
	t.Setenv("CI", "true")
	if NewTerminal(os.Stderr, true).isTTY {
		t.Fatalf("CI env should force non-tty")
	}
	var tn *Terminal
	tn.SetVerbose(true)
	tn.RunStart(1, "x", 1)
	tn.Stage("a", 1)
	tn.Ordinal(0, true, "", "")
	tn.StageDone("")
	tn.Echo("a", "b")
	tn.Candidates(nil)
	tn.RunFinish(true, 0)
}

func TestHelpers(t *testing.T) {
	if safe("a\nb\rc") != "a b c" {
		t.Fatalf("safe replace failed")
	}
	if formatDur(0) != "0ms" || formatDur(1500*time.Millisecond) != "1.5s" {
		t.Fatalf("formatDur")
	}
	if truncate("abcdef", 4) != "abc…" || truncate("ab", 4) != "ab" {
		t.Fatalf("truncate")
	}
}
