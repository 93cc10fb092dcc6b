package diag

import (
	"sort"
	"sync"
)

// 最小指标钩子，默认 no-op。名称：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}

// Recorder 接收指标；实现须并发安全。
type Recorder interface {
	IncOp(comp, stage, result string)
	IncError(comp, code string)
	ObserveDuration(comp, stage string, durMS int64)
}

type nopRecorder struct{}

func (nopRecorder) IncOp(string, string, string)          {}
func (nopRecorder) IncError(string, string)               {}
func (nopRecorder) ObserveDuration(string, string, int64) {}

var (
	recMu sync.RWMutex
	rec   Recorder = nopRecorder{}
)

// SetRecorder 替换全局 Recorder；nil 恢复 no-op。返回原 Recorder。
func SetRecorder(r Recorder) Recorder {
	recMu.Lock()
	defer recMu.Unlock()
	old := rec
	if r == nil {
		r = nopRecorder{}
	}
	rec = r
	return old
}

func current() Recorder {
	recMu.RLock()
	defer recMu.RUnlock()
	return rec
}

// IncOp 累加操作计数（result=success|error|absent）。
func IncOp(comp, stage, result string) { current().IncOp(comp, stage, result) }

// IncError 按分类累加错误计数。
func IncError(comp, code string) { current().IncError(comp, code) }

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	current().ObserveDuration(comp, stage, durMS)
}

// Tally 为内存计数 Recorder（只计数，不保存耗时分布）。
type Tally struct {
	mu     sync.Mutex
	ops    map[string]int64
	errors map[string]int64
}

func NewTally() *Tally {
	return &Tally{ops: map[string]int64{}, errors: map[string]int64{}}
}

func (t *Tally) IncOp(comp, stage, result string) {
	t.mu.Lock()
	t.ops[comp+"/"+stage+"/"+result]++
	t.mu.Unlock()
}

func (t *Tally) IncError(comp, code string) {
	t.mu.Lock()
	t.errors[comp+"/"+code]++
	t.mu.Unlock()
}

func (t *Tally) ObserveDuration(string, string, int64) {}

// Op 返回 comp/stage/result 的计数。
func (t *Tally) Op(comp, stage, result string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ops[comp+"/"+stage+"/"+result]
}

// Errors 返回 comp/code 的计数。
func (t *Tally) Errors(comp, code string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errors[comp+"/"+code]
}

// Keys 返回已记录的操作键（排序）。
func (t *Tally) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.ops))
	for k := range t.ops {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
