package diag

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chaincrack/pkg/contract"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func (l Level) zap() zapcore.Level {
	switch l {
	case Debug:
		return zapcore.DebugLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// DefaultLogDir 为未配置 logging.dir 时的日志目录。
const DefaultLogDir = "logs"

// NewCorrID 生成一次运行的关联 ID。
func NewCorrID() string { return uuid.NewString() }

// Logger 为结构化日志器：每个事件一行 JSON（zap 编码），写入轮转文件。
// 事件字段：comp/stage/code/dur_ms/count/ordinal/kv 与 corr_id。
type Logger struct {
	corrID string
	level  Level
	z      *zap.Logger
	sink   *RotatingFile
}

// NewLogger 写入 dir（为空时 logs/），10MiB 轮转。
func NewLogger(corrID, level, dir string) *Logger {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultLogDir
	}
	sink := NewRotatingFile(dir, 10*1024*1024)
	l := newLogger(corrID, parseLevel(level), sink)
	l.sink = sink
	return l
}

// NewLoggerTo 写入任意 io.Writer（测试与 stderr 回退）。
func NewLoggerTo(w io.Writer, corrID, level string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return newLogger(corrID, parseLevel(level), zapcore.AddSync(w))
}

// Nop 丢弃全部事件。
func Nop() *Logger { return &Logger{level: Error + 1, z: zap.NewNop()} }

func newLogger(corrID string, lv Level, ws zapcore.WriteSyncer) *Logger {
	enc := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     utcRFC3339,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(ws), lv.zap())
	z := zap.New(core, zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(os.Stderr))))
	if corrID != "" {
		z = z.With(zap.String("corr_id", corrID))
	}
	return &Logger{corrID: corrID, level: lv, z: z}
}

func utcRFC3339(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339))
}

// CorrID 返回关联 ID。
func (l *Logger) CorrID() string { return l.corrID }

// Event 为标准事件结构。Ordinal < 0 表示与单个序号无关。
type Event struct {
	Comp    string
	Stage   string // start|finish|error|ordinal
	Code    string
	DurMS   int64
	Count   int64
	Ordinal contract.Ordinal
	Msg     string
	KV      map[string]string
}

func (l *Logger) log(lv Level, ev Event) {
	if l == nil || l.z == nil || lv < l.level {
		return
	}
	fields := make([]zap.Field, 0, 7)
	fields = append(fields, zap.String("comp", ev.Comp), zap.String("stage", ev.Stage))
	if ev.Code != "" {
		fields = append(fields, zap.String("code", ev.Code))
	}
	if ev.DurMS != 0 {
		fields = append(fields, zap.Int64("dur_ms", ev.DurMS))
	}
	if ev.Count != 0 {
		fields = append(fields, zap.Int64("count", ev.Count))
	}
	if ev.Ordinal >= 0 {
		fields = append(fields, zap.Int("ordinal", ev.Ordinal.Display()))
	}
	if len(ev.KV) > 0 {
		fields = append(fields, zap.Any("kv", ev.KV))
	}
	switch lv {
	case Debug:
		l.z.Debug(ev.Msg, fields...)
	case Warn:
		l.z.Warn(ev.Msg, fields...)
	case Error:
		l.z.Error(ev.Msg, fields...)
	default:
		l.z.Info(ev.Msg, fields...)
	}
}

const noOrdinal contract.Ordinal = -1

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, nil)
}

// StartWith 记录带键值的 start。
func (l *Logger) StartWith(comp, msg string, kv map[string]string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Ordinal: noOrdinal, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// Outcome 记录单个序号的处理结果；code 为空时记 info，否则记 warn。
func (l *Logger) Outcome(comp string, o contract.Ordinal, code, msg string, kv map[string]string) {
	lv := Info
	if code != "" {
		lv = Warn
	}
	l.log(lv, Event{Comp: comp, Stage: "ordinal", Code: code, Ordinal: o, Msg: msg, KV: kv})
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, nil)
}

// ErrorWithKV 支持附带键值对（例如引擎退出码、stderr 片段）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Ordinal: noOrdinal, Msg: msg, KV: kv})
}

// Debugf 输出调试事件（仅在 level=debug 时生效）。
func (l *Logger) Debugf(comp, msg string, kv map[string]string) {
	l.log(Debug, Event{Comp: comp, Stage: "debug", Ordinal: noOrdinal, Msg: msg, KV: kv})
}

// Close 刷出缓冲并关闭文件句柄。
func (l *Logger) Close() error {
	if l == nil || l.z == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l    *Logger
	comp string
	t0   time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	d := time.Since(t.t0)
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: d.Milliseconds(), Count: count, Ordinal: noOrdinal, Msg: msg})
	ObserveDuration(t.comp, "finish", d.Milliseconds())
}

// Since 返回计时起点（供 Error 计算耗时）。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}
