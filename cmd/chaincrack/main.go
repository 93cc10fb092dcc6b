package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "chaincrack/internal/config"
	"chaincrack/internal/diag"
	"chaincrack/internal/pipeline"
)

var pipelineRun = pipeline.Run

// version 由构建时 -ldflags "-X main.version=..." 注入。
var version = "dev"

// 退出码
const (
	exitOK      = 0
	exitRuntime = 1
	exitNoFlag  = 2
	exitConfig  = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// cliFlags: CLI 覆盖项（最小集）。0/空值表示未覆盖。
type cliFlags struct {
	config      string
	workDir     string
	concurrency int
	lines       int
	expect      string
	// separator 仅在显式给出时覆盖（允许空串）
	separator   *string
	status      bool
	verbose     bool
	interactive bool
}

func run(args []string) int {
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := exitOK
	root := newRootCmd(&code)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		// 仅旗标/参数解析错误会走到这里
		fprintf(os.Stderr, "%v\n", err)
		if code == exitOK {
			code = exitConfig
		}
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	var f cliFlags
	var sep string
	root := &cobra.Command{
		Use:           "chaincrack",
		Short:         "破解摘要 → 解包容器 → 解码片段 → 按位拼接候选",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("separator") {
				f.separator = &sep
			}
			*code = runPipeline(cmd.Context(), f)
			return nil
		},
	}
	fl := root.Flags()
	fl.StringVar(&f.config, "config", "", "配置文件路径（JSON 或 YAML）；缺省读取 ./config.json 或 ./config.yaml（若存在）")
	fl.StringVar(&f.workDir, "work-dir", "", "工作目录（相对路径的基准；覆盖配置）")
	fl.IntVar(&f.concurrency, "concurrency", 0, "解包/解码并发度（覆盖配置）")
	fl.IntVar(&f.lines, "lines", 0, "每个片段的行数 M（覆盖配置）")
	fl.StringVar(&f.expect, "expect", "", "校验模式：完整候选须包含该 flag，否则退出码 2")
	fl.StringVar(&sep, "separator", "-", "候选字段连接符（可为空串；覆盖配置）")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 显示进度条；非 TTY 逐行输出")
	fl.BoolVar(&f.verbose, "verbose", false, "回显破解结果与片段内容")
	fl.BoolVar(&f.interactive, "interactive", false, "各阶段之间等待回车")

	root.AddCommand(newInitCmd(code), newVersionCmd())
	return root
}

func newInitCmd(code *int) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [dir]",
		Short: "在指定目录生成默认 config.json 与 .env 模板（已存在则不覆盖）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			*code = initConfig(dir)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chaincrack %s\n", version)
		},
	}
}

func initConfig(dir string) int {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
		return exitConfig
	}
	if err := writeConfig(filepath.Join(dir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
		fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
		return exitConfig
	}
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return exitOK
}

// loadConfig 按 Defaults < 文件/ENV JSON < ENV 覆盖 < CLI 合并。
func loadConfig(f cliFlags) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()

	path := f.config
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if path == "" {
		for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	switch raw := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); {
	case raw != "":
		base, err := cfgpkg.LoadJSON("", []byte(raw))
		if err != nil {
			return cfg, fmt.Errorf("%sCONFIG_JSON: %w", cfgpkg.EnvPrefix, err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	case path != "":
		base, err := cfgpkg.LoadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	overCLI := cfgpkg.Config{
		WorkDir:          f.workDir,
		Concurrency:      f.concurrency,
		LinesPerFragment: f.lines,
		ExpectFlag:       f.expect,
		Separator:        f.separator,
		Verbose:          f.verbose,
		Interactive:      f.interactive,
	}
	return cfgpkg.Merge(cfg, overCLI), nil
}

func runPipeline(ctx context.Context, f cliFlags) int {
	start := time.Now()
	corrID := diag.NewCorrID()
	// 先占位默认，稍后在合并配置后重建 logger 以使用最终 level 与目录
	logger := diag.NewLogger(corrID, "info", diag.DefaultLogDir)
	defer func() { _ = logger.Close() }()

	cfg, err := loadConfig(f)
	if err != nil {
		fprintf(os.Stderr, "配置解析失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), err.Error(), &start)
		return exitConfig
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		// 提示打印有效配置，便于诊断
		_ = dumpConfig(os.Stderr, cfg)
		logger.Error("config", string(diag.Classify(err)), err.Error(), &start)
		return exitConfig
	}

	logDir := diag.DefaultLogDir
	if strings.TrimSpace(cfg.Logging.Dir) != "" {
		logDir = cfg.Logging.Dir
	}
	_ = logger.Close()
	logger = diag.NewLogger(corrID, cfg.Logging.Level, cfg.Resolve(logDir))

	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), err.Error(), &start)
		return exitConfig
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), err.Error(), &start)
		return exitConfig
	}

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(os.Stderr, f.status)
	term.SetVerbose(cfg.Verbose)
	set.Terminal = term
	set.In = os.Stdin

	logger.Debugf("config", "effective", map[string]string{
		"work_dir":    cfg.WorkDir,
		"concurrency": fmt.Sprint(cfg.Concurrency),
		"lines":       fmt.Sprint(cfg.LinesPerFragment),
		"cracker":     set.CrackerName,
		"opener":      cfg.Components.Opener,
		"codec":       comp.Codec.Name(),
		"expect":      fmt.Sprint(cfg.ExpectFlag != ""),
	})

	t := logger.Start("pipeline", "run")
	rep, err := pipelineRun(ctx, comp, set, logger)
	switch {
	case errors.Is(err, pipeline.ErrFlagNotFound):
		fprintf(os.Stderr, "未找到期望的 flag: %s\n", cfg.ExpectFlag)
		term.RunFinish(false, time.Since(start))
		return exitNoFlag
	case err != nil:
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, err.Error(), &start)
		diag.IncOp("pipeline", "error", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		term.RunFinish(false, time.Since(start))
		return exitRuntime
	}
	count := int64(0)
	if rep != nil {
		count = int64(rep.Summary.Winning)
	}
	t.Finish("run", count)
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())
	term.RunFinish(true, time.Since(start))
	return exitOK
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "有效配置:\n%s\n", b)
	return err
}

// writeConfig 写出配置；path 为 "-" 时写到 stdout。已存在的文件不覆盖。
func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；
// - 跳过空行与以 # 开头的行；支持可选的前缀 "export "；
// - 仅按首个 '=' 分割；成对的单/双引号被去除，双引号内处理 \n/\t/\\/\" 转义；
// - 不覆盖已存在的环境变量。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		key, val, ok := parseDotEnvLine(s.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

func parseDotEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, val, ok := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", false
	}
	val = strings.TrimSpace(val)
	if len(val) >= 2 && (val[0] == '\'' || val[0] == '"') && val[len(val)-1] == val[0] {
		quoted := val[0]
		val = val[1 : len(val)-1]
		if quoted == '"' {
			val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\"`, `"`, `\\`, `\`).Replace(val)
		}
	}
	return key, val, true
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	p := cfgpkg.EnvPrefix
	var b strings.Builder
	b.WriteString("# chaincrack .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件 > 默认值\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源（二选一）\n")
	for _, k := range []string{"CONFIG_FILE", "CONFIG_JSON"} {
		b.WriteString(p + k + "=\n")
	}
	b.WriteString("\n# 输入与输出\n")
	for _, k := range []string{"WORK_DIR", "HASHES_FILE", "WORDLIST_FILE", "CONTAINERS_DIR", "CONTAINER_PATTERN", "FRAGMENT_PREFIX", "STAGING_DIR", "OUTPUT_DIR"} {
		b.WriteString(p + k + "=\n")
	}
	b.WriteString("\n# 拼接与运行参数\n")
	for _, k := range []string{"LINES_PER_FRAGMENT", "SEPARATOR", "PLACEHOLDER", "CONCURRENCY", "CLEAN", "EXPECT_FLAG", "FLAG_PATTERN", "VERBOSE", "INTERACTIVE", "LOG_LEVEL", "LOG_DIR"} {
		b.WriteString(p + k + "=\n")
	}
	b.WriteString("\n# 组件选择与选项（JSON）\n")
	for _, c := range []string{"CRACKER", "OPENER", "CODEC", "ASSEMBLER", "WRITER"} {
		b.WriteString(p + "COMPONENTS_" + c + "=\n")
		b.WriteString(p + "OPTIONS_" + c + "_JSON=\n")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}

// preflightCheckOutputDir: 当 Writer 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// - 目录已存在：尝试创建并删除临时文件；
// - 目录不存在：沿父目录向上找到第一个已存在的目录并做同样检查。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	name := cfg.Components.Writer
	if strings.TrimSpace(name) == "" {
		name = cfgpkg.Defaults().Components.Writer
	}
	if name != "fs" {
		return nil
	}
	var wopts struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &wopts)
	}
	dir := strings.TrimSpace(wopts.OutputDir)
	if dir == "" {
		dir = cfg.OutputDir
	}
	dir = cfg.Resolve(dir)
	for {
		st, err := os.Stat(dir)
		if err == nil {
			if !st.IsDir() {
				return fmt.Errorf("路径存在但不是目录: %s", dir)
			}
			f, err := os.CreateTemp(dir, ".wcheck-*")
			if err != nil {
				return err
			}
			name := f.Name()
			_ = f.Close()
			return os.Remove(name)
		}
		if !os.IsNotExist(err) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return err
		}
		dir = parent
	}
}
