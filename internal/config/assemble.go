package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"chaincrack/internal/catalog"
	"chaincrack/internal/pipeline"
	"chaincrack/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.HashesFile) == "" {
		return errors.New("config: hashes_file not set")
	}
	if strings.TrimSpace(cfg.WordlistFile) == "" {
		return errors.New("config: wordlist_file not set")
	}
	if strings.TrimSpace(cfg.StagingDir) == "" {
		return errors.New("config: staging_dir not set")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	if cfg.LinesPerFragment < 1 {
		return errors.New("config: lines_per_fragment must be >= 1")
	}
	if cfg.ContainerPattern != "" {
		if err := catalog.ValidatePattern(cfg.ContainerPattern); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if cfg.FlagPattern != "" {
		if _, err := regexp.Compile(cfg.FlagPattern); err != nil {
			return fmt.Errorf("config: flag_pattern: %w", err)
		}
	}
	if err := checkStaging(cfg); err != nil {
		return err
	}
	d := Defaults().Components
	checks := []struct {
		kind, name string
		known      []string
	}{
		{"cracker", effName(cfg.Components.Cracker, d.Cracker), registry.Names(registry.Cracker)},
		{"opener", effName(cfg.Components.Opener, d.Opener), registry.Names(registry.Opener)},
		{"codec", effName(cfg.Components.Codec, d.Codec), registry.Names(registry.Codec)},
		{"assembler", effName(cfg.Components.Assembler, d.Assembler), registry.Names(registry.Assembler)},
		{"writer", effName(cfg.Components.Writer, d.Writer), registry.Names(registry.Writer)},
	}
	for _, c := range checks {
		if !slices.Contains(c.known, c.name) {
			return fmt.Errorf("config: %s %q not registered (known: %s)", c.kind, c.name, strings.Join(c.known, ", "))
		}
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry （工厂）层进行；此处只传 raw JSON。
// 相对路径相对 WorkDir 解析；writer 未指定 output_dir 时注入 cfg.OutputDir。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults()
	cn := effName(cfg.Components.Cracker, d.Components.Cracker)
	on := effName(cfg.Components.Opener, d.Components.Opener)
	dn := effName(cfg.Components.Codec, d.Components.Codec)
	an := effName(cfg.Components.Assembler, d.Components.Assembler)
	wn := effName(cfg.Components.Writer, d.Components.Writer)

	cr, err := registry.Cracker[cn](cfg.Options.Cracker)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: cracker %s: %w", cn, err)
	}
	op, err := registry.Opener[on](cfg.Options.Opener)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: opener %s: %w", on, err)
	}
	codec, err := registry.Codec[dn](cfg.Options.Codec)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: codec %s: %w", dn, err)
	}
	asm, err := registry.Assembler[an](cfg.Options.Assembler)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: assembler %s: %w", an, err)
	}
	wraw, err := writerOptions(cfg)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: writer %s: %w", wn, err)
	}
	w, err := registry.Writer[wn](wraw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: writer %s: %w", wn, err)
	}

	comp := pipeline.Components{Cracker: cr, Opener: op, Codec: codec, Assembler: asm, Writer: w}
	var pat *regexp.Regexp
	if cfg.FlagPattern != "" {
		pat = regexp.MustCompile(cfg.FlagPattern)
	}
	clean := true
	if cfg.Clean != nil {
		clean = *cfg.Clean
	}
	set := pipeline.Settings{
		HashesFile:       cfg.Resolve(cfg.HashesFile),
		WordlistFile:     cfg.Resolve(cfg.WordlistFile),
		ContainersDir:    cfg.Resolve(cfg.ContainersDir),
		ContainerPattern: cfg.ContainerPattern,
		FragmentPrefix:   cfg.FragmentPrefix,
		StagingDir:       cfg.Resolve(cfg.StagingDir),
		LinesPerFragment: cfg.LinesPerFragment,
		Separator:        effSeparator(cfg.Separator),
		Placeholder:      cfg.Placeholder,
		Concurrency:      cfg.Concurrency,
		Clean:            clean,
		ExpectFlag:       cfg.ExpectFlag,
		FlagPattern:      pat,
		Verbose:          cfg.Verbose,
		Interactive:      cfg.Interactive,
		CrackerName:      cn,
	}
	return comp, set, nil
}

// Resolve 把相对路径解析到 WorkDir 之下；空路径得到 WorkDir 本身。
func (c Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	wd := c.WorkDir
	if wd == "" {
		wd = "."
	}
	return filepath.Join(wd, p)
}

// writerOptions 保证 writer 选项带有解析后的 output_dir。
func writerOptions(cfg Config) (json.RawMessage, error) {
	m := map[string]any{}
	if len(cfg.Options.Writer) > 0 {
		if err := json.Unmarshal(cfg.Options.Writer, &m); err != nil {
			return nil, err
		}
	}
	dir, _ := m["output_dir"].(string)
	if strings.TrimSpace(dir) == "" {
		dir = cfg.OutputDir
	}
	m["output_dir"] = cfg.Resolve(dir)
	return json.Marshal(m)
}

// outputDir 返回 writer 实际使用的输出目录；选项无法解析时退回 cfg.OutputDir（错误留给 Assemble）。
func outputDir(cfg Config) string {
	var o struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &o)
	}
	if strings.TrimSpace(o.OutputDir) == "" {
		o.OutputDir = cfg.OutputDir
	}
	return cfg.Resolve(o.OutputDir)
}

// checkStaging 拒绝等于或包含工作目录、输出目录、容器目录与输入文件的暂存目录。
func checkStaging(cfg Config) error {
	staging, err := filepath.Abs(cfg.Resolve(cfg.StagingDir))
	if err != nil {
		return fmt.Errorf("config: staging_dir: %w", err)
	}
	for _, g := range []struct{ key, path string }{
		{"work_dir", cfg.Resolve("")},
		{"output_dir", outputDir(cfg)},
		{"containers_dir", cfg.Resolve(cfg.ContainersDir)},
		{"hashes_file", cfg.Resolve(cfg.HashesFile)},
		{"wordlist_file", cfg.Resolve(cfg.WordlistFile)},
	} {
		p, err := filepath.Abs(g.path)
		if err != nil {
			return fmt.Errorf("config: %s: %w", g.key, err)
		}
		if within(staging, p) {
			return fmt.Errorf("config: staging_dir %q must not contain %s %q", cfg.StagingDir, g.key, g.path)
		}
	}
	return nil
}

// within 报告 p 是否等于 dir 或位于其下。
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func effSeparator(sep *string) string {
	if sep == nil {
		return *Defaults().Separator
	}
	return *sep
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
