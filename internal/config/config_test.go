package config

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// UT-CFG-01: 解析完整 config.json
func TestLoadJSON(t *testing.T) {
	cfg, err := LoadJSON("../../testdata/config/basic.json", nil)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Concurrency != 4 || cfg.LinesPerFragment != 5 || cfg.Components.Cracker != "hashcat" {
		t.Fatalf("字段映射错误: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level 期望 debug 实得 %s", cfg.Logging.Level)
	}
	if err := Validate(Merge(Defaults(), cfg)); err != nil {
		t.Fatalf("校验失败: %v", err)
	}
}

// UT-CFG-02: YAML 与 JSON 同构（options 子树原样保留）
func TestLoadYAML(t *testing.T) {
	cfg, err := LoadFile("../../testdata/config/basic.yaml")
	require.NoError(t, err)
	require.NotNil(t, cfg.Separator)
	require.Equal(t, "-", *cfg.Separator)
	require.Equal(t, 3, cfg.LinesPerFragment)
	require.NotNil(t, cfg.Clean)
	require.False(t, *cfg.Clean)
	require.Equal(t, "unzip", cfg.Components.Opener)
	require.JSONEq(t, `{"mode":"wordlist","algorithm":"md5"}`, string(cfg.Options.Cracker))

	_, err = LoadYAML([]byte("bogus_key: 1\n"))
	require.Error(t, err, "未知字段应失败")
	_, err = LoadYAML([]byte(""))
	require.Error(t, err)
}

// UT-CFG-03: 含非法字段
func TestLoadJSONUnknown(t *testing.T) {
	raw := []byte(`{"unknown":1}`)
	if _, err := LoadJSON("", raw); err == nil {
		t.Fatalf("应当返回错误")
	}
	if _, err := LoadJSON("", nil); err == nil {
		t.Fatalf("无来源应当返回错误")
	}
}

// UT-CFG-04: ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"CHAINCRACK_CONCURRENCY=3",
		"CHAINCRACK_LINES_PER_FRAGMENT=7",
		"CHAINCRACK_SEPARATOR= ",
		"CHAINCRACK_CLEAN=false",
		"CHAINCRACK_VERBOSE=1",
		"CHAINCRACK_COMPONENTS_CRACKER=mock",
		`CHAINCRACK_OPTIONS_CRACKER_JSON={"mode":"wordlist"}`,
		"CHAINCRACK_OPTIONS_WRITER_JSON=",
		"CHAINCRACK_UNKNOWN=x",
		"OTHER_CONCURRENCY=9",
	}
	over, err := EnvOverlay(env)
	if err != nil {
		t.Fatalf("EnvOverlay 错误: %v", err)
	}
	if over.Concurrency != 3 || over.LinesPerFragment != 7 || over.Separator == nil || *over.Separator != " " {
		t.Fatalf("覆盖结果不正确: %+v", over)
	}
	if over.Clean == nil || *over.Clean || !over.Verbose {
		t.Fatalf("布尔覆盖不正确: %+v", over)
	}
	if over.Components.Cracker != "mock" || string(over.Options.Cracker) != `{"mode":"wordlist"}` {
		t.Fatalf("组件覆盖不正确: %+v", over)
	}
	if over.Options.Writer != nil {
		t.Fatalf("空 JSON 不应覆盖")
	}

	for _, bad := range []string{"CHAINCRACK_CONCURRENCY=x", "CHAINCRACK_CLEAN=maybe", "CHAINCRACK_OPTIONS_CODEC_JSON={"} {
		if _, err := EnvOverlay([]string{bad}); err == nil || !strings.Contains(err.Error(), "CHAINCRACK_") {
			t.Fatalf("%s 应失败并带键名，实得 %v", bad, err)
		}
	}
}

// UT-CFG-05: 优先级 Defaults < 文件 < ENV < CLI
func TestMergePrecedence(t *testing.T) {
	file := Config{Concurrency: 2, Placeholder: "??", Options: Options{Codec: json.RawMessage(`{"variant":"url"}`)}}
	env := Config{Concurrency: 3}
	f := false
	cli := Config{LinesPerFragment: 9, Clean: &f}
	got := Merge(Merge(Merge(Defaults(), file), env), cli)
	require.Equal(t, 3, got.Concurrency)
	require.Equal(t, 9, got.LinesPerFragment)
	require.Equal(t, "??", got.Placeholder)
	require.Equal(t, "hashcat", got.Components.Cracker)
	require.False(t, *got.Clean)
	require.JSONEq(t, `{"variant":"url"}`, string(got.Options.Codec))

	// 合并结果不与输入共享 RawMessage 底层数组
	file.Options.Codec[2] = 'X'
	require.JSONEq(t, `{"variant":"url"}`, string(got.Options.Codec))
}

// 显式空分隔符覆盖默认值；未提供时保留默认
func TestSeparatorExplicitEmpty(t *testing.T) {
	over, err := LoadJSON("", []byte(`{"separator":""}`))
	require.NoError(t, err)
	got := Merge(Defaults(), over)
	require.Equal(t, "", *got.Separator)
	require.Equal(t, "", effSeparator(got.Separator))

	got = Merge(Defaults(), Config{Concurrency: 2})
	require.Equal(t, "-", *got.Separator)
	require.Equal(t, "-", effSeparator(nil))

	env, err := EnvOverlay([]string{"CHAINCRACK_SEPARATOR="})
	require.NoError(t, err)
	require.Equal(t, "", *Merge(Defaults(), env).Separator)
}

// 补充覆盖: Defaults 与 cloneRaw
func TestDefaultsClone(t *testing.T) {
	d := Defaults()
	if d.Components.Opener != "zip" || d.LinesPerFragment != 5 || d.Clean == nil || !*d.Clean {
		t.Fatalf("默认值错误: %+v", d)
	}
	// 默认按 "-" 连接、以 MISSING 占位
	require.NotNil(t, d.Separator)
	require.Equal(t, "-", *d.Separator)
	require.Equal(t, "MISSING", d.Placeholder)
	src := []byte("abc")
	dst := cloneRaw(src)
	src[0] = 'x'
	if string(dst) != "abc" {
		t.Fatalf("cloneRaw 未复制")
	}
	if cloneRaw(nil) != nil {
		t.Fatalf("空输入应返回 nil")
	}
}

// 补充覆盖: Validate 错误分支
func TestValidateErrors(t *testing.T) {
	if err := Validate(Config{}); err == nil {
		t.Fatal("空配置应失败")
	}
	cases := map[string]func(*Config){
		"concurrency": func(c *Config) { c.Concurrency = 0 },
		"lines":       func(c *Config) { c.LinesPerFragment = 0 },
		"pattern":     func(c *Config) { c.ContainerPattern = "part.zip" },
		"flag regexp": func(c *Config) { c.FlagPattern = "(" },
		"cracker":     func(c *Config) { c.Components.Cracker = "john" },
		"writer":      func(c *Config) { c.Components.Writer = "s3" },
		"staging":     func(c *Config) { c.StagingDir = " " },
	}
	// 暂存目录不得覆盖输入与输出
	for name, mutate := range map[string]func(*Config){
		"staging is work dir":    func(c *Config) { c.StagingDir = "." },
		"staging above work dir": func(c *Config) { c.WorkDir = "w"; c.StagingDir = ".." },
		"staging is containers":  func(c *Config) { c.ContainersDir = "archives"; c.StagingDir = "archives/" },
		"staging is output":      func(c *Config) { c.Options.Writer = json.RawMessage(`{"output_dir":"out"}`); c.StagingDir = "out" },
		"staging holds hashes":   func(c *Config) { c.HashesFile = "tmp/hashes.txt"; c.StagingDir = "tmp" },
		"staging holds wordlist": func(c *Config) { c.WordlistFile = "/data/rockyou.txt"; c.StagingDir = "/data" },
	} {
		cases[name] = mutate
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultTemplateConfig()
			mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("%s 应失败", name)
			}
		})
	}
	cfg := DefaultTemplateConfig()
	cfg.Components.Opener = "7z"
	err := Validate(cfg)
	require.ErrorContains(t, err, "rar, unzip, zip")

	// 暂存目录位于容器目录之下或与输入并列是允许的
	cfg = DefaultTemplateConfig()
	cfg.ContainersDir = "archives"
	cfg.StagingDir = "archives/staging"
	require.NoError(t, Validate(cfg))
	cfg.StagingDir = "/tmp/chaincrack-staging"
	require.NoError(t, Validate(cfg))

	cfg = DefaultTemplateConfig()
	cfg.StagingDir = "."
	require.ErrorContains(t, Validate(cfg), "must not contain work_dir")
}

func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultTemplateConfig()
	cfg.WorkDir = dir
	cfg.Components.Cracker = "mock"
	cfg.Options.Cracker = json.RawMessage(`{"mode":"wordlist"}`)
	cfg.Options.Writer = json.RawMessage(`{"atomic":false}`)
	cfg.OutputDir = "out"
	cfg.FlagPattern = `^FLAG`
	cfg.ExpectFlag = "FLAG{x}"

	comp, set, err := Assemble(cfg)
	require.NoError(t, err)
	require.NotNil(t, comp.Cracker)
	require.NotNil(t, comp.Opener)
	require.Equal(t, "base64/std", comp.Codec.Name())
	require.Equal(t, filepath.Join(dir, "hashes.txt"), set.HashesFile)
	require.Equal(t, filepath.Join(dir, "staging"), set.StagingDir)
	require.True(t, set.Clean)
	require.True(t, set.FlagPattern.MatchString("FLAG{x}"))
	require.Equal(t, "mock", set.CrackerName)
	require.Equal(t, 5, set.LinesPerFragment)
	require.Equal(t, "-", set.Separator)
	require.Equal(t, "MISSING", set.Placeholder)

	raw, err := writerOptions(cfg)
	require.NoError(t, err)
	var wopts map[string]any
	require.NoError(t, json.Unmarshal(raw, &wopts))
	require.Equal(t, map[string]any{"atomic": false, "output_dir": filepath.Join(dir, "out")}, wopts)

	abs := filepath.Join(dir, "elsewhere")
	require.Equal(t, abs, cfg.Resolve(abs))
}

func TestAssembleFactoryError(t *testing.T) {
	cfg := DefaultTemplateConfig()
	cfg.Options.Codec = json.RawMessage(`{"variant":"base32"}`)
	_, _, err := Assemble(cfg)
	require.ErrorContains(t, err, "codec base64")

	cfg = DefaultTemplateConfig()
	cfg.Options.Opener = json.RawMessage(`{"nope":1}`)
	_, _, err = Assemble(cfg)
	require.Error(t, err)
}

func TestTemplateRoundTrip(t *testing.T) {
	b, err := json.Marshal(DefaultTemplateConfig())
	require.NoError(t, err)
	cfg, err := LoadJSON("", b)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
}
