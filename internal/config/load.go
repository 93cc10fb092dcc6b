package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix 为环境变量覆盖的前缀。
const EnvPrefix = "CHAINCRACK_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	clean := true
	sep := "-"
	return Config{
		WorkDir:          ".",
		HashesFile:       "hashes.txt",
		WordlistFile:     "wordlist.txt",
		ContainersDir:    ".",
		ContainerPattern: "part%d.zip",
		FragmentPrefix:   "encoded_",
		StagingDir:       "staging",
		OutputDir:        ".",
		LinesPerFragment: 5,
		Separator:        &sep,
		Placeholder:      "MISSING",
		Concurrency:      1,
		Clean:            &clean,
		Logging:          Logging{Level: "info"},
		Components: Components{
			Cracker:   "hashcat",
			Opener:    "zip",
			Codec:     "base64",
			Assembler: "positional",
			Writer:    "fs",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadYAML 解析 YAML 配置：先转为 JSON 再走严格 JSON 解码，
// 因此键名、未知字段规则与 options 原样子树语义与 JSON 完全一致。
func LoadYAML(raw []byte) (Config, error) {
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	if tree == nil {
		return Config{}, errors.New("yaml: empty document")
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	return LoadJSON("", b)
}

// LoadFile 按扩展名选择 YAML（.yaml/.yml）或 JSON。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		return LoadYAML(b)
	default:
		return LoadJSON(path, nil)
	}
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。空串与 0 视为未覆盖。
func Merge(base, over Config) Config {
	out := base
	str := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	str(&out.WorkDir, over.WorkDir)
	str(&out.HashesFile, over.HashesFile)
	str(&out.WordlistFile, over.WordlistFile)
	str(&out.ContainersDir, over.ContainersDir)
	str(&out.ContainerPattern, over.ContainerPattern)
	str(&out.FragmentPrefix, over.FragmentPrefix)
	str(&out.StagingDir, over.StagingDir)
	str(&out.OutputDir, over.OutputDir)
	str(&out.Placeholder, over.Placeholder)
	str(&out.ExpectFlag, over.ExpectFlag)
	str(&out.FlagPattern, over.FlagPattern)
	// 分隔符可为空白或空串，只要提供即覆盖
	if over.Separator != nil {
		v := *over.Separator
		out.Separator = &v
	}
	if over.LinesPerFragment != 0 {
		out.LinesPerFragment = over.LinesPerFragment
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.Clean != nil {
		v := *over.Clean
		out.Clean = &v
	}
	if over.Verbose {
		out.Verbose = true
	}
	if over.Interactive {
		out.Interactive = true
	}
	str(&out.Logging.Level, strings.TrimSpace(over.Logging.Level))
	str(&out.Logging.Dir, over.Logging.Dir)

	// 组件名（空不覆盖）
	str(&out.Components.Cracker, over.Components.Cracker)
	str(&out.Components.Opener, over.Components.Opener)
	str(&out.Components.Codec, over.Components.Codec)
	str(&out.Components.Assembler, over.Components.Assembler)
	str(&out.Components.Writer, over.Components.Writer)

	// Options（完整替换对应键）
	raw := func(dst *json.RawMessage, v json.RawMessage) {
		if len(v) > 0 {
			*dst = cloneRaw(v)
		}
	}
	raw(&out.Options.Cracker, over.Options.Cracker)
	raw(&out.Options.Opener, over.Options.Opener)
	raw(&out.Options.Codec, over.Options.Codec)
	raw(&out.Options.Assembler, over.Options.Assembler)
	raw(&out.Options.Writer, over.Options.Writer)
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 CHAINCRACK_；集合之外的键忽略；数值/布尔解析失败返回错误。
// 支持：WORK_DIR, HASHES_FILE, WORDLIST_FILE, CONTAINERS_DIR, CONTAINER_PATTERN,
// FRAGMENT_PREFIX, STAGING_DIR, OUTPUT_DIR, LINES_PER_FRAGMENT, SEPARATOR, PLACEHOLDER,
// CONCURRENCY, CLEAN, EXPECT_FLAG, FLAG_PATTERN, VERBOSE, INTERACTIVE, LOG_LEVEL, LOG_DIR,
// COMPONENTS_<NAME> 与 OPTIONS_<NAME>_JSON。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):eq]
		val := kv[eq+1:]
		if err := applyEnv(&over, key, val); err != nil {
			return Config{}, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
	}
	return over, nil
}

func applyEnv(c *Config, key, val string) error {
	tv := strings.TrimSpace(val)
	strs := map[string]*string{
		"WORK_DIR":             &c.WorkDir,
		"HASHES_FILE":          &c.HashesFile,
		"WORDLIST_FILE":        &c.WordlistFile,
		"CONTAINERS_DIR":       &c.ContainersDir,
		"CONTAINER_PATTERN":    &c.ContainerPattern,
		"FRAGMENT_PREFIX":      &c.FragmentPrefix,
		"STAGING_DIR":          &c.StagingDir,
		"OUTPUT_DIR":           &c.OutputDir,
		"PLACEHOLDER":          &c.Placeholder,
		"EXPECT_FLAG":          &c.ExpectFlag,
		"FLAG_PATTERN":         &c.FlagPattern,
		"LOG_LEVEL":            &c.Logging.Level,
		"LOG_DIR":              &c.Logging.Dir,
		"COMPONENTS_CRACKER":   &c.Components.Cracker,
		"COMPONENTS_OPENER":    &c.Components.Opener,
		"COMPONENTS_CODEC":     &c.Components.Codec,
		"COMPONENTS_ASSEMBLER": &c.Components.Assembler,
		"COMPONENTS_WRITER":    &c.Components.Writer,
	}
	raws := map[string]*json.RawMessage{
		"OPTIONS_CRACKER_JSON":   &c.Options.Cracker,
		"OPTIONS_OPENER_JSON":    &c.Options.Opener,
		"OPTIONS_CODEC_JSON":     &c.Options.Codec,
		"OPTIONS_ASSEMBLER_JSON": &c.Options.Assembler,
		"OPTIONS_WRITER_JSON":    &c.Options.Writer,
	}
	if p, ok := strs[key]; ok {
		*p = tv
		return nil
	}
	if p, ok := raws[key]; ok {
		// 空值视为未设置，避免清空配置文件中的选项
		if tv == "" {
			return nil
		}
		if !json.Valid([]byte(tv)) {
			return errors.New("invalid JSON")
		}
		*p = json.RawMessage(tv)
		return nil
	}
	switch key {
	case "SEPARATOR":
		// 不修剪：分隔符可以是空白；键存在但值为空表示直接拼接
		v := val
		c.Separator = &v
	case "LINES_PER_FRAGMENT", "CONCURRENCY":
		if tv == "" {
			return nil
		}
		n, err := strconv.Atoi(tv)
		if err != nil {
			return err
		}
		if key == "CONCURRENCY" {
			c.Concurrency = n
		} else {
			c.LinesPerFragment = n
		}
	case "CLEAN", "VERBOSE", "INTERACTIVE":
		if tv == "" {
			return nil
		}
		b, err := strconv.ParseBool(tv)
		if err != nil {
			return err
		}
		switch key {
		case "CLEAN":
			c.Clean = &b
		case "VERBOSE":
			c.Verbose = b
		default:
			c.Interactive = b
		}
	}
	return nil
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
