package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
// 相对路径均相对 WorkDir 解析。
type Config struct {
	WorkDir          string `json:"work_dir"`
	HashesFile       string `json:"hashes_file"`
	WordlistFile     string `json:"wordlist_file"`
	ContainersDir    string `json:"containers_dir"`
	ContainerPattern string `json:"container_pattern"`
	FragmentPrefix   string `json:"fragment_prefix"`
	StagingDir       string `json:"staging_dir"`
	OutputDir        string `json:"output_dir"`

	// LinesPerFragment: 每个片段的行数 M，即候选数；从不推断。
	LinesPerFragment int `json:"lines_per_fragment"`
	// Separator: 字段连接符；默认 "-"。指针以区分“未提供”与显式空串（直接拼接）。
	Separator   *string `json:"separator,omitempty"`
	Placeholder string  `json:"placeholder"`

	Concurrency int `json:"concurrency"`
	// Clean: 运行前清理上次的拼接结果、解码片段与暂存目录下的 ord-* 子目录（保留 potfile）；未提供时为 true。
	Clean *bool `json:"clean,omitempty"`

	// ExpectFlag: 非空时为校验模式，完整候选中未出现该值则以退出码 2 结束。
	ExpectFlag string `json:"expect_flag"`
	// FlagPattern: 标记形似 flag 的候选（正则）。
	FlagPattern string `json:"flag_pattern"`

	Verbose     bool `json:"verbose"`
	Interactive bool `json:"interactive"`

	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 日志等级与目录；轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Cracker   string `json:"cracker"`
	Opener    string `json:"opener"`
	Codec     string `json:"codec"`
	Assembler string `json:"assembler"`
	Writer    string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Cracker   json.RawMessage `json:"cracker,omitempty"`
	Opener    json.RawMessage `json:"opener,omitempty"`
	Codec     json.RawMessage `json:"codec,omitempty"`
	Assembler json.RawMessage `json:"assembler,omitempty"`
	Writer    json.RawMessage `json:"writer,omitempty"`
}
