package registry

import (
	"bytes"
	"encoding/json"
	"sort"

	"chaincrack/internal/toolexec"
	"chaincrack/pkg/contract"
	positional "chaincrack/plugins/assembler/positional"
	cb64 "chaincrack/plugins/codec/base64"
	chex "chaincrack/plugins/codec/hex"
	hashcat "chaincrack/plugins/cracker/hashcat"
	mock "chaincrack/plugins/cracker/mock"
	orar "chaincrack/plugins/opener/rar"
	ounzip "chaincrack/plugins/opener/unzip"
	ozip "chaincrack/plugins/opener/zip"
	wfs "chaincrack/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewCracker 工厂签名：接收原样 JSON Options。
type NewCracker func(raw json.RawMessage) (contract.Cracker, error)

// NewOpener 工厂签名：接收原样 JSON Options。
type NewOpener func(raw json.RawMessage) (contract.ArchiveOpener, error)

// NewCodec 工厂签名：接收原样 JSON Options。
type NewCodec func(raw json.RawMessage) (contract.TextCodec, error)

// NewAssembler 工厂签名：接收原样 JSON Options。
type NewAssembler func(raw json.RawMessage) (contract.Reassembler, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Cracker 工厂注册表（显式、零反射）。
var Cracker = map[string]NewCracker{
	// hashcat: 外部 hashcat 单次批量字典攻击 + potfile
	"hashcat": func(raw json.RawMessage) (contract.Cracker, error) {
		var opts hashcat.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return hashcat.NewWithRunner(&opts, toolexec.OS{})
	},
	// mock: 静态答案或进程内字典比对（离线调试）
	"mock": func(raw json.RawMessage) (contract.Cracker, error) {
		var opts mock.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return mock.New(raw)
	},
}

// Opener 工厂注册表。
var Opener = map[string]NewOpener{
	// zip: 进程内 ZipCrypto/AES
	"zip": func(raw json.RawMessage) (contract.ArchiveOpener, error) {
		var opts ozip.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ozip.New(raw)
	},
	// unzip: 外部 unzip(1)
	"unzip": func(raw json.RawMessage) (contract.ArchiveOpener, error) {
		var opts ounzip.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ounzip.NewWithRunner(&opts, toolexec.OS{}), nil
	},
	"rar": func(raw json.RawMessage) (contract.ArchiveOpener, error) {
		var opts orar.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return orar.New(raw)
	},
}

// Codec 工厂注册表。
var Codec = map[string]NewCodec{
	"base64": func(raw json.RawMessage) (contract.TextCodec, error) {
		var opts cb64.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return cb64.New(raw)
	},
	"hex": func(raw json.RawMessage) (contract.TextCodec, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return chex.New(raw)
	},
}

// Assembler 工厂注册表。
var Assembler = map[string]NewAssembler{
	// positional: 第 k 行 = 各序号第 k 行按序号拼接
	"positional": func(raw json.RawMessage) (contract.Reassembler, error) {
		return positional.New(raw)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Names 返回注册表键的有序列表（用于错误提示与 --help）。
func Names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
