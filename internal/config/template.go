package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 输入文件名与容器命名沿用默认约定，工作目录为当前目录；
// - 组件名采用仓库内置实现（hashcat + zip + base64）；
// - 选项包含所选组件的全部键，值为安全中性默认。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Logging.Dir = "logs"
	cfg.Options.Cracker = json.RawMessage(`{
  "binary": "hashcat",
  "hash_mode": 0,
  "potfile_path": "",
  "force": true,
  "extra_args": []
}`)
	cfg.Options.Opener = json.RawMessage(`{
  "max_entry_bytes": 0
}`)
	cfg.Options.Codec = json.RawMessage(`{
  "variant": "std"
}`)
	// positional 无配置项，保持空对象
	cfg.Options.Assembler = json.RawMessage(`{}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": ".",
  "atomic": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}
