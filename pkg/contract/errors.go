package contract

import "errors"

// 致命错误：在任何处理开始前终止。
var (
	// ErrInputMissing: 哈希目录或字典文件不存在。
	ErrInputMissing = errors.New("input missing")
	// ErrCatalogEmpty: 目录中没有任何可解析的摘要。
	ErrCatalogEmpty = errors.New("catalog empty")
	// ErrEngineUnavailable: 破解引擎无法调用（未安装或不在 PATH）。
	ErrEngineUnavailable = errors.New("cracking engine unavailable")
	// ErrEngineFailed: 引擎已运行但异常退出且无可用结果缓存（降级为空结果，不致命）。
	ErrEngineFailed = errors.New("cracking engine failed")
	// ErrInvalidInput: 配置或参数越界。
	ErrInvalidInput = errors.New("invalid input")
)

// 单 Ordinal 可恢复错误：仅移除该 Ordinal 的贡献，不中止流水线。
var (
	ErrNoCredential = errors.New("no credential")
	// ErrIntegrity: 凭据无法通过容器完整性检查（错误口令/损坏/格式不符）。
	ErrIntegrity = errors.New("integrity check failed")
	// ErrNoFragment: 解包成功但找不到约定前缀的片段文件。
	ErrNoFragment = errors.New("fragment not found")
	// ErrMalformed: 传输编码无法逆转。
	ErrMalformed = errors.New("malformed encoding")
)

// Writer/路径相关。
var (
	// ErrPathInvalid: 工件标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
)
