package diag

import (
	"context"
	"errors"
	"os"

	"chaincrack/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总与报告，与退出码解耦。
type Code string

const (
	CodeUnknown    Code = "unknown"
	CodeCancel     Code = "cancel"
	CodeInput      Code = "input"
	CodeEngine     Code = "engine"
	CodeCredential Code = "credential"
	CodeIntegrity  Code = "integrity"
	CodeFragment   Code = "fragment"
	CodeDecode     Code = "decode"
	CodeInvariant  Code = "invariant"
	CodeIO         Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	switch {
	case errors.Is(err, contract.ErrInputMissing), errors.Is(err, contract.ErrCatalogEmpty):
		return CodeInput
	case errors.Is(err, contract.ErrEngineUnavailable), errors.Is(err, contract.ErrEngineFailed):
		return CodeEngine
	case errors.Is(err, contract.ErrNoCredential):
		return CodeCredential
	case errors.Is(err, contract.ErrIntegrity):
		return CodeIntegrity
	case errors.Is(err, contract.ErrNoFragment):
		return CodeFragment
	case errors.Is(err, contract.ErrMalformed):
		return CodeDecode
	case errors.Is(err, contract.ErrInvalidInput), errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}
