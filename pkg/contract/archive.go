package contract

import "context"

// ArchiveOpener: 加密容器的窄接口（每种具体工具一个实现）。
// 约束：
//  1. Test 为非破坏性完整性检查：不落盘，凭据能否无错打开全部条目；
//  2. Extract 仅在 Test 通过后调用，将条目以基名写入 destDir（不保留内部目录层级）；
//  3. 失败返回带诊断信息的错误，调用方据此标记缺失，不重试。
type ArchiveOpener interface {
	Test(ctx context.Context, locator, password string) error
	Extract(ctx context.Context, locator, password, destDir string) ([]string, error)
}
