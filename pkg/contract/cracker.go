package contract

import "context"

// CrackRequest: 单次批量破解的输入。
// 引擎一次拿到全部摘要与整份字典（批量而非逐条），只调用一次进程。
type CrackRequest struct {
	// Digests: 目录顺序的摘要（供结果过滤与无文件型实现使用）。
	Digests []string
	// DigestsPath/WordlistPath: 原始输入文件路径，外部引擎直接消费。
	DigestsPath  string
	WordlistPath string
}

// Cracker: 外部字典攻击引擎的窄接口。
// 约束：
//  1. 单一哈希算法、单一直接字典模式（无变形规则），由实现配置；
//  2. 幂等：引擎自身的结果缓存跨运行保留，重复运行返回相同答案；
//  3. 引擎不可调用时返回 ErrEngineUnavailable（致命）；
//  4. 未命中的摘要不出现在结果中。
type Cracker interface {
	Crack(ctx context.Context, req CrackRequest) (CrackResult, error)
}
