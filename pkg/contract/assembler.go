package contract

// Reassembler: 按 Ordinal 位置拼接解码片段。
// 约束：
//  1. 外层按行号 0..m-1，内层按 Ordinal 0..n-1（Ordinal 顺序即拼接顺序）；
//  2. 缺失或行数不足的 Ordinal 贡献 placeholder；
//  3. 永不报错，恰好产出 m 个候选（m<=0 时为空）；
//  4. 纯计算，无 I/O。
type Reassembler interface {
	Reassemble(n int, frags Fragments, m int, sep, placeholder string) []CompositeCandidate
}
