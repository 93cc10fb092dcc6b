package contract

import (
	"context"
	"fmt"
	"io"
)

// ArtifactID: 持久化工件的逻辑标识（相对输出根的路径）。
type ArtifactID string

// 固定工件名。
const (
	ArtifactCracked   ArtifactID = "cracked.txt"
	ArtifactAssembled ArtifactID = "assembled.txt"
	ArtifactReport    ArtifactID = "report.json"
)

// DecodedArtifact 返回某 Ordinal 解码片段的工件名（按 1 基序号命名）。
func DecodedArtifact(o Ordinal) ArtifactID {
	return ArtifactID(fmt.Sprintf("decoded_%d.txt", o.Display()))
}

// Writer: 将结果以流式方式持久化到目标介质。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. 流式写入，按字节透传，不读取/修改业务内容；
//  3. ctx 取消需尽快返回；
//  4. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}

// Pruner: Writer 的可选能力，在新一轮运行前删除上次遗留的工件。
// patterns 为 path.Match 语法，仅匹配输出根目录下的基名。
type Pruner interface {
	Prune(ctx context.Context, patterns ...string) (int, error)
}
