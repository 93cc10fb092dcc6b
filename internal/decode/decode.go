// Package decode 反转片段的传输编码并切分为行。
package decode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"chaincrack/pkg/contract"
)

// Outcome: 单个序号的解码结果。Fragment 为 nil 即 Absent。
type Outcome struct {
	Ordinal  contract.Ordinal
	Fragment *contract.DecodedFragment
	// Plain 为解码后的原始字节（写出 decoded_<k>.txt 用）。
	Plain []byte
	// Skipped: 上游无片段，未尝试解码。
	Skipped bool
	Err     error
}

func (o Outcome) Absent() bool { return o.Fragment == nil }

type Decoder struct {
	Codec contract.TextCodec
}

// Decode 解码一个片段；损坏输入记录在 Outcome.Err，不返回错误。
func (d *Decoder) Decode(ctx context.Context, f *contract.ExtractedFragment) Outcome {
	if f == nil {
		return Outcome{Skipped: true}
	}
	out := Outcome{Ordinal: f.Ordinal}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	plain, err := d.Codec.Decode(f.Raw)
	if err != nil {
		if !errors.Is(err, contract.ErrMalformed) {
			err = fmt.Errorf("%w: %w", contract.ErrMalformed, err)
		}
		out.Err = fmt.Errorf("%s: %w", f.Name, err)
		return out
	}
	out.Plain = plain
	out.Fragment = &contract.DecodedFragment{Ordinal: f.Ordinal, Lines: SplitLines(plain)}
	return out
}

// SplitLines 按 LF 切分（CRLF 先归一）。仅去掉一个结尾换行；内部空行保留为 ""。
// 空输入得到零行。
func SplitLines(b []byte) []string {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

// All 并发解码；frags[i] 为 nil 的序号得到 Skipped 结果。结果下标即序号。
// 仅在取消时返回 error。
func All(ctx context.Context, d *Decoder, frags []*contract.ExtractedFragment, limit int, done func(Outcome)) ([]Outcome, error) {
	if limit < 1 {
		limit = 1
	}
	out := make([]Outcome, len(frags))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, f := range frags {
		if f == nil {
			out[i] = Outcome{Ordinal: contract.Ordinal(i), Skipped: true}
			continue
		}
		if gctx.Err() != nil {
			break
		}
		i, f := i, f
		g.Go(func() error {
			o := d.Decode(gctx, f)
			o.Ordinal = contract.Ordinal(i)
			out[i] = o
			if cerr := gctx.Err(); cerr != nil {
				return cerr
			}
			if done != nil {
				done(o)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}
