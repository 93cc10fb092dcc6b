package base64

import (
	stdb64 "encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"chaincrack/pkg/contract"
)

// Options: Base64 变体选择。
type Options struct {
	// Variant: std|url|raw_std|raw_url；为空使用 std（与 coreutils base64 一致）。
	Variant string `json:"variant"`
}

// Codec 实现 Base64 传输编码。
type Codec struct {
	variant string
	enc     *stdb64.Encoding
}

// New 从原样 JSON Options 创建编解码器。
func New(raw json.RawMessage) (contract.TextCodec, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
	}
	v := strings.ToLower(strings.TrimSpace(o.Variant))
	if v == "" {
		v = "std"
	}
	var enc *stdb64.Encoding
	switch v {
	case "std":
		enc = stdb64.StdEncoding
	case "url":
		enc = stdb64.URLEncoding
	case "raw_std":
		enc = stdb64.RawStdEncoding
	case "raw_url":
		enc = stdb64.RawURLEncoding
	default:
		return nil, fmt.Errorf("%w: base64 variant %q", contract.ErrInvalidInput, o.Variant)
	}
	return &Codec{variant: v, enc: enc}, nil
}

func (c *Codec) Name() string { return "base64/" + c.variant }

func (c *Codec) Encode(raw []byte) []byte {
	out := make([]byte, c.enc.EncodedLen(len(raw)))
	c.enc.Encode(out, raw)
	return out
}

// Decode 忽略输入中的全部空白（换行折行的编码文件常见），其余非法字符视为损坏。
func (c *Codec) Decode(text []byte) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(text))
	out, err := c.enc.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrMalformed, err)
	}
	return out, nil
}

var _ contract.TextCodec = (*Codec)(nil)
