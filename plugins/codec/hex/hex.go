package hex

import (
	"bytes"
	stdhex "encoding/hex"
	"encoding/json"
	"fmt"

	"chaincrack/pkg/contract"
)

// Codec 实现十六进制传输编码；解码时忽略空白，大小写均可。
type Codec struct{}

// New 十六进制编解码器无配置项。
func New(raw json.RawMessage) (contract.TextCodec, error) {
	_ = raw
	return Codec{}, nil
}

func (Codec) Name() string { return "hex" }

func (Codec) Encode(raw []byte) []byte {
	out := make([]byte, stdhex.EncodedLen(len(raw)))
	stdhex.Encode(out, raw)
	return out
}

func (Codec) Decode(text []byte) ([]byte, error) {
	clean := bytes.Join(bytes.Fields(text), nil)
	out := make([]byte, stdhex.DecodedLen(len(clean)))
	n, err := stdhex.Decode(out, clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrMalformed, err)
	}
	return out[:n], nil
}

var _ contract.TextCodec = Codec{}
