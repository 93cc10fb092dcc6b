package contract

// TextCodec: 可逆的文本安全传输编码（二进制 ↔ 文本）。
// Decode 拒绝非法编码时返回包装了 ErrMalformed 的错误。
type TextCodec interface {
	Name() string
	Encode(raw []byte) []byte
	Decode(text []byte) ([]byte, error)
}
