package registry

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStrictUnmarshal 验证严格解码逻辑。
func TestStrictUnmarshal(t *testing.T) {
	type opt struct {
		A int `json:"a"`
	}
	var o opt
	require.NoError(t, strictUnmarshal(nil, &o))
	assert.Zero(t, o.A)
	require.NoError(t, strictUnmarshal(json.RawMessage(`{"a":1}`), &o))
	assert.Equal(t, 1, o.A)
	assert.Error(t, strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o), "未知字段应报错")
}

// TestFactories 遍历注册表入口：默认选项可构造，未知字段被拒绝。
func TestFactories(t *testing.T) {
	type factory func(json.RawMessage) (any, error)
	wrap := func(f func(json.RawMessage) (any, error)) factory { return f }
	cases := map[string]factory{}
	for k, f := range Cracker {
		cases["cracker/"+k] = wrap(func(r json.RawMessage) (any, error) { return f(r) })
	}
	for k, f := range Opener {
		cases["opener/"+k] = wrap(func(r json.RawMessage) (any, error) { return f(r) })
	}
	for k, f := range Codec {
		cases["codec/"+k] = wrap(func(r json.RawMessage) (any, error) { return f(r) })
	}
	for k, f := range Assembler {
		cases["assembler/"+k] = wrap(func(r json.RawMessage) (any, error) { return f(r) })
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := f(json.RawMessage(`{}`))
			require.NoError(t, err)
			assert.NotNil(t, v)
			_, err = f(json.RawMessage(`{"x":1}`))
			assert.Error(t, err, "未对未知字段报错")
		})
	}

	t.Run("writer/fs", func(t *testing.T) {
		tmp := t.TempDir()
		_, err := Writer["fs"](json.RawMessage(fmt.Sprintf(`{"output_dir":%q}`, tmp)))
		require.NoError(t, err)
		_, err = Writer["fs"](json.RawMessage(fmt.Sprintf(`{"output_dir":%q,"x":1}`, tmp)))
		assert.Error(t, err)
		_, err = Writer["fs"](json.RawMessage(`{}`))
		assert.Error(t, err, "output_dir 必需")
	})
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"rar", "unzip", "zip"}, Names(Opener))
	assert.Equal(t, []string{"hashcat", "mock"}, Names(Cracker))
}
