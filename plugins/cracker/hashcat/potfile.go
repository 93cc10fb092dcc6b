package hashcat

import (
	"bufio"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strings"

	"chaincrack/pkg/contract"
)

// ParsePotfile 解析 hashcat 的 digest:plaintext 行。
// 仅按首个 ':' 切分（明文可含 ':'）；$HEX[...] 形式的明文还原为原始字节；
// 重复 digest 以最后一行为准；无 ':' 的行忽略。
func ParsePotfile(r io.Reader) (contract.CrackResult, error) {
	out := contract.CrackResult{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			continue
		}
		digest := strings.TrimSpace(line[:i])
		out[digest] = unhex(line[i+1:])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadPotfile 读取 potfile；不存在时返回空结果与 os.ErrNotExist。
func ReadPotfile(path string) (contract.CrackResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return contract.CrackResult{}, err
		}
		return nil, err
	}
	defer f.Close()
	return ParsePotfile(f)
}

func unhex(plain string) string {
	if !strings.HasPrefix(plain, "$HEX[") || !strings.HasSuffix(plain, "]") {
		return plain
	}
	b, err := hex.DecodeString(plain[len("$HEX[") : len(plain)-1])
	if err != nil {
		return plain
	}
	return string(b)
}

// Select 按目录顺序挑出已破解的摘要，结果键使用目录中的拼写。
// 加盐模式下目录摘要形如 hash:salt，而 potfile 行按首个 ':' 切分后值为 salt:plain，
// 此时按 "salt:" 前缀匹配并取其余部分为明文。digests 为空时返回 pot 的副本。
func Select(pot contract.CrackResult, digests []string) contract.CrackResult {
	out := contract.CrackResult{}
	if len(digests) == 0 {
		for k, v := range pot {
			out[k] = v
		}
		return out
	}
	lower := make(map[string]string, len(pot))
	for k, v := range pot {
		lower[strings.ToLower(k)] = v
	}
	lookup := func(k string) (string, bool) {
		if v, ok := pot[k]; ok {
			return v, true
		}
		v, ok := lower[strings.ToLower(k)]
		return v, ok
	}
	for _, d := range digests {
		if pw, ok := lookup(d); ok {
			out[d] = pw
			continue
		}
		head, salt, ok := strings.Cut(d, ":")
		if !ok {
			continue
		}
		if v, ok := lookup(head); ok && strings.HasPrefix(v, salt+":") {
			out[d] = unhex(v[len(salt)+1:])
		}
	}
	return out
}
