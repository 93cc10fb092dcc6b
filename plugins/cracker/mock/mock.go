package mock

import (
	"bufio"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"os"
	"strings"

	"chaincrack/pkg/contract"
)

// Options: 调试用破解器配置，不依赖外部引擎。
type Options struct {
	// Answers: digest -> 明文，直接作为结果（大小写不敏感匹配）。
	Answers map[string]string `json:"answers"`
	// Mode:
	//  - "" / "answers": 仅使用 Answers。
	//  - "wordlist": 进程内逐词计算摘要并比对，Answers 作为补充。
	//  - "unavailable": 模拟引擎缺失，始终返回 ErrEngineUnavailable。
	Mode string `json:"mode,omitempty"`
	// Algorithm: wordlist 模式的摘要算法 md5|sha1|sha256，默认 md5。
	Algorithm string `json:"algorithm,omitempty"`
}

type Cracker struct {
	answers map[string]string
	mode    string
	newHash func() hash.Hash
}

func New(raw json.RawMessage) (contract.Cracker, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
	}
	c := &Cracker{answers: map[string]string{}, mode: strings.TrimSpace(o.Mode)}
	for k, v := range o.Answers {
		c.answers[strings.ToLower(strings.TrimSpace(k))] = v
	}
	switch c.mode {
	case "", "answers", "wordlist", "unavailable":
	default:
		return nil, fmt.Errorf("%w: mock mode %q", contract.ErrInvalidInput, o.Mode)
	}
	switch strings.ToLower(o.Algorithm) {
	case "", "md5":
		c.newHash = md5.New
	case "sha1":
		c.newHash = sha1.New
	case "sha256":
		c.newHash = sha256.New
	default:
		return nil, fmt.Errorf("%w: mock algorithm %q", contract.ErrInvalidInput, o.Algorithm)
	}
	return c, nil
}

func (c *Cracker) Crack(ctx context.Context, req contract.CrackRequest) (contract.CrackResult, error) {
	if c.mode == "unavailable" {
		return nil, fmt.Errorf("%w: mock", contract.ErrEngineUnavailable)
	}
	found := map[string]string{}
	for k, v := range c.answers {
		found[k] = v
	}
	if c.mode == "wordlist" {
		if err := c.scan(ctx, req, found); err != nil {
			return nil, err
		}
	}
	out := contract.CrackResult{}
	for _, d := range req.Digests {
		if pw, ok := found[strings.ToLower(d)]; ok {
			out[d] = pw
		}
	}
	return out, nil
}

func (c *Cracker) scan(ctx context.Context, req contract.CrackRequest, found map[string]string) error {
	want := make(map[string]struct{}, len(req.Digests))
	for _, d := range req.Digests {
		want[strings.ToLower(d)] = struct{}{}
	}
	f, err := os.Open(req.WordlistPath)
	if err != nil {
		return fmt.Errorf("%w: wordlist: %w", contract.ErrInputMissing, err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for n := 0; sc.Scan(); n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		word := strings.TrimRight(sc.Text(), "\r")
		h := c.newHash()
		h.Write([]byte(word))
		d := hex.EncodeToString(h.Sum(nil))
		if _, ok := want[d]; ok {
			if _, dup := found[d]; !dup {
				found[d] = word
			}
		}
	}
	return sc.Err()
}
