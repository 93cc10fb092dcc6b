package testdata

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cfgpkg "chaincrack/internal/config"
	"chaincrack/internal/pipeline"
	"chaincrack/internal/testkit"
	"chaincrack/pkg/contract"
	cb64 "chaincrack/plugins/codec/base64"
)

// puzzle 描述一组加密容器：第 i 个容器用 passwords[i] 加密，内含 fragments[i] 的编码。
type puzzle struct {
	passwords []string
	fragments []string
	words     []string
	encode    func(string) []byte
}

func b64(s string) []byte {
	c, _ := cb64.New(nil)
	return c.Encode([]byte(s))
}

// build 在 dir 下写出 hashes.txt、wordlist.txt 与 part<k>.zip。
func (p puzzle) build(t *testing.T, dir string) {
	t.Helper()
	var digests []string
	for i, pw := range p.passwords {
		digests = append(digests, testkit.MD5Hex(pw))
		enc := p.encode
		if enc == nil {
			enc = b64
		}
		testkit.WriteZip(t, filepath.Join(dir, fmt.Sprintf("part%d.zip", i+1)), pw, map[string][]byte{
			"notes.txt":                      []byte("decoy"),
			fmt.Sprintf("encoded_%d.b64", i): enc(p.fragments[i]),
		})
	}
	testkit.WriteLines(t, filepath.Join(dir, "hashes.txt"), digests...)
	testkit.WriteLines(t, filepath.Join(dir, "wordlist.txt"), p.words...)
}

func baseConfig(dir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.WorkDir = dir
	cfg.OutputDir = "out"
	cfg.Components.Cracker = "mock"
	cfg.Options.Cracker = json.RawMessage(`{"mode":"wordlist","algorithm":"md5"}`)
	cfg.Options.Writer = json.RawMessage(`{"atomic":true}`)
	cfg.Logging.Level = "error"
	cfg.Concurrency = 3
	return cfg
}

func runPipeline(t *testing.T, cfg cfgpkg.Config) (*pipeline.Report, error) {
	t.Helper()
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return pipeline.Run(context.Background(), comp, set, nil)
}

func readOut(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, "out", name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(b)
}

func abc() puzzle {
	return puzzle{
		passwords: []string{"alpha", "beta", "gamma"},
		fragments: []string{"WXYZ\n", "1234\n", "QRST\n"},
		words:     []string{"zeta", "alpha", "beta", "gamma"},
	}
}

func TestE2EAllContainers(t *testing.T) {
	dir := t.TempDir()
	abc().build(t, dir)
	cfg := baseConfig(dir)
	cfg.LinesPerFragment = 1

	rep, err := runPipeline(t, cfg)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if got := readOut(t, dir, "assembled.txt"); got != "WXYZ-1234-QRST\n" {
		t.Fatalf("assembled = %q", got)
	}
	if got := readOut(t, dir, "decoded_2.txt"); got != "1234\n" {
		t.Fatalf("decoded_2 = %q", got)
	}
	if rep.Ordinals[0].Fragment != "encoded_0.b64" {
		t.Fatalf("fragment name = %q", rep.Ordinals[0].Fragment)
	}
	// 暂存目录按序号隔离
	for i := 0; i < 3; i++ {
		p := filepath.Join(dir, "staging", fmt.Sprintf("ord-%04d", i), fmt.Sprintf("encoded_%d.b64", i))
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("staging %d: %v", i, err)
		}
	}
}

func TestE2ECorruptContainer(t *testing.T) {
	dir := t.TempDir()
	abc().build(t, dir)
	part2 := filepath.Join(dir, "part2.zip")
	raw, err := os.ReadFile(part2)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(part2, raw[:len(raw)/2], 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := baseConfig(dir)
	cfg.LinesPerFragment = 1

	rep, err := runPipeline(t, cfg)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if got := readOut(t, dir, "assembled.txt"); got != "WXYZ-MISSING-QRST\n" {
		t.Fatalf("assembled = %q", got)
	}
	if !strings.Contains(readOut(t, dir, "cracked.txt"), ":beta\n") {
		t.Fatalf("beta should still be cracked")
	}
	if o := rep.Ordinals[1]; !o.Cracked || o.State != "locked_failed" {
		t.Fatalf("ordinal 2 = %+v", o)
	}
}

func TestE2EWordlistMissingPassword(t *testing.T) {
	dir := t.TempDir()
	p := abc()
	p.words = []string{"alpha", "beta"}
	p.build(t, dir)
	cfg := baseConfig(dir)
	cfg.LinesPerFragment = 1

	rep, err := runPipeline(t, cfg)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if got := readOut(t, dir, "assembled.txt"); got != "WXYZ-1234-MISSING\n" {
		t.Fatalf("assembled = %q", got)
	}
	if rep.Ordinals[2].State != "no_credential" {
		t.Fatalf("ordinal 3 = %+v", rep.Ordinals[2])
	}
	if _, err := os.Stat(filepath.Join(dir, "staging", "ord-0002")); !os.IsNotExist(err) {
		t.Fatalf("uncracked ordinal should not be staged: %v", err)
	}
}

// 与练习原型一致：5 个容器、每片 5 行，只有一行是真正的 flag。
func TestE2EFiveByFiveWithFlag(t *testing.T) {
	dir := t.TempDir()
	flag := []string{"FLAG{", "ch4in", "_cr4", "ck_", "ok}"}
	p := puzzle{words: []string{"123456", "password", "letmein", "dragon", "monkey", "qwerty"}}
	p.passwords = []string{"letmein", "dragon", "monkey", "qwerty", "password"}
	for i := range p.passwords {
		var lines []string
		for k := 0; k < 5; k++ {
			if k == 3 {
				lines = append(lines, flag[i])
				continue
			}
			lines = append(lines, fmt.Sprintf("noise%d%d", i, k))
		}
		p.fragments = append(p.fragments, strings.Join(lines, "\n")+"\n")
	}
	p.build(t, dir)
	cfg := baseConfig(dir)
	// 片段自带连接符，显式空分隔符直接拼接
	empty := ""
	cfg.Separator = &empty
	cfg.ExpectFlag = "FLAG{ch4in_cr4ck_ok}"
	cfg.FlagPattern = `^FLAG\{.*\}$`

	rep, err := runPipeline(t, cfg)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(readOut(t, dir, "assembled.txt"), "\n"), "\n")
	if len(lines) != 5 || lines[3] != "FLAG{ch4in_cr4ck_ok}" {
		t.Fatalf("assembled = %q", lines)
	}
	var onDisk pipeline.Report
	if err := json.Unmarshal([]byte(readOut(t, dir, "report.json")), &onDisk); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !onDisk.Candidates[3].MatchesPattern || onDisk.Candidates[0].MatchesPattern {
		t.Fatalf("pattern marks wrong: %+v", onDisk.Candidates)
	}
	if rep.Summary.Winning != 5 {
		t.Fatalf("winning = %d", rep.Summary.Winning)
	}

	// 少一个口令：flag 不完整，校验模式报告未找到
	p.words = p.words[:4]
	testkit.WriteLines(t, filepath.Join(dir, "wordlist.txt"), p.words...)
	if _, err := runPipeline(t, cfg); err != pipeline.ErrFlagNotFound {
		t.Fatalf("expect ErrFlagNotFound, got %v", err)
	}
}

func TestE2EHexCodec(t *testing.T) {
	dir := t.TempDir()
	p := abc()
	p.encode = func(s string) []byte { return []byte(hex.EncodeToString([]byte(s))) }
	p.build(t, dir)
	cfg := baseConfig(dir)
	cfg.Components.Codec = "hex"
	cfg.Options.Codec = nil
	cfg.LinesPerFragment = 1

	if _, err := runPipeline(t, cfg); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if got := readOut(t, dir, "assembled.txt"); got != "WXYZ-1234-QRST\n" {
		t.Fatalf("assembled = %q", got)
	}
}

func TestE2EMissingInputs(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)
	_, err := runPipeline(t, cfg)
	if err == nil || !strings.Contains(err.Error(), contract.ErrInputMissing.Error()) {
		t.Fatalf("expect input missing, got %v", err)
	}
}

func TestE2ERerunIsStable(t *testing.T) {
	dir := t.TempDir()
	abc().build(t, dir)
	cfg := baseConfig(dir)
	cfg.LinesPerFragment = 2
	var prev, prevReport string
	for i := 0; i < 2; i++ {
		if _, err := runPipeline(t, cfg); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		got, report := readOut(t, dir, "assembled.txt"), readOut(t, dir, "report.json")
		if i > 0 && got != prev {
			t.Fatalf("rerun differs:\n%s\nvs\n%s", prev, got)
		}
		if i > 0 && report != prevReport {
			t.Fatalf("report differs on rerun:\n%s\nvs\n%s", prevReport, report)
		}
		prev, prevReport = got, report
	}
	if prev != "WXYZ-1234-QRST\nMISSING-MISSING-MISSING\n" {
		t.Fatalf("assembled = %q", prev)
	}
}
