// Package testkit 构造测试用的加密容器与输入文件。
package testkit

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	yzip "github.com/yeka/zip"
)

// MD5Hex 返回明文的 MD5 十六进制摘要（hashcat -m 0 的格式）。
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// WriteZip 以 AES-256 加密写出 ZIP；password 为空时写明文条目。
// 条目按名称排序写入，保证字节稳定。
func WriteZip(t testing.TB, path, password string, entries map[string][]byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()
	zw := yzip.NewWriter(f)
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		var w io.Writer
		if password != "" {
			w, err = zw.Encrypt(n, password, yzip.AES256Encryption)
		} else {
			w, err = zw.Create(n)
		}
		if err != nil {
			t.Fatalf("zip entry %s: %v", n, err)
		}
		if _, err := w.Write(entries[n]); err != nil {
			t.Fatalf("zip write %s: %v", n, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

// WriteLines 写出以换行结尾的文本文件。
func WriteLines(t testing.TB, path string, lines ...string) {
	t.Helper()
	var b []byte
	for _, l := range lines {
		b = append(b, l...)
		b = append(b, '\n')
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
