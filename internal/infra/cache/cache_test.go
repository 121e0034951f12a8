package cache

import (
	"errors"
	"os"
	"testing"
)

const key = "The-World-PMV-Games-2024-Teaser-Trailer_65b59829a16402620cc668ca"

func TestStore_ReadWriteProviderCache(t *testing.T) {
	root := t.TempDir()

	s := New(root, false)
	if err := s.WriteProviderHTML("pmvhaven", key, []byte("<html/>")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, ok, err := s.ReadProviderHTML("pmvhaven", key)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ok {
		t.Fatalf("期望命中缓存，但 ok=false")
	}
	if string(b) != "<html/>" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	path, err := s.ProviderHTMLPath("pmvhaven", key)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("期望文件存在，但 Stat 失败：%v", err)
	}
}

func TestStore_MissIsNotError(t *testing.T) {
	s := New(t.TempDir(), true)
	b, ok, err := s.ReadProviderHTML("pmvhaven", key)
	if err != nil || ok || b != nil {
		t.Fatalf("未命中应返回 (nil,false,nil)，实际 (%v,%v,%v)", b, ok, err)
	}
}

func TestStore_ReadOnlyRejectWrite(t *testing.T) {
	root := t.TempDir()

	s := New(root, true)
	err := s.WriteProviderJSON("pmvhaven", key, []byte(`{"ok":true}`))
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("期望 ErrReadOnly，实际：%v", err)
	}

	path, err := s.path("pmvhaven", key, ".json")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("期望文件不存在，但 Stat err=%v", err)
	}
}

func TestStore_RejectTraversal(t *testing.T) {
	s := New(t.TempDir(), false)
	for _, k := range []string{"..", ".hidden", `a\b`, ""} {
		if err := s.WriteProviderHTML("pmvhaven", k, []byte("x")); err == nil {
			t.Fatalf("期望非法 key 报错：%q", k)
		}
	}
	if _, err := s.ProviderHTMLPath("../x", key); err == nil {
		t.Fatalf("期望非法 provider 报错")
	}
}
