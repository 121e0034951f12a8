package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/pmvx/internal/infra/fsx"
)

// Store 提供 <out>/cache/ 下的文件缓存读写。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - apply：允许写（ReadOnly=false）
// - key 使用 URL 中的 display id（抓取前即可确定，命中时无需联网）
// - HTML 一律以 UTF-8 存储（写入方负责转码），读出后按 HTMLContentType 解析
// - JSON 只写不读：记录当次解析结果，便于人工排查
type Store struct {
	Root     string // <out>（输出根目录）
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

// HTMLContentType 是缓存 HTML 的编码声明。
const HTMLContentType = "text/html; charset=utf-8"

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// ProviderHTMLPath 返回 provider HTML 缓存的绝对路径。
func (s Store) ProviderHTMLPath(provider, key string) (string, error) {
	return s.path(provider, key, ".html")
}

func (s Store) ReadProviderHTML(provider, key string) ([]byte, bool, error) {
	path, err := s.ProviderHTMLPath(provider, key)
	if err != nil {
		return nil, false, err
	}
	return readOptional(path)
}

func (s Store) WriteProviderHTML(provider, key string, html []byte) error {
	return s.write(provider, key, ".html", html)
}

func (s Store) WriteProviderJSON(provider, key string, json []byte) error {
	return s.write(provider, key, ".json", json)
}

func (s Store) path(provider, key, ext string) (string, error) {
	p, err := cleanProvider(provider)
	if err != nil {
		return "", err
	}
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "cache", "providers", p, k+ext), nil
}

func (s Store) write(provider, key, ext string, data []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.path(provider, key, ext)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), data)
}

func readOptional(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

var providerNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func cleanProvider(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "", fmt.Errorf("provider 不能为空")
	}
	if !providerNameRE.MatchString(p) {
		return "", fmt.Errorf("非法 provider：%q", p)
	}
	return p, nil
}

// cleanKey 只做最小约束：避免路径穿越与隐藏文件。display id 本身已由 URL 规则排除了 '/'。
func cleanKey(k string) (string, error) {
	k = strings.TrimSpace(k)
	if k == "" {
		return "", fmt.Errorf("key 不能为空")
	}
	if strings.HasPrefix(k, ".") || strings.ContainsAny(k, `/\`+"\x00") {
		return "", fmt.Errorf("非法 key：%q", k)
	}
	return k, nil
}
