package provider

import (
	"fmt"
	"strings"
)

// Registry 是 provider 的只读路由表：按注册顺序逐个 Match，第一个命中者胜出。
// 显式列表即可；provider 数量极小，不需要隐式发现。
type Registry struct {
	ordered []Provider
}

func NewRegistry(providers ...Provider) (Registry, error) {
	seen := make(map[string]struct{}, len(providers))
	ordered := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p == nil {
			return Registry{}, fmt.Errorf("provider 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("provider.Name 不能为空")
		}
		if _, ok := seen[name]; ok {
			return Registry{}, fmt.Errorf("重复的 provider：%q", name)
		}
		seen[name] = struct{}{}
		ordered = append(ordered, p)
	}
	return Registry{ordered: ordered}, nil
}

// Resolve 返回第一个能处理 rawURL 的 provider 以及 URL 中的 display id。
// 无人认领时返回 *UnsupportedURLError。
func (r Registry) Resolve(rawURL string) (Provider, string, error) {
	rawURL = strings.TrimSpace(rawURL)
	for _, p := range r.ordered {
		if id, ok := p.Match(rawURL); ok {
			return p, id, nil
		}
	}
	return nil, "", &UnsupportedURLError{URL: rawURL}
}

// Names 按注册顺序返回 provider 名称（用于帮助信息/日志）。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.ordered))
	for _, p := range r.ordered {
		out = append(out, strings.ToLower(strings.TrimSpace(p.Name())))
	}
	return out
}
