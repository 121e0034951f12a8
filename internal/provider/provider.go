package provider

import (
	"context"
	"net/http"

	"github.com/John-Robertt/pmvx/internal/domain"
)

// Provider 把“站点变化”限制在 provider 包内部；核心流程只依赖统一接口与稳定的 VideoMeta。
//
// 约束：
// - Match 只看 URL，不做网络请求；返回 URL 中的标识（display id）
// - Fetch 不做缓存、不做重试、不做限速（这些由核心 http/cache 层统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出
type Provider interface {
	Name() string
	Match(rawURL string) (displayID string, ok bool)
	Fetch(ctx context.Context, pageURL string, c *http.Client) (html []byte, contentType string, err error)
	Parse(displayID, pageURL string, html []byte, contentType string) (domain.VideoMeta, error)
}
