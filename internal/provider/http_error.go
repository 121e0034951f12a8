package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrContentNotFound 表示详情页不存在（HTTP 404/410）。
// 用 errors.Is 判断；具体状态码仍可通过 *HTTPStatusError 取得。
var ErrContentNotFound = errors.New("content not found")

// ErrMissingID 表示页面缺少 video-id meta：记录仍然返回，但 ID 为空，交给上层决定如何处理。
var ErrMissingID = errors.New("页面缺少 video-id meta")

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
// provider.Fetch 可以返回该错误，让上层生成更可操作的 error_msg。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

func (e *HTTPStatusError) Is(target error) bool {
	if e == nil || target != ErrContentNotFound {
		return false
	}
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

// UnsupportedURLError 表示路由表中没有任何 provider 认领该 URL。
type UnsupportedURLError struct {
	URL string
}

func (e *UnsupportedURLError) Error() string {
	return fmt.Sprintf("不支持的 URL：%q", e.URL)
}

// IsUnsupportedURL 判断 err 是否为 *UnsupportedURLError。
func IsUnsupportedURL(err error) bool {
	var e *UnsupportedURLError
	return errors.As(err, &e)
}
