package domain

import (
	"encoding/json"
	"path"
	"strings"
)

// AgeLimitAdult 是成人站点的固定年龄限制。
const AgeLimitAdult = 18

// VideoMeta 是 provider 从详情页解析得到的结构化元数据。
//
// 约束：
// - ID 只能来自页面（video-id meta），DisplayID 只能来自输入 URL；两者互不推导
// - 字段缺失允许为空；Width/Height 缺失为 nil（不是 0）
// - 解析后不再修改（每次调用重新构造）
type VideoMeta struct {
	URL         string   `json:"url"`
	ID          string   `json:"id"`
	DisplayID   string   `json:"display_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Thumbnail   string   `json:"thumbnail"`
	Width       *int     `json:"width"`
	Height      *int     `json:"height"`
	AgeLimit    int      `json:"age_limit"`

	Extractor  string `json:"extractor"`
	WebpageURL string `json:"webpage_url"`
	Ext        string `json:"ext"`
}

// Key 返回用于目录/缓存命名的稳定主键：优先 ID，缺失时回退 DisplayID。
func (m VideoMeta) Key() string {
	if id := strings.TrimSpace(m.ID); id != "" {
		return id
	}
	return strings.TrimSpace(m.DisplayID)
}

// MarshalJSON 保证 tags 永远输出为数组（而不是 null）。
func (m VideoMeta) MarshalJSON() ([]byte, error) {
	type Alias VideoMeta
	a := Alias(m)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return json.Marshal(a)
}

// ExtFromURL 从视频源 URL 的路径猜测扩展名；无法判断时回退 mp4。
func ExtFromURL(u string) string {
	u = strings.TrimSpace(u)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u)), ".")
	switch ext {
	case "mp4", "webm", "mkv", "mov", "m4v", "m3u8":
		return ext
	default:
		return "mp4"
	}
}
