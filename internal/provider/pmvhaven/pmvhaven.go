package pmvhaven

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/John-Robertt/pmvx/internal/domain"
	providerx "github.com/John-Robertt/pmvx/internal/provider"
	"github.com/John-Robertt/pmvx/internal/provider/metatag"
)

// 详情页 URL：https://pmvhaven.com/video/<display id>
var validURL = regexp.MustCompile(`^https?://(?:www\.)?pmvhaven\.com/video/([^/?#&]+)`)

// 每个字段的候选 meta 名（按优先级）。
var (
	metaVideoURL    = []string{"og:video:secure_url", "og:video", "twitter:player"}
	metaTitle       = []string{"og:title", "twitter:title"}
	metaDescription = []string{"og:description", "description"}
	metaTags        = []string{"og:video:tag", "keywords"}
	metaThumbnail   = []string{"og:image", "twitter:image"}
	metaWidth       = []string{"og:video:width", "twitter:player:width"}
	metaHeight      = []string{"og:video:height", "twitter:player:height"}
)

// Provider 实现 PMVHaven 的页面抓取与 meta 解析。
//
// 约束：
// - id 只从页面的 video-id meta 读取；URL 中的标识只作为 display id
// - Fetch/Parse 不做缓存/重试/限速（由上层统一控制）
// - 站点内容统一视为成人内容：age_limit 固定 18
type Provider struct{}

func (Provider) Name() string { return "pmvhaven" }

// Match 返回 URL 中 /video/ 之后的标识（遇到 / ? # & 截止）。
func (Provider) Match(rawURL string) (string, bool) {
	m := validURL.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Fetch 抓取详情页。非 2xx 返回 *providerx.HTTPStatusError；传输错误原样返回。
func (Provider) Fetch(ctx context.Context, pageURL string, c *http.Client) ([]byte, string, error) {
	if c == nil {
		return nil, "", errors.New("http client 不能为空")
	}
	if strings.TrimSpace(pageURL) == "" {
		return nil, "", errors.New("pageURL 不能为空")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &providerx.HTTPStatusError{URL: pageURL, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return b, resp.Header.Get("Content-Type"), nil
}

// Parse 把详情页 HTML 解析为 VideoMeta。缺失的可选字段保持为空，不报错。
func (Provider) Parse(displayID, pageURL string, html []byte, contentType string) (domain.VideoMeta, error) {
	if strings.TrimSpace(displayID) == "" {
		return domain.VideoMeta{}, errors.New("displayID 不能为空")
	}
	doc, err := metatag.Parse(html, contentType)
	if err != nil {
		return domain.VideoMeta{}, err
	}

	videoURL := doc.First(metaVideoURL...)

	return domain.VideoMeta{
		URL:         videoURL,
		ID:          doc.First("video-id"),
		DisplayID:   displayID,
		Title:       doc.First(metaTitle...),
		Description: doc.First(metaDescription...),
		Tags:        metatag.SplitTags(doc.First(metaTags...)),
		Thumbnail:   doc.First(metaThumbnail...),
		Width:       metatag.StrToInt(doc.First(metaWidth...)),
		Height:      metatag.StrToInt(doc.First(metaHeight...)),
		AgeLimit:    domain.AgeLimitAdult,

		Extractor:  "pmvhaven",
		WebpageURL: strings.TrimSpace(pageURL),
		Ext:        domain.ExtFromURL(videoURL),
	}, nil
}
