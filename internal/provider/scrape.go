package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/pmvx/internal/domain"
)

const (
	StageResolve = "resolve"
	StageFetch   = "fetch"
	StageParse   = "parse"
	StageOK      = "ok"
)

// Attempt 记录一次 provider 阶段（用于解释失败原因）。
// 注意：这是内部执行轨迹，不直接写入 report（由上层决定如何呈现）。
type Attempt struct {
	Provider string // provider name（小写）；resolve 失败时为空
	Stage    string // "resolve" / "fetch" / "parse" / "ok"
	Err      error  // nil when Stage=="ok"
}

// Result 是一次抓取+解析的完整产物。
type Result struct {
	Meta        domain.VideoMeta
	Provider    string
	HTML        []byte // 原始 HTML（用于 cache）
	ContentType string
}

// Extract 解析 rawURL 对应的 provider，抓取详情页并解析元数据。
func Extract(ctx context.Context, reg Registry, rawURL string, c *http.Client) (Result, error) {
	res, _, err := ExtractTrace(ctx, reg, rawURL, c)
	return res, err
}

// ExtractTrace 与 Extract 相同，但额外返回阶段轨迹。
//
// 页面缺少 video-id 时：Result 仍然完整返回（ID 为空），同时返回
// &Error{Stage: "parse", Err: ErrMissingID}，让上层决定是报错还是接受。
func ExtractTrace(ctx context.Context, reg Registry, rawURL string, c *http.Client) (res Result, attempts []Attempt, err error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Result{}, nil, fmt.Errorf("url 不能为空")
	}

	p, displayID, err := reg.Resolve(rawURL)
	if err != nil {
		attempts = append(attempts, Attempt{Stage: StageResolve, Err: err})
		return Result{}, attempts, err
	}
	name := strings.ToLower(p.Name())

	html, ct, ferr := p.Fetch(ctx, rawURL, c)
	if ferr != nil {
		attempts = append(attempts, Attempt{Provider: name, Stage: StageFetch, Err: ferr})
		return Result{}, attempts, &Error{Provider: name, Stage: StageFetch, Err: ferr}
	}

	res, attempt, err := ParseWith(p, displayID, rawURL, html, ct)
	attempts = append(attempts, attempt)
	return res, attempts, err
}

// ParseWith 用指定 provider 解析一份已取得的 HTML（网络或 cache）。
func ParseWith(p Provider, displayID, pageURL string, html []byte, contentType string) (Result, Attempt, error) {
	name := strings.ToLower(p.Name())
	m, perr := p.Parse(displayID, pageURL, html, contentType)
	if perr != nil {
		return Result{}, Attempt{Provider: name, Stage: StageParse, Err: perr}, &Error{Provider: name, Stage: StageParse, Err: perr}
	}

	res := Result{Meta: m, Provider: name, HTML: html, ContentType: contentType}
	if strings.TrimSpace(m.ID) == "" {
		return res, Attempt{Provider: name, Stage: StageParse, Err: ErrMissingID}, &Error{Provider: name, Stage: StageParse, Err: ErrMissingID}
	}
	return res, Attempt{Provider: name, Stage: StageOK}, nil
}

// Error 是 provider 阶段的可追溯错误。
// 上层可以据此把失败归类为 fetch_failed / parse_failed，并写入 report。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // "fetch" 或 "parse"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
