package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/John-Robertt/pmvx/internal/domain"
)

type stubProvider struct {
	name   string
	prefix string

	fetchErr error
	parseErr error

	html []byte
	meta domain.VideoMeta

	fetchCalls int
	parseCalls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Match(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, p.prefix) {
		return "", false
	}
	id := strings.TrimPrefix(rawURL, p.prefix)
	return id, id != ""
}

func (p *stubProvider) Fetch(ctx context.Context, pageURL string, c *http.Client) ([]byte, string, error) {
	p.fetchCalls++
	if p.fetchErr != nil {
		return nil, "", p.fetchErr
	}
	return p.html, "text/html", nil
}

func (p *stubProvider) Parse(displayID, pageURL string, html []byte, contentType string) (domain.VideoMeta, error) {
	p.parseCalls++
	if p.parseErr != nil {
		return domain.VideoMeta{}, p.parseErr
	}
	m := p.meta
	m.DisplayID = displayID
	m.WebpageURL = pageURL
	return m, nil
}

func TestRegistry_RejectsDuplicateAndEmpty(t *testing.T) {
	if _, err := NewRegistry(&stubProvider{name: "a"}, &stubProvider{name: "A "}); err == nil {
		t.Fatalf("期望重复 provider 报错，但得到 nil")
	}
	if _, err := NewRegistry(&stubProvider{name: " "}); err == nil {
		t.Fatalf("期望空 name 报错，但得到 nil")
	}
	if _, err := NewRegistry(nil); err == nil {
		t.Fatalf("期望 nil provider 报错，但得到 nil")
	}
}

func TestRegistry_ResolveFirstMatchWins(t *testing.T) {
	first := &stubProvider{name: "first", prefix: "https://example.test/v/"}
	second := &stubProvider{name: "second", prefix: "https://example.test/"}

	reg, err := NewRegistry(first, second)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	p, id, err := reg.Resolve("https://example.test/v/abc")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if p.Name() != "first" || id != "abc" {
		t.Fatalf("期望 first/abc，实际 %s/%s", p.Name(), id)
	}

	p, id, err = reg.Resolve("https://example.test/other")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if p.Name() != "second" || id != "other" {
		t.Fatalf("期望 second/other，实际 %s/%s", p.Name(), id)
	}

	_, _, err = reg.Resolve("https://nope.test/x")
	if !IsUnsupportedURL(err) {
		t.Fatalf("期望 UnsupportedURLError，实际：%v", err)
	}
	if got := reg.Names(); len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("Names 顺序不正确：%v", got)
	}
}

func TestExtractTrace_OK(t *testing.T) {
	p := &stubProvider{name: "stub", prefix: "https://example.test/v/", html: []byte("<html/>"), meta: domain.VideoMeta{ID: "real-id", Title: "t"}}
	reg, err := NewRegistry(p)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	res, attempts, err := ExtractTrace(context.Background(), reg, "https://example.test/v/slug", nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.Provider != "stub" || res.Meta.ID != "real-id" || res.Meta.DisplayID != "slug" {
		t.Fatalf("结果不符合预期：%+v", res)
	}
	if string(res.HTML) != "<html/>" || res.ContentType != "text/html" {
		t.Fatalf("HTML/ContentType 未透传：%+v", res)
	}
	if len(attempts) != 1 || attempts[0].Stage != StageOK || attempts[0].Err != nil {
		t.Fatalf("attempts 不符合预期：%+v", attempts)
	}
}

func TestExtractTrace_FetchErrorPropagates(t *testing.T) {
	cause := &HTTPStatusError{URL: "https://example.test/v/slug", StatusCode: http.StatusNotFound}
	p := &stubProvider{name: "stub", prefix: "https://example.test/v/", fetchErr: cause}
	reg, _ := NewRegistry(p)

	_, attempts, err := ExtractTrace(context.Background(), reg, "https://example.test/v/slug", nil)
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Stage != StageFetch {
		t.Fatalf("期望 fetch 阶段的 *Error，实际：%v", err)
	}
	if !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("404 应匹配 ErrContentNotFound：%v", err)
	}
	if p.parseCalls != 0 {
		t.Fatalf("fetch 失败后不应 parse，实际调用 %d 次", p.parseCalls)
	}
	if len(attempts) != 1 || attempts[0].Stage != StageFetch {
		t.Fatalf("attempts 不符合预期：%+v", attempts)
	}
}

func TestExtractTrace_ParseError(t *testing.T) {
	p := &stubProvider{name: "stub", prefix: "https://example.test/v/", html: []byte("<bad/>"), parseErr: errors.New("parse fail")}
	reg, _ := NewRegistry(p)

	_, _, err := ExtractTrace(context.Background(), reg, "https://example.test/v/slug", nil)
	var pe *Error
	if !errors.As(err, &pe) || pe.Stage != StageParse {
		t.Fatalf("期望 parse 阶段的 *Error，实际：%v", err)
	}
}

func TestExtractTrace_MissingIDKeepsRecord(t *testing.T) {
	p := &stubProvider{name: "stub", prefix: "https://example.test/v/", html: []byte("<html/>"), meta: domain.VideoMeta{Title: "t"}}
	reg, _ := NewRegistry(p)

	res, attempts, err := ExtractTrace(context.Background(), reg, "https://example.test/v/slug", nil)
	if !errors.Is(err, ErrMissingID) {
		t.Fatalf("期望 ErrMissingID，实际：%v", err)
	}
	if res.Meta.Title != "t" || res.Meta.ID != "" || res.Meta.DisplayID != "slug" {
		t.Fatalf("缺少 ID 时记录仍应返回：%+v", res.Meta)
	}
	if len(attempts) != 1 || attempts[0].Stage != StageParse {
		t.Fatalf("attempts 不符合预期：%+v", attempts)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	reg, _ := NewRegistry(&stubProvider{name: "stub", prefix: "https://example.test/v/"})
	_, err := Extract(context.Background(), reg, "https://other.test/v/slug", nil)
	if !IsUnsupportedURL(err) {
		t.Fatalf("期望 UnsupportedURLError，实际：%v", err)
	}
	if _, err := Extract(context.Background(), reg, "  ", nil); err == nil {
		t.Fatalf("空 URL 期望错误，但得到 nil")
	}
}
