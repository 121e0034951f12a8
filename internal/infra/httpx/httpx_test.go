package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestNewMetaClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewMetaClient("http://127.0.0.1:8080", "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives {
		t.Fatalf("期望禁用 keep-alive，但 Base.DisableKeepAlives=false")
	}
	if !tr.DisableKeepAlives {
		t.Fatalf("期望设置 Request.Close=true 的额外保险，但 DisableKeepAlives=false")
	}
}

func TestNewMetaClient_NoProxyKeepsDefault(t *testing.T) {
	c, err := NewMetaClient("", "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if tr.Base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive，但 Base.DisableKeepAlives=true")
	}
}

func TestNewImageClient_ImageProxySwitch(t *testing.T) {
	c1, err := NewImageClient("http://127.0.0.1:8080", false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr1 := c1.Transport.(*Transport)
	if tr1.Base.Proxy != nil {
		t.Fatalf("image_proxy=false 时不应走代理")
	}
	if tr1.Base.DisableKeepAlives {
		t.Fatalf("image_proxy=false 时不应禁用 keep-alive")
	}

	c2, err := NewImageClient("http://127.0.0.1:8080", true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr2 := c2.Transport.(*Transport)
	if tr2.Base.Proxy == nil {
		t.Fatalf("image_proxy=true 时应走代理")
	}
	if !tr2.Base.DisableKeepAlives {
		t.Fatalf("image_proxy=true 时应禁用 keep-alive")
	}
}

func TestNewMetaClient_InvalidProxyURL(t *testing.T) {
	_, err := NewMetaClient("http://[::1", "")
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestTransport_FixedUserAgent(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	c, err := NewMetaClient("", "pmvx-test/1.0")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()
	if ua, _ := got.Load().(string); ua != "pmvx-test/1.0" {
		t.Fatalf("期望固定 UA，实际=%q", ua)
	}
}

func TestTransport_PoolUserAgentWhenUnset(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	c, err := NewMetaClient("", "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()
	ua, _ := got.Load().(string)
	found := false
	for _, u := range globalUA.uas {
		if u == ua {
			found = true
		}
	}
	if !found {
		t.Fatalf("期望来自 UA 池，实际=%q", ua)
	}
}

type failingRT struct{ calls int }

func (f *failingRT) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, errors.New("boom")
}

func TestTransport_BoundedRetry(t *testing.T) {
	base := &failingRT{}
	tr := &Transport{Base: &http.Transport{}, ua: globalUA, RetryMax: 2}
	tr.Base.RegisterProtocol("stub", base)

	req, _ := http.NewRequest(http.MethodGet, "stub://example.test/video/x", nil)
	if _, err := tr.RoundTrip(req); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if base.calls != 3 {
		t.Fatalf("RetryMax=2 应最多 3 次尝试，实际 %d", base.calls)
	}
}
