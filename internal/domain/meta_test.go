package domain

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestVideoMeta_MarshalJSON_NilTagsAndAbsentSize(t *testing.T) {
	b, err := json.Marshal(VideoMeta{ID: "x", AgeLimit: AgeLimitAdult})
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"tags":[]`)) {
		t.Fatalf("tags 应输出为空数组：%s", string(b))
	}
	if !bytes.Contains(b, []byte(`"width":null`)) || !bytes.Contains(b, []byte(`"height":null`)) {
		t.Fatalf("缺失的宽高应输出为 null：%s", string(b))
	}
	if !bytes.Contains(b, []byte(`"age_limit":18`)) {
		t.Fatalf("age_limit 不正确：%s", string(b))
	}
}

func TestVideoMeta_Key(t *testing.T) {
	if got := (VideoMeta{ID: "abc", DisplayID: "slug_abc"}).Key(); got != "abc" {
		t.Fatalf("期望 Key=abc，实际=%q", got)
	}
	if got := (VideoMeta{DisplayID: "slug_abc"}).Key(); got != "slug_abc" {
		t.Fatalf("ID 缺失时应回退 DisplayID，实际=%q", got)
	}
}

func TestExtFromURL(t *testing.T) {
	cases := map[string]string{
		"https://video.example.test/a/b.mp4":             "mp4",
		"https://video.example.test/a/b.WEBM?token=1":    "webm",
		"https://video.example.test/play/65b59829a16402": "mp4",
		"": "mp4",
	}
	for in, want := range cases {
		if got := ExtFromURL(in); got != want {
			t.Fatalf("ExtFromURL(%q) 期望 %q，实际 %q", in, want, got)
		}
	}
}
