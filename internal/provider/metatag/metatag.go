// Package metatag 提供基于 <meta> 标签的通用查找工具。
//
// provider 只负责给出“按优先级排列的候选名”，查找规则集中在这里：
// name / property / itemprop / http-equiv / id 任一属性等于候选名（大小写不敏感），
// 取第一个 content 非空的值。
package metatag

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// 依次检查的 key 属性。
var keyAttrs = []string{"name", "property", "itemprop", "http-equiv", "id"}

// Doc 是已解析的 HTML 文档（只读）。
type Doc struct {
	doc *goquery.Document
}

// Parse 把 HTML 解析为 Doc。
//
// contentType 为 HTTP 响应的 Content-Type（可为空）；用于在页面不是 UTF-8 时正确解码。
func Parse(html []byte, contentType string) (*Doc, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return nil, errors.New("html 为空")
	}
	b, err := UTF8(html, contentType)
	if err != nil {
		return nil, err
	}
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return &Doc{doc: d}, nil
}

// UTF8 把 html 转成 UTF-8。编码按 BOM、contentType 的 charset、<meta charset> 的顺序判定，
// 都没有时按内容探测。转码后的页面应配合 "charset=utf-8" 的 contentType 再次解析。
func UTF8(html []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(html), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// First 按 names 的顺序查找，返回第一个 content 非空的 meta 值（已去首尾空白）。
// 全部缺失时返回空串。
func (d *Doc) First(names ...string) string {
	if d == nil || d.doc == nil {
		return ""
	}
	metas := d.doc.Find("meta")
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var out string
		metas.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !hasKey(s, name) {
				return true
			}
			v, _ := s.Attr("content")
			v = strings.TrimSpace(v)
			if v == "" {
				return true
			}
			out = v
			return false
		})
		if out != "" {
			return out
		}
	}
	return ""
}

func hasKey(s *goquery.Selection, name string) bool {
	for _, a := range keyAttrs {
		if v, ok := s.Attr(a); ok && strings.EqualFold(strings.TrimSpace(v), name) {
			return true
		}
	}
	return false
}

// SplitTags 按字面量 ", " 切分（不是正则，也不会吞掉无空格的逗号），丢弃空项，保持顺序。
func SplitTags(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ", ") {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// StrToInt 把形如 "1920" / "1,920" / "+1080" 的文本转成整数。
// 空串或无法解析时返回 nil（缺失），不会返回 0，也不会报错。
func StrToInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.NewReplacer(",", "", ".", "", "+", "").Replace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
