package nfo

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/John-Robertt/pmvx/internal/domain"
)

type movie struct {
	XMLName xml.Name `xml:"movie"`

	Title         string `xml:"title"`
	OriginalTitle string `xml:"originaltitle,omitempty"`
	SortTitle     string `xml:"sorttitle"`
	Plot          string `xml:"plot,omitempty"`

	UniqueID *uniqueID `xml:"uniqueid,omitempty"`

	MPAA string `xml:"mpaa,omitempty"`

	Poster string `xml:"poster,omitempty"`
	Thumb  string `xml:"thumb,omitempty"`
	Cover  string `xml:"cover,omitempty"`

	Tags []string `xml:"tag,omitempty"`

	FileInfo *fileInfo `xml:"fileinfo,omitempty"`

	Website string `xml:"website,omitempty"`
	Trailer string `xml:"trailer,omitempty"`
}

type uniqueID struct {
	Type    string `xml:"type,attr"`
	Default bool   `xml:"default,attr"`
	Value   string `xml:",chardata"`
}

type fileInfo struct {
	Video streamVideo `xml:"streamdetails>video"`
}

type streamVideo struct {
	Width  int `xml:"width,omitempty"`
	Height int `xml:"height,omitempty"`
}

// Encode 把 VideoMeta 转成 Kodi/Jellyfin/Emby 可读取的 NFO（XML）。
//
// 规则：
// - 字段缺失允许为空；tag 去空白、去重、保持输入顺序
// - title 为空时回退到 display id（避免生成空 title）
// - mpaa 由 age_limit 推导（18 => "R18+"）；age_limit<=0 时省略
func Encode(meta domain.VideoMeta) ([]byte, error) {
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = strings.TrimSpace(meta.DisplayID)
	}

	m := movie{
		Title:     title,
		SortTitle: title,
		Plot:      strings.TrimSpace(meta.Description),

		MPAA: mpaa(meta.AgeLimit),

		Poster: "poster.jpg",
		Thumb:  "poster.jpg",
		Cover:  strings.TrimSpace(meta.Thumbnail),

		Tags: normList(meta.Tags),

		Website: strings.TrimSpace(meta.WebpageURL),
		Trailer: strings.TrimSpace(meta.URL),
	}
	if meta.DisplayID != "" && meta.DisplayID != title {
		m.OriginalTitle = strings.TrimSpace(meta.DisplayID)
	}
	if id := strings.TrimSpace(meta.ID); id != "" {
		t := strings.TrimSpace(meta.Extractor)
		if t == "" {
			t = "pmvx"
		}
		m.UniqueID = &uniqueID{Type: t, Default: true, Value: id}
	}
	if meta.Width != nil || meta.Height != nil {
		fi := &fileInfo{}
		if meta.Width != nil {
			fi.Video.Width = *meta.Width
		}
		if meta.Height != nil {
			fi.Video.Height = *meta.Height
		}
		m.FileInfo = fi
	}

	b, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	// 约定：输出带 standalone="yes" 的 XML 头，便于与常见刮削器产物兼容。
	const header = `<?xml version="1.0" encoding="UTF-8" standalone="yes" ?>` + "\n"
	return append([]byte(header), b...), nil
}

func mpaa(ageLimit int) string {
	if ageLimit <= 0 {
		return ""
	}
	return fmt.Sprintf("R%d+", ageLimit)
}

func normList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
