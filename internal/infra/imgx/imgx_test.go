package imgx

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestPosterJPEG_FromPNGWithAlpha(t *testing.T) {
	// 左半透明、右半红色：透明区域应铺白底。
	const (
		w = 200
		h = 100
	)
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				src.Set(x, y, color.NRGBA{0, 0, 0, 0})
			} else {
				src.Set(x, y, color.NRGBA{255, 0, 0, 255})
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode png 失败：%v", err)
	}

	out, err := PosterJPEG(buf.Bytes())
	if err != nil {
		t.Fatalf("PosterJPEG 失败：%v", err)
	}

	got, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode poster jpeg 失败：%v", err)
	}
	gb := got.Bounds()
	if gb.Dx() != w || gb.Dy() != h {
		t.Fatalf("尺寸不符合预期：got=%dx%d want=%dx%d", gb.Dx(), gb.Dy(), w, h)
	}

	// JPEG 有损，允许一定偏差。
	left := color.RGBAModel.Convert(got.At(w/4, h/2)).(color.RGBA)
	if left.R < 200 || left.G < 200 || left.B < 200 {
		t.Fatalf("透明区域应为白色，实际=%v", left)
	}
	right := color.RGBAModel.Convert(got.At(w*3/4, h/2)).(color.RGBA)
	if right.R < 200 || right.G > 60 || right.B > 60 {
		t.Fatalf("不透明区域应保持红色，实际=%v", right)
	}
}

func TestPosterJPEG_Empty(t *testing.T) {
	if _, err := PosterJPEG(nil); err == nil {
		t.Fatalf("期望空输入返回错误")
	}
}

func TestPosterJPEG_NotAnImage(t *testing.T) {
	if _, err := PosterJPEG([]byte("<html>blocked</html>")); err == nil {
		t.Fatalf("期望非图片输入返回错误")
	}
}

func TestPosterJPEG_DownscalesWideImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, PosterMaxWidth*2, 100))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode png 失败：%v", err)
	}

	out, err := PosterJPEG(buf.Bytes())
	if err != nil {
		t.Fatalf("PosterJPEG 失败：%v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode poster jpeg 失败：%v", err)
	}
	if cfg.Width != PosterMaxWidth || cfg.Height != 50 {
		t.Fatalf("应等比缩小到 %dx50，实际 %dx%d", PosterMaxWidth, cfg.Width, cfg.Height)
	}
}
