package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// PosterMaxWidth 是 poster.jpg 的最大宽度；更宽的缩略图按比例缩小。
const PosterMaxWidth = 1920

// PosterJPEG 把缩略图统一编码为 JPEG（用于 poster.jpg）。
//
// 约束：
// - 输入允许是 JPEG/PNG/GIF/BMP/TIFF（GIF 取首帧），按 EXIF 方向自动旋转
// - 输出固定为 JPEG；透明区域铺白底
// - 宽度超过 PosterMaxWidth 时等比缩小；不裁切
func PosterJPEG(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.New("缩略图为空")
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}
	if b.Dx() > PosterMaxWidth {
		img = imaging.Resize(img, PosterMaxWidth, 0, imaging.Lanczos)
		b = img.Bounds()
	}

	dst := imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.White), img, image.Point{}, 1.0)

	var out bytes.Buffer
	// 95 在体积与质量之间比较均衡。
	if err := imaging.Encode(&out, dst, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
