// Package imagecrop turns uploaded images into hero images of a fixed
// aspect ratio: centered crop, scale to the target canvas, JPEG encode.
package imagecrop

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoder

	"github.com/garyellow/line-carousel-composer/internal/carousel"
	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
	xdraw "golang.org/x/image/draw"
)

const (
	// DefaultQuality matches the editor's 0.95 JPEG quality.
	DefaultQuality = 95

	// maxSourcePixels bounds the decoded raster.
	maxSourcePixels = 64 * 1024 * 1024

	msgCropFailed = "圖片裁切失敗，請重新上傳圖片"
)

// Result is an encoded crop.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Pipeline crops images. The zero value is not usable; use New.
type Pipeline struct {
	quality int
	scaler  xdraw.Scaler
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithQuality overrides the JPEG quality (1-100).
func WithQuality(q int) Option {
	return func(p *Pipeline) {
		if q >= 1 && q <= 100 {
			p.quality = q
		}
	}
}

// WithScaler overrides the resampling kernel.
func WithScaler(s xdraw.Scaler) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.scaler = s
		}
	}
}

// New creates a pipeline using Catmull-Rom resampling.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{quality: DefaultQuality, scaler: xdraw.CatmullRom}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Crop decodes src, crops it around the center to ratio and scales it to the
// ratio's canvas (900x900 or 1920x1000).
// Failures are ErrCropFailed wrapping ErrImageDecode or ErrCanvas.
func (p *Pipeline) Crop(ctx context.Context, src []byte, ratio carousel.AspectRatio) (Result, error) {
	w := domerrors.NewWrapper("imagecrop", "crop")

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return Result{}, w.Wrap(cropErr(domerrors.ErrImageDecode, err), msgCropFailed)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxSourcePixels {
		return Result{}, w.Wrap(cropErr(domerrors.ErrCanvas, fmt.Errorf("source %dx%d", cfg.Width, cfg.Height)), msgCropFailed)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return Result{}, w.Wrap(cropErr(domerrors.ErrImageDecode, err), msgCropFailed)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tw, th := ratio.Dimensions()
	area := CropArea(img.Bounds(), tw, th)
	if area.Empty() {
		return Result{}, w.Wrap(cropErr(domerrors.ErrCanvas, fmt.Errorf("empty crop of %v", img.Bounds())), msgCropFailed)
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	// JPEG has no alpha; transparent PNG areas become white
	xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)
	p.scaler.Scale(dst, dst.Bounds(), img, area, xdraw.Over, nil)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.quality}); err != nil {
		return Result{}, w.Wrap(cropErr(domerrors.ErrCanvas, err), msgCropFailed)
	}

	return Result{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       tw,
		Height:      th,
	}, nil
}

// CropArea returns the largest rectangle of the target ratio centered in b.
// A source wider than the target loses width, otherwise it loses height.
func CropArea(b image.Rectangle, targetW, targetH int) image.Rectangle {
	sw, sh := b.Dx(), b.Dy()
	if sw <= 0 || sh <= 0 || targetW <= 0 || targetH <= 0 {
		return image.Rectangle{}
	}

	cw, ch := sw, sh
	if sw*targetH > sh*targetW {
		cw = (sh*targetW + targetH/2) / targetH
	} else {
		ch = (sw*targetH + targetW/2) / targetW
	}
	cw = max(1, min(cw, sw))
	ch = max(1, min(ch, sh))

	x := b.Min.X + (sw-cw)/2
	y := b.Min.Y + (sh-ch)/2
	return image.Rect(x, y, x+cw, y+ch)
}

func cropErr(kind, cause error) error {
	return fmt.Errorf("%w: %w: %w", domerrors.ErrCropFailed, kind, cause)
}
