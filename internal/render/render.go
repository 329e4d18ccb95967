// Package render draws a collage into a raster image, the server-side
// counterpart of the editor's canvas export.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"collageAPI/internal/asset"
	"collageAPI/internal/scene"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

// DefaultJPEGQuality matches the quality the editor exports with.
const DefaultJPEGQuality = 50

type Textures interface {
	LoadObject(ctx context.Context, key string) (*asset.Texture, error)
	LoadBackground(ctx context.Context, key string) (*asset.Texture, error)
}

type Renderer struct {
	textures Textures
	width    int
	height   int
	text     color.Color

	font *opentype.Font
}

// ErrLabelTooLarge is returned for text whose bitmap would exceed
// maxLabelCanvases canvases.
var ErrLabelTooLarge = errors.New("text label too large to render")

const maxLabelCanvases = 4

func New(textures Textures) (*Renderer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &Renderer{
		textures: textures,
		width:    scene.CanvasWidth,
		height:   scene.CanvasHeight,
		text:     color.Black,
		font:     f,
	}, nil
}

// Render composes the background and objects, later objects on top.
// Stickers whose texture cannot be loaded are left out.
func (r *Renderer) Render(ctx context.Context, bg string, objects []scene.Object) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	if bg != "" {
		if err := r.drawBackground(ctx, dst, bg); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warnf("Rendering without background %s: %v", bg, err)
		}
	}

	for i, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch content := obj.Content.(type) {
		case scene.ImageContent:
			tex, err := r.textures.LoadObject(ctx, content.Key)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Warnf("Skipping object %d: %v", i, err)
				continue
			}
			drawTransformed(dst, tex.Image, obj.X, obj.Y, content.Width, content.Height, obj.Rotation)
		case scene.TextContent:
			label, err := r.rasterizeText(content)
			if err != nil {
				log.Warnf("Skipping text object %d: %v", i, err)
				continue
			}
			if label == nil {
				continue
			}
			b := label.Bounds()
			drawTransformed(dst, label, obj.X, obj.Y, float64(b.Dx()), float64(b.Dy()), obj.Rotation)
		}
	}

	return dst, nil
}

// drawBackground scales the background to cover the canvas, centred.
func (r *Renderer) drawBackground(ctx context.Context, dst *image.RGBA, key string) error {
	tex, err := r.textures.LoadBackground(ctx, key)
	if err != nil {
		return err
	}
	aspect := tex.AspectRatio()
	w := math.Max(float64(r.width), float64(r.height)*aspect)
	h := w / aspect
	drawTransformed(dst, tex.Image, float64(r.width)/2, float64(r.height)/2, w, h, 0)
	return nil
}

// rasterizeText draws t into its own bitmap. Faces are built per call since
// they are not safe for concurrent use.
func (r *Renderer) rasterizeText(t scene.TextContent) (*image.RGBA, error) {
	if t.FontSize > float64(maxLabelCanvases*max(r.width, r.height)) {
		return nil, fmt.Errorf("font size %g: %w", t.FontSize, ErrLabelTooLarge)
	}

	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{Size: t.FontSize, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, err
	}
	defer face.Close()

	m := face.Metrics()
	w := font.MeasureString(face, t.Value).Ceil()
	h := (m.Ascent + m.Descent).Ceil()
	if w <= 0 || h <= 0 {
		return nil, nil
	}
	if int64(w)*int64(h) > int64(maxLabelCanvases)*int64(r.width)*int64(r.height) {
		return nil, fmt.Errorf("label %dx%d: %w", w, h, ErrLabelTooLarge)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(r.text),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: m.Ascent},
	}
	d.DrawString(t.Value)
	return img, nil
}

// drawTransformed draws src scaled to w x h, rotated by rotation radians
// around its centre, with that centre at (cx, cy).
func drawTransformed(dst draw.Image, src image.Image, cx, cy, w, h, rotation float64) {
	sr := src.Bounds()
	if sr.Empty() || w <= 0 || h <= 0 {
		return
	}
	sx := w / float64(sr.Dx())
	sy := h / float64(sr.Dy())
	sin, cos := math.Sincos(rotation)

	a, b := cos*sx, -sin*sy
	d, e := sin*sx, cos*sy
	c := cx - cos*w/2 + sin*h/2
	f := cy - sin*w/2 - cos*h/2

	// source coordinates are absolute, shift by the bounds origin
	c -= a*float64(sr.Min.X) + b*float64(sr.Min.Y)
	f -= d*float64(sr.Min.X) + e*float64(sr.Min.Y)

	draw.BiLinear.Transform(dst, f64.Aff3{a, b, c, d, e, f}, src, sr, draw.Over, nil)
}

func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// DataURL encodes img as a JPEG data URL, the form the share endpoint expects.
func DataURL(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, img, quality); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
