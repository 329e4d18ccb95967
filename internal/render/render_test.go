package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"collageAPI/internal/asset"
	"collageAPI/internal/scene"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	fsys := fstest.MapFS{
		"images/dog.png":  {Data: solidPNG(t, 100, 20, red)},
		"images/bg01.jpg": {Data: solidPNG(t, 60, 30, blue)},
	}
	r, err := New(asset.NewLoader(fsys, asset.DefaultTable()))
	require.NoError(t, err)
	return r
}

func near(c color.Color, want color.RGBA) bool {
	r, g, b, _ := c.RGBA()
	return math.Abs(float64(r>>8)-float64(want.R)) < 8 &&
		math.Abs(float64(g>>8)-float64(want.G)) < 8 &&
		math.Abs(float64(b>>8)-float64(want.B)) < 8
}

func TestRender_BackgroundCoversCanvas(t *testing.T) {
	img, err := newRenderer(t).Render(context.Background(), "bg01", nil)
	require.NoError(t, err)

	assert.Equal(t, scene.CanvasWidth, img.Bounds().Dx())
	assert.Equal(t, scene.CanvasHeight, img.Bounds().Dy())
	for _, p := range []image.Point{{2, 2}, {600, 315}, {1197, 627}} {
		assert.True(t, near(img.At(p.X, p.Y), blue), "pixel %v is %v", p, img.At(p.X, p.Y))
	}
}

func TestRender_RotatedSticker(t *testing.T) {
	objects := []scene.Object{{
		X: 600, Y: 300, Rotation: math.Pi / 2,
		Content: scene.ImageContent{Key: "img01", Width: 100, Height: 20},
	}}
	img, err := newRenderer(t).Render(context.Background(), "", objects)
	require.NoError(t, err)

	// standing upright after a quarter turn
	assert.True(t, near(img.At(600, 300), red))
	assert.True(t, near(img.At(600, 340), red))
	assert.True(t, near(img.At(640, 300), color.RGBA{255, 255, 255, 255}))
}

func TestRender_Text(t *testing.T) {
	objects := []scene.Object{{
		X: 200, Y: 200,
		Content: scene.TextContent{Value: "HHHH", FontSize: 80},
	}}
	img, err := newRenderer(t).Render(context.Background(), "", objects)
	require.NoError(t, err)

	dark := 0
	for y := 150; y < 250; y++ {
		for x := 100; x < 300; x++ {
			if near(img.At(x, y), color.RGBA{A: 255}) {
				dark++
			}
		}
	}
	assert.Greater(t, dark, 100)
}

func TestRender_SkipsMissingTexture(t *testing.T) {
	objects := []scene.Object{{X: 10, Y: 10, Content: scene.ImageContent{Key: "img05", Width: 10, Height: 10}}}
	_, err := newRenderer(t).Render(context.Background(), "bg02", objects)
	assert.NoError(t, err)
}

func TestRender_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	objects := []scene.Object{{Content: scene.TextContent{Value: "x", FontSize: 10}}}
	_, err := newRenderer(t).Render(ctx, "", objects)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDataURL(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	url, err := DataURL(img, DefaultJPEGQuality)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
}

func TestRasterizeText_RejectsOversizedLabels(t *testing.T) {
	r := newRenderer(t)

	_, err := r.rasterizeText(scene.TextContent{Value: "Hello", FontSize: 4000})
	assert.ErrorIs(t, err, ErrLabelTooLarge)

	_, err = r.rasterizeText(scene.TextContent{Value: "Hello", FontSize: 200000})
	assert.ErrorIs(t, err, ErrLabelTooLarge)

	label, err := r.rasterizeText(scene.TextContent{Value: "Hello", FontSize: 300})
	require.NoError(t, err)
	assert.LessOrEqual(t, label.Bounds().Dx()*label.Bounds().Dy(), maxLabelCanvases*scene.CanvasWidth*scene.CanvasHeight)
}

func TestRender_SkipsOversizedText(t *testing.T) {
	objects := []scene.Object{
		{X: 600, Y: 300, Content: scene.TextContent{Value: "Hello", FontSize: 200000}},
		{X: 600, Y: 300, Rotation: math.Pi / 2, Content: scene.ImageContent{Key: "img01", Width: 100, Height: 20}},
	}
	img, err := newRenderer(t).Render(context.Background(), "", objects)
	require.NoError(t, err)
	assert.True(t, near(img.At(600, 340), red))
}

func TestRender_Concurrent(t *testing.T) {
	r := newRenderer(t)
	objects := []scene.Object{{X: 100, Y: 100, Content: scene.TextContent{Value: "hi", FontSize: 40}}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(size float64) {
			defer wg.Done()
			objs := []scene.Object{{X: 100, Y: 100, Content: scene.TextContent{Value: "hi", FontSize: size}}}
			_, err := r.Render(context.Background(), "", append(objs, objects...))
			assert.NoError(t, err)
		}(float64(20 + i))
	}
	wg.Wait()
}
