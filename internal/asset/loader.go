package asset

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"sync"

	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

// Texture is a decoded asset image.
type Texture struct {
	Key    string
	Image  image.Image
	Width  int
	Height int
}

func (t *Texture) AspectRatio() float64 {
	if t.Height == 0 {
		return 1
	}
	return float64(t.Width) / float64(t.Height)
}

// Loader decodes asset files from fsys and keeps them cached by key.
type Loader struct {
	fsys  fs.FS
	table *Table

	mu    sync.Mutex
	cache map[string]*Texture
}

func NewLoader(fsys fs.FS, table *Table) *Loader {
	return &Loader{
		fsys:  fsys,
		table: table,
		cache: make(map[string]*Texture),
	}
}

func (l *Loader) Table() *Table {
	return l.table
}

func (l *Loader) LoadObject(ctx context.Context, key string) (*Texture, error) {
	obj, ok := l.table.Object(key)
	if !ok {
		return nil, fmt.Errorf("object %q: %w", key, ErrUnknownAsset)
	}
	return l.load(ctx, key, obj.File)
}

func (l *Loader) LoadBackground(ctx context.Context, key string) (*Texture, error) {
	bg, ok := l.table.Background(key)
	if !ok {
		return nil, fmt.Errorf("background %q: %w", key, ErrUnknownAsset)
	}
	return l.load(ctx, key, bg.File)
}

func (l *Loader) load(ctx context.Context, key, file string) (*Texture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	if tex, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return tex, nil
	}
	l.mu.Unlock()

	f, err := l.fsys.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset %s: %w", file, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode asset %s: %w", file, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	tex := &Texture{Key: key, Image: img, Width: b.Dx(), Height: b.Dy()}
	log.Debugf("Loaded asset %s (%s, %dx%d)", key, format, tex.Width, tex.Height)

	l.mu.Lock()
	l.cache[key] = tex
	l.mu.Unlock()
	return tex, nil
}
