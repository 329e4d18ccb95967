package scene

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"collageAPI/internal/asset"
)

const (
	CanvasWidth     = 1200
	CanvasHeight    = 630
	DefaultFontSize = 50
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrWrongContent = errors.New("operation does not apply to this object")
	ErrInvalidSize  = errors.New("size must be positive")
	ErrNoTextures   = errors.New("scene has no texture source")
)

// TextureSource loads sticker textures; asset.Loader satisfies it.
type TextureSource interface {
	LoadObject(ctx context.Context, key string) (*asset.Texture, error)
}

type node struct {
	obj    Object
	aspect float64
}

// Scene owns the placed objects of one collage, ordered back to front.
type Scene struct {
	textures TextureSource

	width  float64
	height float64
	jitter float64
	rnd    *rand.Rand

	mu    sync.Mutex
	nodes []*node
}

type Option func(*Scene)

// WithJitter sets how far (in either direction) new objects land from the
// canvas centre. Zero places them exactly in the centre.
func WithJitter(jitter float64) Option {
	return func(s *Scene) {
		s.jitter = jitter
	}
}

func WithRand(r *rand.Rand) Option {
	return func(s *Scene) {
		s.rnd = r
	}
}

func New(textures TextureSource, opts ...Option) *Scene {
	s := &Scene{
		textures: textures,
		width:    CanvasWidth,
		height:   CanvasHeight,
		jitter:   50,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	return s
}

// must hold s.mu
func (s *Scene) spawnPoint() (float64, float64) {
	x, y := s.width/2, s.height/2
	if s.jitter > 0 {
		x += s.rnd.Float64()*2*s.jitter - s.jitter
		y += s.rnd.Float64()*2*s.jitter - s.jitter
	}
	return x, y
}

func (s *Scene) CreateTextObject(value string) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, y := s.spawnPoint()
	n := &node{obj: Object{
		Handle:  NewHandle(),
		X:       x,
		Y:       y,
		Content: TextContent{Value: value, FontSize: DefaultFontSize},
	}}
	s.nodes = append(s.nodes, n)
	return n.obj.Handle
}

// CreateImageObject loads the sticker texture and appends a sprite one eighth
// of the canvas wide. The load happens outside the lock and may block.
func (s *Scene) CreateImageObject(ctx context.Context, key string) (Handle, error) {
	if s.textures == nil {
		return Handle{}, ErrNoTextures
	}
	tex, err := s.textures.LoadObject(ctx, key)
	if err != nil {
		return Handle{}, err
	}

	aspect := tex.AspectRatio()
	width := s.width / 8

	s.mu.Lock()
	defer s.mu.Unlock()

	x, y := s.spawnPoint()
	n := &node{
		obj: Object{
			Handle:  NewHandle(),
			X:       x,
			Y:       y,
			Content: ImageContent{Key: key, Width: width, Height: width / aspect},
		},
		aspect: aspect,
	}
	s.nodes = append(s.nodes, n)
	return n.obj.Handle, nil
}

// must hold s.mu
func (s *Scene) find(h Handle) (int, *node) {
	for i, n := range s.nodes {
		if n.obj.Handle == h {
			return i, n
		}
	}
	return -1, nil
}

func (s *Scene) update(h Handle, fn func(n *node) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, n := s.find(h)
	if n == nil {
		return fmt.Errorf("%s: %w", h, ErrNotFound)
	}
	return fn(n)
}

func (s *Scene) SetPosition(h Handle, x, y float64) error {
	return s.update(h, func(n *node) error {
		n.obj.X = x
		n.obj.Y = y
		return nil
	})
}

func (s *Scene) SetRotation(h Handle, radians float64) error {
	return s.update(h, func(n *node) error {
		n.obj.Rotation = radians
		return nil
	})
}

func (s *Scene) SetFontSize(h Handle, size float64) error {
	if size <= 0 {
		return ErrInvalidSize
	}
	return s.update(h, func(n *node) error {
		text, ok := n.obj.Content.(TextContent)
		if !ok {
			return fmt.Errorf("set font size on %s: %w", h, ErrWrongContent)
		}
		text.FontSize = size
		n.obj.Content = text
		return nil
	})
}

// SetWidth resizes a sprite; its height follows the texture's native aspect ratio.
func (s *Scene) SetWidth(h Handle, width float64) error {
	if width <= 0 {
		return ErrInvalidSize
	}
	return s.update(h, func(n *node) error {
		img, ok := n.obj.Content.(ImageContent)
		if !ok {
			return fmt.Errorf("set width on %s: %w", h, ErrWrongContent)
		}
		img.Width = width
		img.Height = width / n.aspect
		n.obj.Content = img
		return nil
	})
}

func (s *Scene) Destroy(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, n := s.find(h)
	if n == nil {
		return fmt.Errorf("%s: %w", h, ErrNotFound)
	}
	s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
	return nil
}

// BringToFront moves h to the top of the stacking order.
func (s *Scene) BringToFront(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, n := s.find(h)
	if n == nil {
		return fmt.Errorf("%s: %w", h, ErrNotFound)
	}
	s.nodes = append(append(s.nodes[:i], s.nodes[i+1:]...), n)
	return nil
}

// Reset removes every object.
func (s *Scene) Reset() {
	s.mu.Lock()
	s.nodes = nil
	s.mu.Unlock()
}

func (s *Scene) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

func (s *Scene) ListObjectsFrontToBack() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := make([]Handle, len(s.nodes))
	for i, n := range s.nodes {
		handles[i] = n.obj.Handle
	}
	return handles
}

func (s *Scene) Object(h Handle) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, n := s.find(h)
	if n == nil {
		return Object{}, false
	}
	return n.obj, true
}

// Objects returns snapshots in stacking order; later objects are drawn on top.
func (s *Scene) Objects() []Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects := make([]Object, len(s.nodes))
	for i, n := range s.nodes {
		objects[i] = n.obj
	}
	return objects
}
