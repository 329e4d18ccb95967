package scene

import "github.com/google/uuid"

// Handle identifies a placed object for as long as it lives in a Scene.
type Handle uuid.UUID

func NewHandle() Handle {
	return Handle(uuid.New())
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

func (h Handle) IsZero() bool {
	return h == Handle{}
}

// Content is either TextContent or ImageContent.
type Content interface {
	isContent()
}

type TextContent struct {
	Value    string
	FontSize float64
}

// ImageContent keeps the asset key the sprite was created from, so encoding
// never has to work out which asset a texture came from.
type ImageContent struct {
	Key    string
	Width  float64
	Height float64
}

func (TextContent) isContent()  {}
func (ImageContent) isContent() {}

// Object is a snapshot of a placed object. X and Y are the canvas coordinates
// of its centre, Rotation is in radians and is never normalised.
type Object struct {
	Handle   Handle
	X        float64
	Y        float64
	Rotation float64
	Content  Content
}
