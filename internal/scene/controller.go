package scene

import (
	"context"
	"errors"
	"math"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	MoveStep    = 10
	ZoomInStep  = 1.1
	ZoomOutStep = 0.9
	RotateStep  = math.Pi / 10
	minFontSize = 1
)

var (
	ErrNoSelection = errors.New("no object selected")
	ErrEmptyText   = errors.New("text is empty")
)

// State is the pointer and selection state of one editor session.
type State struct {
	Selected Handle
	Dragging Handle

	// offset between the pointer and the dragged object's centre
	grabX, grabY float64
}

func (st State) HasSelection() bool { return !st.Selected.IsZero() }
func (st State) IsDragging() bool   { return !st.Dragging.IsZero() }

// Controller applies editor interactions to a Scene.
type Controller struct {
	scene *Scene
	state State
}

func NewController(scene *Scene) *Controller {
	return &Controller{scene: scene}
}

func (c *Controller) Scene() *Scene { return c.scene }
func (c *Controller) State() State  { return c.state }

// ControlsEnabled reports whether share/save/reset should be offered.
func (c *Controller) ControlsEnabled() bool {
	return c.scene.Len() > 0
}

func (c *Controller) Select(h Handle) error {
	if _, ok := c.scene.Object(h); !ok {
		return ErrNotFound
	}
	c.state.Selected = h
	return nil
}

func (c *Controller) Deselect() {
	c.state.Selected = Handle{}
}

func (c *Controller) DragStart(h Handle, px, py float64) error {
	obj, ok := c.scene.Object(h)
	if !ok {
		return ErrNotFound
	}
	c.state.Selected = h
	c.state.Dragging = h
	c.state.grabX = obj.X - px
	c.state.grabY = obj.Y - py
	return nil
}

func (c *Controller) DragMove(px, py float64) {
	if !c.state.IsDragging() {
		return
	}
	if err := c.scene.SetPosition(c.state.Dragging, px+c.state.grabX, py+c.state.grabY); err != nil {
		// the dragged object went away underneath us
		log.Debugf("Drag target lost: %v", err)
		c.DragEnd()
	}
}

// DragEnd handles both pointerup and pointerupoutside.
func (c *Controller) DragEnd() {
	c.state.Dragging = Handle{}
	c.state.grabX, c.state.grabY = 0, 0
}

func (c *Controller) selected() (Object, error) {
	if !c.state.HasSelection() {
		return Object{}, ErrNoSelection
	}
	obj, ok := c.scene.Object(c.state.Selected)
	if !ok {
		c.state.Selected = Handle{}
		return Object{}, ErrNoSelection
	}
	return obj, nil
}

func (c *Controller) Move(dx, dy float64) error {
	obj, err := c.selected()
	if err != nil {
		return err
	}
	return c.scene.SetPosition(obj.Handle, obj.X+dx, obj.Y+dy)
}

func (c *Controller) Zoom(factor float64) error {
	obj, err := c.selected()
	if err != nil {
		return err
	}

	switch content := obj.Content.(type) {
	case TextContent:
		return c.scene.SetFontSize(obj.Handle, math.Max(content.FontSize*factor, minFontSize))
	case ImageContent:
		return c.scene.SetWidth(obj.Handle, content.Width*factor)
	default:
		return ErrWrongContent
	}
}

func (c *Controller) ZoomIn() error  { return c.Zoom(ZoomInStep) }
func (c *Controller) ZoomOut() error { return c.Zoom(ZoomOutStep) }

func (c *Controller) Rotate() error {
	obj, err := c.selected()
	if err != nil {
		return err
	}
	return c.scene.SetRotation(obj.Handle, obj.Rotation+RotateStep)
}

func (c *Controller) Delete() error {
	obj, err := c.selected()
	if err != nil {
		return err
	}
	if c.state.Dragging == obj.Handle {
		c.DragEnd()
	}
	c.state.Selected = Handle{}
	return c.scene.Destroy(obj.Handle)
}

func (c *Controller) AddText(value string) (Handle, error) {
	if strings.TrimSpace(value) == "" {
		return Handle{}, ErrEmptyText
	}
	h := c.scene.CreateTextObject(value)
	c.state.Selected = h
	return h, nil
}

func (c *Controller) AddImage(ctx context.Context, key string) (Handle, error) {
	h, err := c.scene.CreateImageObject(ctx, key)
	if err != nil {
		return Handle{}, err
	}
	c.state.Selected = h
	return h, nil
}

func (c *Controller) Reset() {
	c.scene.Reset()
	c.state = State{}
}
