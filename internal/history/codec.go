package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"collageAPI/internal/asset"
	"collageAPI/internal/scene"

	log "github.com/sirupsen/logrus"
)

// ErrUnknownAsset is returned for entries whose image key is missing from the
// current asset table, e.g. after the table changed between save and restore.
var ErrUnknownAsset = asset.ErrUnknownAsset

// Authority is the part of a scene that restoring needs. *scene.Scene implements it.
type Authority interface {
	CreateTextObject(value string) scene.Handle
	CreateImageObject(ctx context.Context, key string) (scene.Handle, error)
	SetPosition(h scene.Handle, x, y float64) error
	SetRotation(h scene.Handle, radians float64) error
	SetFontSize(h scene.Handle, size float64) error
	SetWidth(h scene.Handle, width float64) error
	Destroy(h scene.Handle) error
}

// Lister yields placed objects in stacking order.
type Lister interface {
	Objects() []scene.Object
}

type Codec struct {
	assets    *asset.Table
	precision Precision
}

type Option func(*Codec)

func WithPrecision(p Precision) Option {
	return func(c *Codec) {
		c.precision = p
	}
}

func NewCodec(assets *asset.Table, opts ...Option) *Codec {
	c := &Codec{
		assets:    assets,
		precision: DefaultPrecision,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Assets() *asset.Table {
	return c.assets
}

// Encode snapshots objects into entries, keeping their order. Objects that
// cannot be encoded are logged and left out; Encode itself never fails.
func (c *Codec) Encode(objects []scene.Object) []Entry {
	p := c.precision
	entries := make([]Entry, 0, len(objects))

	for i, obj := range objects {
		x, y, rot := Round(obj.X, p.Position), Round(obj.Y, p.Position), Round(obj.Rotation, p.Rotation)

		switch content := obj.Content.(type) {
		case scene.TextContent:
			entries = append(entries, TextEntry{
				X:        x,
				Y:        y,
				Rotation: rot,
				Text:     content.Value,
				FontSize: Round(content.FontSize, p.Size),
			})
		case scene.ImageContent:
			if _, ok := c.assets.Object(content.Key); !ok {
				log.Warnf("Dropping object %d (%s): image key %q is not in the asset table", i, obj.Handle, content.Key)
				continue
			}
			entries = append(entries, ImageEntry{
				X:        x,
				Y:        y,
				Rotation: rot,
				Key:      content.Key,
				Width:    Round(content.Width, p.Size),
			})
		default:
			log.Warnf("Dropping object %d (%s): no text or image content", i, obj.Handle)
		}
	}
	return entries
}

// EncodeScene builds the document saved or shared for the current scene.
// An unknown background falls back to the table default.
func (c *Codec) EncodeScene(src Lister, bg string) Document {
	resolved, err := c.assets.ResolveBackground(bg)
	if err != nil {
		log.Warnf("Encoding with default background: %v", err)
		resolved = c.assets.DefaultBackground()
	}
	return Document{
		Entries:    c.Encode(src.Objects()),
		Background: resolved,
	}
}

// SkipError records why the entry at Index was not restored.
type SkipError struct {
	Index int
	Err   error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index, e.Err)
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

type Report struct {
	Created []scene.Handle
	Skipped []*SkipError
}

// Decode recreates entries on target one at a time, in order: an image entry
// waits for its texture before the next entry starts, so stacking order always
// matches entry order. onCreated, when set, sees each object right after it is
// placed. Bad entries are skipped and reported; only ctx cancellation stops
// the restore early, returning what was created so far.
func (c *Codec) Decode(ctx context.Context, target Authority, entries []Entry, onCreated func(scene.Handle)) (*Report, error) {
	return c.decode(ctx, target, len(entries), func(i int) (Entry, error) {
		return entries[i], nil
	}, onCreated)
}

// DecodeRaw is Decode for untrusted input: each element is parsed on its own
// and malformed ones are skipped like any other bad entry.
func (c *Codec) DecodeRaw(ctx context.Context, target Authority, raw []json.RawMessage, onCreated func(scene.Handle)) (*Report, error) {
	return c.decode(ctx, target, len(raw), func(i int) (Entry, error) {
		return UnmarshalEntry(raw[i])
	}, onCreated)
}

func (c *Codec) decode(ctx context.Context, target Authority, n int, next func(int) (Entry, error), onCreated func(scene.Handle)) (*Report, error) {
	report := &Report{}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		entry, err := next(i)
		if err == nil {
			var h scene.Handle
			h, err = c.decodeEntry(ctx, target, entry)
			if err == nil {
				report.Created = append(report.Created, h)
				if onCreated != nil {
					onCreated(h)
				}
				continue
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return report, ctxErr
		}
		skip := &SkipError{Index: i, Err: err}
		log.Warnf("Skipping history %v", skip)
		report.Skipped = append(report.Skipped, skip)
	}

	return report, nil
}

func (c *Codec) decodeEntry(ctx context.Context, target Authority, entry Entry) (scene.Handle, error) {
	switch e := entry.(type) {
	case TextEntry:
		h := target.CreateTextObject(e.Text)
		if err := target.SetFontSize(h, e.FontSize); err != nil {
			return discard(target, h, err)
		}
		return place(target, h, e.X, e.Y, e.Rotation)

	case ImageEntry:
		if _, ok := c.assets.Object(e.Key); !ok {
			return scene.Handle{}, fmt.Errorf("image %q: %w", e.Key, ErrUnknownAsset)
		}
		h, err := target.CreateImageObject(ctx, e.Key)
		if err != nil {
			return scene.Handle{}, fmt.Errorf("failed to create image %q: %w", e.Key, err)
		}
		if err := target.SetWidth(h, e.Width); err != nil {
			return discard(target, h, err)
		}
		return place(target, h, e.X, e.Y, e.Rotation)

	default:
		return scene.Handle{}, fmt.Errorf("%w: unsupported entry %T", ErrMalformedEntry, entry)
	}
}

func place(target Authority, h scene.Handle, x, y, rotation float64) (scene.Handle, error) {
	if err := target.SetPosition(h, x, y); err != nil {
		return discard(target, h, err)
	}
	if err := target.SetRotation(h, rotation); err != nil {
		return discard(target, h, err)
	}
	return h, nil
}

// discard removes a half-restored object so a skipped entry leaves nothing behind.
func discard(target Authority, h scene.Handle, cause error) (scene.Handle, error) {
	if err := target.Destroy(h); err != nil {
		log.Errorf("Failed to remove half-restored object %s: %v", h, err)
	}
	return scene.Handle{}, cause
}

// Validate checks that every raw entry parses and references a known asset.
// It is used where history is accepted for storage rather than restored.
func (c *Codec) Validate(raw []json.RawMessage) error {
	for i, r := range raw {
		entry, err := UnmarshalEntry(r)
		if err != nil {
			return &SkipError{Index: i, Err: err}
		}
		if img, ok := entry.(ImageEntry); ok {
			if _, known := c.assets.Object(img.Key); !known {
				return &SkipError{Index: i, Err: fmt.Errorf("image %q: %w", img.Key, ErrUnknownAsset)}
			}
		}
	}
	return nil
}
