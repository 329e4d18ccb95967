package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrMalformedEntry = errors.New("malformed history entry")

type Tag string

const (
	TagText  Tag = "text"
	TagImage Tag = "img"
)

// Entry is one placed object in serialized form. It is either a TextEntry or
// an ImageEntry; on the wire both are fixed-length JSON arrays led by their tag.
type Entry interface {
	Tag() Tag
	isEntry()
}

// TextEntry encodes as ["text", x, y, rotation, text, fontSize].
type TextEntry struct {
	X        float64
	Y        float64
	Rotation float64
	Text     string
	FontSize float64
}

// ImageEntry encodes as ["img", x, y, rotation, key, width].
type ImageEntry struct {
	X        float64
	Y        float64
	Rotation float64
	Key      string
	Width    float64
}

func (TextEntry) Tag() Tag  { return TagText }
func (ImageEntry) Tag() Tag { return TagImage }
func (TextEntry) isEntry()  {}
func (ImageEntry) isEntry() {}

func (e TextEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{TagText, e.X, e.Y, e.Rotation, e.Text, e.FontSize})
}

func (e ImageEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{TagImage, e.X, e.Y, e.Rotation, e.Key, e.Width})
}

const tupleLen = 6

// UnmarshalEntry parses one stored entry. Besides the tuple form it accepts the
// object form written by the first editor releases, e.g.
// {"text":"hi","fontSize":50,"x":1,"y":2,"rotation":0}.
// Every failure wraps ErrMalformedEntry.
func UnmarshalEntry(raw json.RawMessage) (Entry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedEntry)
	}

	switch raw[0] {
	case '[':
		return unmarshalTuple(raw)
	case '{':
		return unmarshalLegacy(raw)
	default:
		return nil, fmt.Errorf("%w: expected array, got %.20s", ErrMalformedEntry, raw)
	}
}

func unmarshalTuple(raw json.RawMessage) (Entry, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: missing tag", ErrMalformedEntry)
	}

	tag, err := stringField(fields[0], "tag")
	if err != nil {
		return nil, err
	}
	if Tag(tag) != TagText && Tag(tag) != TagImage {
		return nil, fmt.Errorf("%w: unknown tag %q", ErrMalformedEntry, tag)
	}
	if len(fields) != tupleLen {
		return nil, fmt.Errorf("%w: %s entry has %d fields, want %d", ErrMalformedEntry, tag, len(fields), tupleLen)
	}

	x, err := numberField(fields[1], "x")
	if err != nil {
		return nil, err
	}
	y, err := numberField(fields[2], "y")
	if err != nil {
		return nil, err
	}
	rotation, err := numberField(fields[3], "rotation")
	if err != nil {
		return nil, err
	}
	value, err := stringField(fields[4], "value")
	if err != nil {
		return nil, err
	}
	size, err := numberField(fields[5], "size")
	if err != nil {
		return nil, err
	}

	if Tag(tag) == TagText {
		return newTextEntry(x, y, rotation, value, size)
	}
	return newImageEntry(x, y, rotation, value, size)
}

type legacyEntry struct {
	Text     *string  `json:"text"`
	Img      *string  `json:"img"`
	FontSize *float64 `json:"fontSize"`
	Width    *float64 `json:"width"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Rotation *float64 `json:"rotation"`
}

func unmarshalLegacy(raw json.RawMessage) (Entry, error) {
	var l legacyEntry
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	if l.X == nil || l.Y == nil || l.Rotation == nil {
		return nil, fmt.Errorf("%w: x, y and rotation are required", ErrMalformedEntry)
	}

	switch {
	case l.Text != nil && l.Img == nil:
		if l.FontSize == nil {
			return nil, fmt.Errorf("%w: text entry without fontSize", ErrMalformedEntry)
		}
		return newTextEntry(*l.X, *l.Y, *l.Rotation, *l.Text, *l.FontSize)
	case l.Img != nil && l.Text == nil:
		if l.Width == nil {
			return nil, fmt.Errorf("%w: img entry without width", ErrMalformedEntry)
		}
		return newImageEntry(*l.X, *l.Y, *l.Rotation, *l.Img, *l.Width)
	default:
		return nil, fmt.Errorf("%w: need exactly one of text or img", ErrMalformedEntry)
	}
}

func newTextEntry(x, y, rotation float64, text string, fontSize float64) (Entry, error) {
	if fontSize <= 0 {
		return nil, fmt.Errorf("%w: fontSize must be positive, got %v", ErrMalformedEntry, fontSize)
	}
	return TextEntry{X: x, Y: y, Rotation: rotation, Text: text, FontSize: fontSize}, nil
}

func newImageEntry(x, y, rotation float64, key string, width float64) (Entry, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty image key", ErrMalformedEntry)
	}
	if width <= 0 {
		return nil, fmt.Errorf("%w: width must be positive, got %v", ErrMalformedEntry, width)
	}
	return ImageEntry{X: x, Y: y, Rotation: rotation, Key: key, Width: width}, nil
}

func numberField(raw json.RawMessage, name string) (float64, error) {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return 0, fmt.Errorf("%w: %s is not a number", ErrMalformedEntry, name)
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, fmt.Errorf("%w: %s is not finite", ErrMalformedEntry, name)
	}
	return *v, nil
}

func stringField(raw json.RawMessage, name string) (string, error) {
	var v *string
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformedEntry, name)
	}
	return *v, nil
}
