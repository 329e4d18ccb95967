package asset

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

var ErrUnknownAsset = errors.New("unknown asset key")

// Object is one sticker the editor offers as a button.
type Object struct {
	Key  string `json:"key" toml:"key"`
	File string `json:"file" toml:"file"`
	Alt  string `json:"alt" toml:"alt"`
}

type Background struct {
	Key  string `json:"key" toml:"key"`
	File string `json:"file" toml:"file"`
}

// Table is the closed set of sticker and background assets of one deployment.
// Encode and decode sides must agree on it; keys are what gets persisted.
type Table struct {
	Objects     []Object     `json:"objects" toml:"object"`
	Backgrounds []Background `json:"backgrounds" toml:"background"`
}

func DefaultTable() *Table {
	return &Table{
		Objects: []Object{
			{Key: "img01", File: "images/dog.png", Alt: "dog"},
			{Key: "img02", File: "images/cherry-blossom.png", Alt: "cherry-blossom"},
			{Key: "img03", File: "images/cup.png", Alt: "cup"},
			{Key: "img04", File: "images/dove.png", Alt: "dove"},
			{Key: "img05", File: "images/kettle.png", Alt: "kettle"},
			{Key: "img06", File: "images/pot.png", Alt: "pot"},
		},
		Backgrounds: []Background{
			{Key: "bg01", File: "images/bg01.jpg"},
			{Key: "bg02", File: "images/bg02.jpg"},
			{Key: "bg03", File: "images/bg03.jpg"},
		},
	}
}

// LoadTable reads a table from a TOML file:
//
//	[[object]]
//	key = "img01"
//	file = "images/dog.png"
//	alt = "dog"
//
//	[[background]]
//	key = "bg01"
//	file = "images/bg01.jpg"
func LoadTable(path string) (*Table, error) {
	var t Table
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("failed to decode asset table %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid asset table %s: %w", path, err)
	}
	return &t, nil
}

func (t *Table) Validate() error {
	if len(t.Objects) == 0 {
		return errors.New("no objects defined")
	}
	if len(t.Backgrounds) == 0 {
		return errors.New("no backgrounds defined")
	}

	seen := make(map[string]bool)
	for _, o := range t.Objects {
		if o.Key == "" || o.File == "" {
			return fmt.Errorf("object %q: key and file are required", o.Key)
		}
		if seen[o.Key] {
			return fmt.Errorf("duplicate key %q", o.Key)
		}
		seen[o.Key] = true
	}
	for _, b := range t.Backgrounds {
		if b.Key == "" || b.File == "" {
			return fmt.Errorf("background %q: key and file are required", b.Key)
		}
		if seen[b.Key] {
			return fmt.Errorf("duplicate key %q", b.Key)
		}
		seen[b.Key] = true
	}
	return nil
}

func (t *Table) Object(key string) (Object, bool) {
	for _, o := range t.Objects {
		if o.Key == key {
			return o, true
		}
	}
	return Object{}, false
}

func (t *Table) Background(key string) (Background, bool) {
	for _, b := range t.Backgrounds {
		if b.Key == key {
			return b, true
		}
	}
	return Background{}, false
}

// DefaultBackground is the first background of the table, used whenever no
// background was stored.
func (t *Table) DefaultBackground() string {
	if len(t.Backgrounds) == 0 {
		return ""
	}
	return t.Backgrounds[0].Key
}

// ResolveBackground maps an empty key to the default and rejects unknown keys.
func (t *Table) ResolveBackground(key string) (string, error) {
	if key == "" {
		return t.DefaultBackground(), nil
	}
	if _, ok := t.Background(key); !ok {
		return "", fmt.Errorf("background %q: %w", key, ErrUnknownAsset)
	}
	return key, nil
}
