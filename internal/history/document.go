package history

import (
	"bytes"
	"encoding/json"
	"errors"

	log "github.com/sirupsen/logrus"
)

// Document is what gets saved or shared: the entries plus the chosen background.
type Document struct {
	Entries    []Entry
	Background string
}

type documentJSON struct {
	History    []Entry `json:"history"`
	Background string  `json:"bg"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	entries := d.Entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(documentJSON{History: entries, Background: d.Background})
}

// Raw converts the document to the untrusted form used on the read side.
func (d Document) Raw() (RawDocument, error) {
	raw := RawDocument{Background: d.Background, History: make([]json.RawMessage, 0, len(d.Entries))}
	for _, e := range d.Entries {
		b, err := json.Marshal(e)
		if err != nil {
			return RawDocument{}, err
		}
		raw.History = append(raw.History, b)
	}
	return raw, nil
}

// RawDocument is a document as read from storage or the network, with entries
// not yet validated.
type RawDocument struct {
	History    []json.RawMessage `json:"history"`
	Background string            `json:"bg"`
}

// ParseEntries reads a stored history value. Anything that is not a JSON
// array yields no entries.
func ParseEntries(data []byte) []json.RawMessage {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Debugf("Ignoring stored history that is not an array: %v", err)
		return nil
	}
	return raw
}

var ErrNotArray = errors.New("history must be an array")

// ParseHistoryField reads the history member of a request body. A missing
// or null value is an empty history.
func ParseHistoryField(data json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []json.RawMessage{}, nil
	}
	entries := ParseEntries(trimmed)
	if entries == nil {
		return nil, ErrNotArray
	}
	return entries, nil
}
