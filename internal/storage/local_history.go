package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"collageAPI/internal/asset"
	"collageAPI/internal/history"

	log "github.com/sirupsen/logrus"
)

// LocalHistory saves and restores a collage document through a Store using
// the "history" and "bg" keys.
type LocalHistory struct {
	store  Store
	assets *asset.Table
}

func NewLocalHistory(store Store, assets *asset.Table) *LocalHistory {
	return &LocalHistory{store: store, assets: assets}
}

// Load returns the saved document. A missing or non-array history loads as
// empty and a missing or unknown background as the default one.
func (l *LocalHistory) Load(ctx context.Context) (history.RawDocument, error) {
	doc := history.RawDocument{History: []json.RawMessage{}}

	raw, err := l.store.Get(ctx, KeyHistory)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return doc, fmt.Errorf("failed to load history: %w", err)
	default:
		if entries := history.ParseEntries([]byte(raw)); entries != nil {
			doc.History = entries
		}
	}

	bg, err := l.store.Get(ctx, KeyBackground)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return doc, fmt.Errorf("failed to load background: %w", err)
	}
	doc.Background, err = l.assets.ResolveBackground(bg)
	if err != nil {
		log.Warnf("Stored background ignored: %v", err)
		doc.Background = l.assets.DefaultBackground()
	}

	return doc, nil
}

func (l *LocalHistory) Save(ctx context.Context, doc history.Document) error {
	entries := doc.Entries
	if entries == nil {
		entries = []history.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return l.save(ctx, string(data), doc.Background)
}

// SaveRaw stores entries that were already validated elsewhere, verbatim.
func (l *LocalHistory) SaveRaw(ctx context.Context, doc history.RawDocument) error {
	entries := doc.History
	if entries == nil {
		entries = []json.RawMessage{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return l.save(ctx, string(data), doc.Background)
}

func (l *LocalHistory) save(ctx context.Context, historyJSON, bg string) error {
	if bg == "" {
		bg = l.assets.DefaultBackground()
	}
	if err := l.store.Set(ctx, KeyHistory, historyJSON); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	if err := l.store.Set(ctx, KeyBackground, bg); err != nil {
		return fmt.Errorf("failed to save background: %w", err)
	}
	return nil
}

// Reset forgets the saved collage.
func (l *LocalHistory) Reset(ctx context.Context) error {
	if err := l.store.Delete(ctx, KeyHistory); err != nil {
		return err
	}
	return l.store.Delete(ctx, KeyBackground)
}
