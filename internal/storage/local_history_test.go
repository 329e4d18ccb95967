package storage

import (
	"context"
	"testing"

	"collageAPI/internal/asset"
	"collageAPI/internal/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalHistory_LoadEmpty(t *testing.T) {
	lh := NewLocalHistory(NewMemoryStore(), asset.DefaultTable())

	doc, err := lh.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, doc.History)
	assert.Empty(t, doc.History)
	assert.Equal(t, "bg01", doc.Background)
}

func TestLocalHistory_SaveLoadReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	lh := NewLocalHistory(store, asset.DefaultTable())

	err := lh.Save(ctx, history.Document{
		Entries: []history.Entry{
			history.TextEntry{X: 1, Y: 2, Rotation: 0.5, Text: "hi", FontSize: 50},
			history.ImageEntry{X: 3, Y: 4, Key: "img02", Width: 150},
		},
		Background: "bg02",
	})
	require.NoError(t, err)

	stored, err := store.Get(ctx, KeyHistory)
	require.NoError(t, err)
	assert.JSONEq(t, `[["text",1,2,0.5,"hi",50],["img",3,4,0,"img02",150]]`, stored)

	doc, err := lh.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bg02", doc.Background)
	require.Len(t, doc.History, 2)

	entry, err := history.UnmarshalEntry(doc.History[1])
	require.NoError(t, err)
	assert.Equal(t, history.ImageEntry{X: 3, Y: 4, Key: "img02", Width: 150}, entry)

	require.NoError(t, lh.Reset(ctx))
	_, err = store.Get(ctx, KeyHistory)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, KeyBackground)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalHistory_TolerantLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyHistory, `{"oops":true}`))
	require.NoError(t, store.Set(ctx, KeyBackground, "bg99"))

	doc, err := NewLocalHistory(store, asset.DefaultTable()).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.History)
	assert.Equal(t, "bg01", doc.Background)
}

func TestLocalHistory_SaveDefaultsBackground(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	lh := NewLocalHistory(store, asset.DefaultTable())

	require.NoError(t, lh.SaveRaw(ctx, history.RawDocument{}))

	v, err := store.Get(ctx, KeyHistory)
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	bg, err := store.Get(ctx, KeyBackground)
	require.NoError(t, err)
	assert.Equal(t, "bg01", bg)
}
