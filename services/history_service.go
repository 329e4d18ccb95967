package services

import (
	"context"
	"encoding/json"
	"fmt"

	"collageAPI/internal/history"
	"collageAPI/internal/storage"
	"collageAPI/internal/types/share"
)

// StoreFactory returns the store holding one user's collage.
type StoreFactory func(owner string) storage.Store

// HistoryService keeps a signed-in user's working collage on the server,
// using the same layout the editor keeps in local storage.
type HistoryService struct {
	stores StoreFactory
	codec  *history.Codec
}

func NewHistoryService(stores StoreFactory, codec *history.Codec) *HistoryService {
	return &HistoryService{stores: stores, codec: codec}
}

func (s *HistoryService) local(clerkID string) *storage.LocalHistory {
	return storage.NewLocalHistory(s.stores(clerkID), s.codec.Assets())
}

func (s *HistoryService) GetHistory(ctx context.Context, clerkID string) (*share.SavedHistory, error) {
	doc, err := s.local(clerkID).Load(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc.History)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	return &share.SavedHistory{History: data, Background: doc.Background}, nil
}

func (s *HistoryService) SaveHistory(ctx context.Context, clerkID string, req *share.SaveHistoryRequest) error {
	entries, err := validateHistory(s.codec, req.History)
	if err != nil {
		return err
	}

	bg, err := s.codec.Assets().ResolveBackground(req.Background)
	if err != nil {
		return err
	}
	return s.local(clerkID).SaveRaw(ctx, history.RawDocument{History: entries, Background: bg})
}

func (s *HistoryService) ResetHistory(ctx context.Context, clerkID string) error {
	return s.local(clerkID).Reset(ctx)
}
