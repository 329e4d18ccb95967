package services

import (
	"context"
	"fmt"
	"image"

	"collageAPI/internal/asset"
	"collageAPI/internal/history"
	"collageAPI/internal/render"
	"collageAPI/internal/scene"

	log "github.com/sirupsen/logrus"
)

// RenderService restores saved documents into a fresh scene and draws them.
type RenderService struct {
	loader   *asset.Loader
	codec    *history.Codec
	renderer *render.Renderer
}

func NewRenderService(loader *asset.Loader, codec *history.Codec) (*RenderService, error) {
	r, err := render.New(loader)
	if err != nil {
		return nil, err
	}
	return &RenderService{loader: loader, codec: codec, renderer: r}, nil
}

// Restore rebuilds a scene from doc. Entries that cannot be restored are
// listed in the report.
func (s *RenderService) Restore(ctx context.Context, doc history.RawDocument) (*scene.Scene, *history.Report, error) {
	sc := scene.New(s.loader)
	report, err := s.codec.DecodeRaw(ctx, sc, doc.History, nil)
	if err != nil {
		return nil, report, err
	}
	for _, skip := range report.Skipped {
		log.Warnf("Entry skipped while restoring: %v", skip)
	}
	return sc, report, nil
}

func (s *RenderService) Render(ctx context.Context, doc history.RawDocument) (image.Image, *history.Report, error) {
	sc, report, err := s.Restore(ctx, doc)
	if err != nil {
		return nil, report, err
	}

	bg, err := s.codec.Assets().ResolveBackground(doc.Background)
	if err != nil {
		return nil, report, err
	}

	img, err := s.renderer.Render(ctx, bg, sc.Objects())
	if err != nil {
		return nil, report, fmt.Errorf("failed to render collage: %w", err)
	}
	return img, report, nil
}
