package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"collageAPI/internal/history"
	"collageAPI/internal/types/share"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

// MaxImageBytes caps the decoded size of a shared snapshot.
const MaxImageBytes = 5 << 20

var (
	ErrInvalidImage   = errors.New("imageData must be a base64 jpeg or png data URL")
	ErrImageTooLarge  = errors.New("image exceeds 5MB")
	ErrInvalidHistory = errors.New("invalid history")
)

var sharesCreated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "collage_shares_total",
		Help: "Share requests by outcome",
	},
	[]string{"result"},
)

// ShareCollectors returns the metrics owned by the share service.
func ShareCollectors() []prometheus.Collector {
	return []prometheus.Collector{sharesCreated}
}

type ShareRepository interface {
	Create(ctx context.Context, s *share.Share) error
	Get(ctx context.Context, id uuid.UUID) (*share.Share, error)
}

type ShareService struct {
	repo    ShareRepository
	codec   *history.Codec
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

func NewShareService(repo ShareRepository, codec *history.Codec, baseURL string, ttl time.Duration) *ShareService {
	return &ShareService{
		repo:    repo,
		codec:   codec,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Link is the editor URL that restores a share.
func (s *ShareService) Link(id uuid.UUID) string {
	return s.baseURL + "/?key=" + id.String()
}

func (s *ShareService) ImageURL(id uuid.UUID) string {
	return s.baseURL + "/api/v1/share/" + id.String() + "/image"
}

func (s *ShareService) PageURL(id uuid.UUID) string {
	return s.baseURL + "/s/" + id.String()
}

// CreateShare stores a snapshot. owner is the signed-in user's Clerk ID, or
// empty for anonymous shares.
func (s *ShareService) CreateShare(ctx context.Context, owner string, req *share.CreateShareRequest) (*share.CreateShareResponse, error) {
	imageType, img, err := decodeDataURL(req.ImageData)
	if err != nil {
		sharesCreated.WithLabelValues("invalid").Inc()
		return nil, err
	}

	entries, err := validateHistory(s.codec, req.History)
	if err != nil {
		sharesCreated.WithLabelValues("invalid").Inc()
		return nil, err
	}

	bg, err := s.codec.Assets().ResolveBackground(req.Background)
	if err != nil {
		sharesCreated.WithLabelValues("invalid").Inc()
		return nil, err
	}

	historyJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}

	now := s.now()
	sh := &share.Share{
		ID:         uuid.New(),
		Owner:      owner,
		History:    historyJSON,
		Background: bg,
		ImageType:  imageType,
		Image:      img,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sh); err != nil {
		sharesCreated.WithLabelValues("error").Inc()
		return nil, err
	}

	link := s.Link(sh.ID)
	pngBytes, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	sharesCreated.WithLabelValues("created").Inc()
	log.WithField("share", sh.ID).Infof("Share created with %d entries", len(entries))

	return &share.CreateShareResponse{
		Message:      "Share created",
		Link:         link,
		Image:        s.ImageURL(sh.ID),
		QrCodeBase64: base64.StdEncoding.EncodeToString(pngBytes),
	}, nil
}

func (s *ShareService) GetShare(ctx context.Context, id uuid.UUID) (*share.Share, error) {
	return s.repo.Get(ctx, id)
}

// validateHistory accepts a missing history as empty and rejects anything
// the codec would refuse to restore.
func validateHistory(codec *history.Codec, data json.RawMessage) ([]json.RawMessage, error) {
	entries, err := history.ParseHistoryField(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHistory, err)
	}
	if err := codec.Validate(entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHistory, err)
	}
	return entries, nil
}

func decodeDataURL(dataURL string) (string, []byte, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return "", nil, ErrInvalidImage
	}
	mediaType, ok := strings.CutSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	if !ok || (mediaType != "image/jpeg" && mediaType != "image/png") {
		return "", nil, ErrInvalidImage
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+2 {
		return "", nil, ErrImageTooLarge
	}

	img, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(img) > MaxImageBytes {
		return "", nil, ErrImageTooLarge
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil || "image/"+format != mediaType {
		return "", nil, ErrInvalidImage
	}
	return mediaType, img, nil
}
