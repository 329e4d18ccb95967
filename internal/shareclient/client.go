package shareclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"collageAPI/internal/history"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrTransport covers network failures, non-2xx responses and unreadable replies.
	ErrTransport = errors.New("share request failed")
	// ErrNoShareLink means the endpoint answered but gave no link to share.
	ErrNoShareLink = errors.New("no share link in response")
)

const maxResponseBytes = 1 << 20

type request struct {
	ImageData string          `json:"imageData"`
	History   []history.Entry `json:"history"`
	Bg        string          `json:"bg"`
}

type Response struct {
	Message string `json:"message"`
	Image   string `json:"image,omitempty"`
	Link    string `json:"link,omitempty"`
}

// Client posts finished collages to a share endpoint. Requests are never retried.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func New(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// Share uploads the rendered image (a data URL) together with the document and
// returns the link to the shared collage.
func (c *Client) Share(ctx context.Context, imageData string, doc history.Document) (*Response, error) {
	entries := doc.Entries
	if entries == nil {
		entries = []history.Entry{}
	}
	body, err := json.Marshal(request{ImageData: imageData, History: entries, Bg: doc.Background})
	if err != nil {
		return nil, fmt.Errorf("failed to encode share request: %w", err)
	}
	log.Infof("Sharing collage: %d entries, %.1fkB", len(entries), float64(len(body))/1000)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrTransport, resp.Status)
	}

	var out Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrTransport, err)
	}
	log.Debugf("Share response: %+v", out)

	if out.Link == "" {
		return &out, ErrNoShareLink
	}
	return &out, nil
}

// componentUnescaper restores the characters a browser's encodeURIComponent
// leaves as they are but url.QueryEscape encodes.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// XShareURL builds a tweet intent URL whose text is lines joined by newlines.
func XShareURL(lines ...string) string {
	text := url.QueryEscape(strings.Join(lines, "\n"))
	return "https://twitter.com/intent/tweet?text=" + componentUnescaper.Replace(text)
}
