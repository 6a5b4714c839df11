package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/RickEth137/ClawStream/internal/config"
	"github.com/RickEth137/ClawStream/internal/engine"
)

const giphyBaseURL = "https://api.giphy.com/v1"

// GiphyClient finds gifs through the Giphy search API. Video requests
// are answered from the same index since Giphy serves mp4 renditions
// alongside gifs.
type GiphyClient struct {
	baseURL string
	apiKey  string
	rating  string
	client  *http.Client
}

func NewGiphyClient(cfg config.MediaConfig) *GiphyClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GiphyClient{
		baseURL: giphyBaseURL,
		apiKey:  cfg.GiphyAPIKey,
		rating:  cfg.Rating,
		client:  &http.Client{Timeout: timeout},
	}
}

type giphySearchResponse struct {
	Data []struct {
		Title  string `json:"title"`
		Images struct {
			Original struct {
				URL string `json:"url"`
				MP4 string `json:"mp4"`
			} `json:"original"`
		} `json:"images"`
	} `json:"data"`
}

func (c *GiphyClient) Find(ctx context.Context, kind engine.MediaKind, query string) (*Item, error) {
	if c.apiKey == "" {
		return nil, ErrNotFound
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("q", query)
	q.Set("limit", "1")
	if c.rating != "" {
		q.Set("rating", c.rating)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/gifs/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("giphy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("giphy returned %s", resp.Status)
	}

	var parsed giphySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, ErrNotFound
	}

	hit := parsed.Data[0]
	mediaURL := hit.Images.Original.URL
	if kind == engine.MediaKindVideo {
		if hit.Images.Original.MP4 == "" {
			return nil, ErrNotFound
		}
		mediaURL = hit.Images.Original.MP4
	}
	if mediaURL == "" {
		return nil, ErrNotFound
	}

	return &Item{Kind: kind, URL: mediaURL, Title: hit.Title}, nil
}
